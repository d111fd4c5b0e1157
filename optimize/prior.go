package optimize

import (
	"math"

	"bitbucket.org/ccslab/hbdm/dist"
)

// FlatPrior is an improper uniform prior.
func FlatPrior(x float64) float64 {
	return 0
}

func UniformPrior(min, max float64, incmin, incmax bool) func(float64) float64 {
	if max <= min {
		panic("max <= min")
	}
	return func(x float64) float64 {
		if (incmin && x < min) ||
			(!incmin && x <= min) ||
			(incmax && x > max) ||
			(!incmax && x >= max) {
			return math.Inf(-1)
		}
		return -math.Log(max - min)
	}
}

// NormalPrior is a normal log density. With a lower bound at mu set
// on the parameter it acts as a half-normal up to a constant.
func NormalPrior(mu, sd float64) func(float64) float64 {
	if sd <= 0 {
		panic("sd should be > 0")
	}
	return func(x float64) float64 {
		return dist.LnNormal(x, mu, sd)
	}
}

func ExponentialPrior(rate float64, inczero bool) func(float64) float64 {
	if rate <= 0 {
		panic("exponential rate should be > 0")
	}
	return func(x float64) float64 {
		if x < 0 || (x == 0 && !inczero) {
			return math.Inf(-1)
		}
		return math.Log(rate) - rate*x
	}
}
