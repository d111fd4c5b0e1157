package optimize

import (
	"math/rand"
)

// UniformProposal returns uniform proposal function.
func UniformProposal(width float64, rng *rand.Rand) func(float64) float64 {
	if width <= 0 {
		panic("width should be positive")
	}
	return func(x float64) float64 {
		return x + rng.Float64()*width - width/2
	}
}

// NormalProposal returns normal proposal function.
func NormalProposal(sd float64, rng *rand.Rand) func(float64) float64 {
	if sd <= 0 {
		panic("sd should be > 0")
	}
	return func(x float64) float64 {
		return x + rng.NormFloat64()*sd
	}
}
