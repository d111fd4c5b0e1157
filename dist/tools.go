// Package dist implements distribution helpers used to move parameter
// values between their bounded scale and the unconstrained scale the
// samplers work on.
package dist

import (
	"math"

	"github.com/gonum/mathext"
)

// QuantileNormal returns quantile for standard normal distribution
// (probit).
func QuantileNormal(prob float64) float64 {
	return mathext.NormalQuantile(prob)
}

// PhiApprox is the logistic approximation to the standard normal
// CDF, Phi(x) ~= logit^-1(0.07056 x^3 + 1.5976 x). Samplers use it to
// map non-centered individual parameters onto the unit interval.
func PhiApprox(x float64) float64 {
	return InvLogit(0.07056*x*x*x + 1.5976*x)
}

// InvLogit returns the inverse of the logit function.
func InvLogit(x float64) float64 {
	if x < 0 {
		e := math.Exp(x)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(-x))
}

// LogInvLogit returns log(InvLogit(x)) without underflow.
func LogInvLogit(x float64) float64 {
	if x < 0 {
		return x - math.Log1p(math.Exp(x))
	}
	return -math.Log1p(math.Exp(-x))
}

// LnNormal returns the log density of N(mu, sd) at x.
func LnNormal(x, mu, sd float64) float64 {
	z := (x - mu) / sd
	return -0.5*z*z - math.Log(sd) - 0.5*math.Log(2*math.Pi)
}
