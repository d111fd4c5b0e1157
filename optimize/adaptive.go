package optimize

import (
	"math"
	"math/rand"
)

// minVariance keeps proposals from collapsing on a constant batch.
const minVariance = 1e-10

// moments accumulates a running mean and the sum of squared
// deviations (Welford).
type moments struct {
	n    int
	mean float64
	m2   float64
}

func (s *moments) add(x float64) {
	s.n++
	d := x - s.mean
	s.mean += d / float64(s.n)
	s.m2 += d * (x - s.mean)
}

func (s *moments) remove(x float64) {
	if s.n <= 1 {
		*s = moments{}
		return
	}
	s.n--
	d := x - s.mean
	s.mean -= d / float64(s.n)
	s.m2 -= d * (x - s.mean)
}

func (s *moments) variance() float64 {
	if s.n < 2 {
		return 0
	}
	return s.m2 / float64(s.n-1)
}

// window keeps the moments of the last len(buf) values.
type window struct {
	buf  []float64
	next int
	full bool
	moments
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

func (w *window) push(x float64) {
	if w.full {
		w.remove(w.buf[w.next])
	}
	w.buf[w.next] = x
	w.add(x)
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.full = true
	}
}

// AdaptiveSettings are settings for an adaptive MCMC.
type AdaptiveSettings struct {
	// WSize is the number of batch means used to check convergence.
	WSize int
	// K is the batch length between two scale updates.
	K int
	// Skip is the number of iterations to skip before starting
	// adaptation.
	Skip int
	// MaxAdapt is the iteration adaptation stops at.
	MaxAdapt int
	// MaxUpdate is the maximum number of updates of a parameter.
	MaxUpdate int
	// Epsilon is the coefficient of variation of the window below
	// which adaptation stops.
	Epsilon float64
	// C and Nu set the Robbins-Monro step size C/(n+1)^(1/(1+Nu)).
	C  float64
	Nu float64
	// Lambda is the proposal multiplier.
	Lambda float64
	// SD is initial standard deviation.
	SD float64
}

// NewAdaptiveSettings creates new settings for adaptive MCMC.
func NewAdaptiveSettings() *AdaptiveSettings {
	return &AdaptiveSettings{
		WSize:     10,
		K:         20,
		Skip:      500,
		MaxAdapt:  2000,
		MaxUpdate: 200,
		Epsilon:   5e-2,
		C:         1,
		Nu:        3,
		Lambda:    2.4,
		SD:        1e-1,
	}
}

// ParameterGenerator returns a generator of adaptive MCMC parameters
// drawing proposals from rng.
func (as *AdaptiveSettings) ParameterGenerator(rng *rand.Rand) FloatParameterGenerator {
	return func(par *float64, name string) FloatParameter {
		return NewAdaptiveParameter(par, name, as, rng)
	}
}

// AdaptiveParameter learns the posterior variance of a parameter with
// a Robbins-Monro schedule and scales its normal proposal to it.
type AdaptiveParameter struct {
	*BasicFloatParameter
	settings *AdaptiveSettings

	// number of adaptation steps and of sign changes of the
	// batch mean drift
	steps     int
	crossings int
	rising    bool

	mean     float64
	variance float64

	batch     moments
	history   *window
	converged bool
}

// NewAdaptiveParameter creates a new adaptive MCMC parameter.
func NewAdaptiveParameter(par *float64, name string, as *AdaptiveSettings, rng *rand.Rand) *AdaptiveParameter {
	if as.SD <= 0 {
		panic("SD should be > 0")
	}
	if as.K < 2 {
		panic("K should be >= 2")
	}
	a := &AdaptiveParameter{
		BasicFloatParameter: NewBasicFloatParameter(par, name, rng),
		settings:            as,
		mean:                math.NaN(),
		variance:            as.SD * as.SD,
		history:             newWindow(as.WSize),
	}
	a.proposalFunc = func(x float64) float64 {
		return x + rng.NormFloat64()*math.Sqrt(a.variance)*as.Lambda
	}
	return a
}

// Accept is called if value is accepted.
func (a *AdaptiveParameter) Accept(iter int) {
	if iter >= a.settings.Skip && iter < a.settings.MaxAdapt {
		a.adapt()
	}
}

// gain returns the Robbins-Monro step size. It decreases only when
// the drift of the batch mean changes sign.
func (a *AdaptiveParameter) gain() float64 {
	drift := a.batch.mean - a.mean
	if (drift > 0) != a.rising {
		a.crossings++
	}
	a.rising = drift > 0
	return a.settings.C / math.Pow(float64(a.crossings+1), 1/math.Max(1, 1+a.settings.Nu))
}

// checkConvergence stops adaptation once the recent means are stable
// or the parameter was updated too often.
func (a *AdaptiveParameter) checkConvergence() {
	a.history.push(*a.float64)
	if !a.history.full {
		return
	}
	cv := math.Sqrt(a.history.variance()) / math.Abs(a.history.mean)
	switch {
	case cv < a.settings.Epsilon:
		a.converged = true
		log.Debugf("%s converged, reason: SD/mean", a.Name())
	case a.steps/a.settings.K > a.settings.MaxUpdate:
		a.converged = true
		log.Debugf("%s converged, reason: max update", a.Name())
	}
}

// adapt adds the current value to the batch; every K values the mean
// and the variance move towards the batch estimates.
func (a *AdaptiveParameter) adapt() {
	if a.converged {
		return
	}
	if math.IsNaN(a.mean) {
		a.mean = *a.float64
	}
	if a.steps > 0 && a.steps%a.settings.K == 0 {
		g := a.gain()
		a.mean += g * (a.batch.mean - a.mean)
		a.variance += g * (a.batch.variance() - a.variance)
		a.variance = math.Max(a.variance, minVariance)
		a.checkConvergence()
		a.batch = moments{}
	}
	a.batch.add(*a.float64)
	a.steps++
}

// ProposalSD returns the current proposal scale before multiplication by
// Lambda.
func (a *AdaptiveParameter) ProposalSD() float64 {
	return math.Sqrt(a.variance)
}
