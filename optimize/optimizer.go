// Package optimize provides bounded model parameters, a
// Metropolis-Hastings sampler with optional adaptive proposals, and an
// L-BFGS-B mode finder for the same models.
package optimize

import (
	"math"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("optimize")

// Optimizable is a model with a log likelihood over float parameters.
// Parameter priors are added by the optimizers.
type Optimizable interface {
	GetFloatParameters() FloatParameters
	Likelihood() float64
}

// Optimizer runs a fixed number of iterations on a model.
type Optimizer interface {
	SetOptimizable(Optimizable)
	SetReportPeriod(period int)
	Run(iterations int)
	GetL() float64
	GetMaxL() float64
	GetMaxLParameters() []float64
}

// BaseOptimizer holds state shared by optimizers.
type BaseOptimizer struct {
	Optimizable
	parameters FloatParameters
	i          int
	l          float64
	maxL       float64
	maxLPar    []float64
	repPeriod  int
	calls      int
	Quiet      bool
}

// SetOptimizable sets the model.
func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
	o.maxL = math.Inf(-1)
}

// SetReportPeriod sets how often progress is logged.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// posterior returns likelihood plus log priors.
func (o *BaseOptimizer) posterior() float64 {
	o.calls++
	l := o.Likelihood()
	for _, par := range o.parameters {
		l += par.Prior()
	}
	return l
}

func (o *BaseOptimizer) saveMax(l float64) {
	if l > o.maxL {
		o.maxL = l
		o.maxLPar = o.parameters.Values(o.maxLPar)
	}
}

// PrintLine logs the current state every period iterations.
func (o *BaseOptimizer) PrintLine(l float64, period int) {
	if o.Quiet || period <= 0 || o.i%period != 0 {
		return
	}
	log.Debugf("%d\t%f\t%s", o.i, l, o.parameters)
}

// PrintFinal logs the best parameter values.
func (o *BaseOptimizer) PrintFinal() {
	if o.Quiet {
		return
	}
	names := o.parameters.Names()
	s := make([]string, len(names))
	for i, n := range names {
		v := math.NaN()
		if o.maxLPar != nil {
			v = o.maxLPar[i]
		}
		s[i] = n + "=" + formatFloat(v)
	}
	log.Infof("Maximum log posterior %f at %s (%d evaluations)", o.maxL, strings.Join(s, ", "), o.calls)
}

// GetL returns the current log posterior.
func (o *BaseOptimizer) GetL() float64 {
	return o.l
}

// GetMaxL returns the maximum log posterior found.
func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

// GetMaxLParameters returns the parameter values of the maximum.
func (o *BaseOptimizer) GetMaxLParameters() []float64 {
	return o.maxLPar
}
