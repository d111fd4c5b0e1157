package optimize

import (
	"fmt"
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// LBFGSB finds the posterior mode with bounded L-BFGS-B and
// finite-difference gradients.
type LBFGSB struct {
	BaseOptimizer
	dH     float64
	grad   []float64
	status lbfgsb.ExitStatus
}

// NewLBFGSB creates a new mode finder.
func NewLBFGSB() (l *LBFGSB) {
	l = &LBFGSB{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
		dH: 1e-6,
	}
	return
}

// Logger logs optimizer iterations.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	l.PrintLine(-info.F, l.repPeriod)
}

// EvaluateFunction returns the negative log posterior.
func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	if !l.parameters.ValuesInRange(x) {
		return math.Inf(+1)
	}
	l.parameters.SetValues(x)
	L := l.posterior()
	l.saveMax(L)
	return -L
}

// EvaluateGradient returns central differences of the negative log
// posterior.
func (l *LBFGSB) EvaluateGradient(x []float64) (grad []float64) {
	if l.grad == nil {
		l.grad = make([]float64, len(x))
	}
	grad = l.grad
	l.parameters.SetValues(x)
	for i, par := range l.parameters {
		par.Set(x[i] - l.dH)
		l1 := -l.posterior()
		par.Set(x[i] + l.dH)
		l2 := -l.posterior()
		par.Set(x[i])
		grad[i] = (l2 - l1) / 2 / l.dH
	}
	return
}

// Run minimizes until convergence and leaves the parameters at the
// best values found. The optimizer has no iteration limit, so
// iterations is only reported.
func (l *LBFGSB) Run(iterations int) {
	log.Debugf("Running L-BFGS-B (%d parameters, budget %d)", len(l.parameters), iterations)
	l.maxL = math.Inf(-1)
	bounds := make([][2]float64, len(l.parameters))
	for i, par := range l.parameters {
		bounds[i][0] = par.GetMin()
		bounds[i][1] = par.GetMax()
		if !math.IsInf(bounds[i][0], 0) {
			bounds[i][0] += 1e-5
		}
		if !math.IsInf(bounds[i][1], 0) {
			bounds[i][1] -= 1e-5
		}
	}

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-9)
	opt.SetGTolerance(1e-9)
	opt.SetBounds(bounds)
	opt.SetLogger(l.Logger)

	_, l.status = opt.Minimize(l, l.parameters.Values(nil))
	log.Debugf("L-BFGS-B exit status: %v", l.status)

	if l.maxLPar != nil {
		l.parameters.SetValues(l.maxLPar)
	}
	l.l = l.maxL
	l.PrintFinal()
}

// Err returns an error if the last run found no finite posterior.
// Abnormal terminations with a finite optimum are only logged.
func (l *LBFGSB) Err() error {
	if l.maxLPar == nil || math.IsInf(l.maxL, 0) || math.IsNaN(l.maxL) {
		return fmt.Errorf("L-BFGS-B: no finite log posterior found (%v)", l.status)
	}
	if l.status.Code != lbfgsb.SUCCESS {
		log.Warningf("L-BFGS-B did not converge: %v", l.status)
	}
	return nil
}
