// Package sampler defines the interface between model fitting and a
// posterior sampler backend: what is requested, how initial values are
// generated, and the shape of the returned draws.
package sampler

import (
	"errors"
	"runtime"

	"github.com/op/go-logging"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/preprocess"
)

var log = logging.MustGetLogger("sampler")

var (
	// ErrNoRegressors is returned when regressors are requested for a
	// model without any.
	ErrNoRegressors = errors.New("model-based regressors are not available for this model")
	// ErrNoPostpreds is returned when posterior predictions are
	// requested for a model without any.
	ErrNoPostpreds = errors.New("posterior predictions are not yet available for this model")
)

// Sampler is a posterior sampling backend.
type Sampler interface {
	// Sample runs MCMC and returns draws of req.Pars,
	// concatenated over chains after warmup and thinning.
	Sample(req *Request) (Draws, error)
	// Approximate runs a fast approximation (e.g. variational
	// inference) and returns draws of all model quantities.
	Approximate(req *Request) (Draws, error)
}

// Control holds sampler tuning settings.
type Control struct {
	AdaptDelta   float64 `json:"adapt_delta"`
	StepSize     float64 `json:"stepsize"`
	MaxTreeDepth int     `json:"max_treedepth"`
}

// DefaultControl returns the default tuning settings.
func DefaultControl() Control {
	return Control{AdaptDelta: 0.95, StepSize: 1, MaxTreeDepth: 10}
}

// InitValues maps parameter names to initial values (float64 or
// []float64). A nil InitValues means random initialization.
type InitValues map[string]interface{}

// Request is everything a backend needs to fit a model.
type Request struct {
	Model   *modelspec.Spec
	Data    preprocess.Data
	Pars    []string
	Inits   InitValues
	NChain  int
	NIter   int
	NWarmup int
	NThin   int
	NCore   int
	Control Control
	Seed    int64
}

// NDraws returns the number of retained draws per chain.
func (req *Request) NDraws() int {
	thin := req.NThin
	if thin < 1 {
		thin = 1
	}
	n := req.NIter - req.NWarmup
	if n <= 0 {
		return 0
	}
	return (n + thin - 1) / thin
}

// CheckRequest validates regressor and posterior prediction requests
// against the model.
func CheckRequest(spec *modelspec.Spec, regressors, postpred bool) error {
	if regressors && len(spec.Regressors) == 0 {
		return ErrNoRegressors
	}
	if postpred && len(spec.Postpreds) == 0 {
		return ErrNoPostpreds
	}
	return nil
}

// Pars returns the quantities of interest: group-level means and
// scales (hierarchical models), individual parameters, log likelihood,
// and optionally regressors and posterior predictions.
func Pars(spec *modelspec.Spec, regressors, postpred bool) []string {
	var pars []string
	if !spec.IsSingle() {
		for _, p := range spec.ParameterNames() {
			pars = append(pars, "mu_"+p)
		}
		pars = append(pars, "sigma")
	}
	pars = append(pars, spec.SummaryNames()...)
	pars = append(pars, "log_lik")
	if regressors {
		pars = append(pars, spec.RegressorNames()...)
	}
	if postpred {
		pars = append(pars, spec.Postpreds...)
	}
	return pars
}

// NCores returns the number of cores to use. -1 or more than available
// means all cores.
func NCores(requested int) int {
	n := runtime.NumCPU()
	if requested == -1 || requested > n {
		return n
	}
	return requested
}
