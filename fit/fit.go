// Package fit runs a model on trial data: it cleans and groups the
// data, builds model input, samples the posterior and summarizes it.
package fit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/summary"
	"bitbucket.org/ccslab/hbdm/table"
)

var log = logging.MustGetLogger("fit")

// ErrNoSampler is returned when Options.Sampler is not set.
var ErrNoSampler = errors.New("no sampler backend configured")

// Settings are the serializable fitting settings.
type Settings struct {
	NIter          int             `json:"niter"`
	NWarmup        int             `json:"nwarmup"`
	NChain         int             `json:"nchain"`
	NCore          int             `json:"ncore"`
	NThin          int             `json:"nthin"`
	Inits          string          `json:"inits"`
	IndPars        string          `json:"indPars"`
	ModelRegressor bool            `json:"modelRegressor"`
	VB             bool            `json:"vb"`
	IncPostpred    bool            `json:"incPostpred"`
	Control        sampler.Control `json:"control"`
	Args           preprocess.Args `json:"args,omitempty"`
	Seed           int64           `json:"seed"`
}

// Options configure a fitting call.
type Options struct {
	// Data is a *table.Table, a file name or "example".
	Data interface{}
	Settings
	// Sampler is the posterior sampling backend.
	Sampler sampler.Sampler
	// Preprocess overrides the registered preprocessor of the task.
	Preprocess preprocess.Func
}

// DefaultOptions returns the default fitting options.
func DefaultOptions() *Options {
	return &Options{
		Settings: Settings{
			NIter:   4000,
			NWarmup: 1000,
			NChain:  4,
			NCore:   1,
			NThin:   1,
			Inits:   "vb",
			IndPars: "mean",
			Control: sampler.DefaultControl(),
		},
	}
}

// Result is a completed fit.
type Result struct {
	RunID   string
	Model   string
	Spec    *modelspec.Spec
	Created time.Time
	// Settings are the settings actually used (NCore resolved).
	Settings Settings
	// Table is the cleaned data with its original column labels.
	Table   *table.Table
	Dropped []table.Dropped
	Info    *shape.Info
	Data    preprocess.Data
	// Draws are the posterior draws of all requested quantities.
	Draws      sampler.Draws
	IndPars    *summary.Table
	Regressors map[string]*summary.Regressor
	// InitFallback is set when approximate initial values were
	// requested but could not be computed.
	InitFallback bool
}

func (opts *Options) check() error {
	switch {
	case opts.Sampler == nil:
		return ErrNoSampler
	case opts.NChain < 1:
		return fmt.Errorf("nchain must be positive, got %d", opts.NChain)
	case opts.NThin < 1:
		return fmt.Errorf("nthin must be positive, got %d", opts.NThin)
	case !opts.VB && (opts.NWarmup < 0 || opts.NWarmup >= opts.NIter):
		return fmt.Errorf("nwarmup (%d) must be in [0, niter=%d)", opts.NWarmup, opts.NIter)
	}
	return nil
}

// Run fits a model. Nothing is returned on error.
func Run(spec *modelspec.Spec, opts *Options) (*Result, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	if err := sampler.CheckRequest(spec, opts.ModelRegressor, opts.IncPostpred); err != nil {
		return nil, err
	}
	// settings are checked before any expensive step
	measure, err := summary.ParseMeasure(opts.IndPars)
	if err != nil {
		return nil, err
	}
	inits, err := sampler.ParseInits(opts.Inits)
	if err != nil {
		return nil, err
	}
	if inits.Kind == sampler.User && len(inits.Values) != len(spec.Parameters) {
		return nil, &sampler.InitLengthError{Got: len(inits.Values), Want: len(spec.Parameters)}
	}

	t, err := table.Load(opts.Data, spec)
	if err != nil {
		return nil, err
	}
	if err := t.Require(spec.ColumnNames()); err != nil {
		return nil, err
	}
	dropped := t.DropMissing(spec.ColumnNames())
	info, err := shape.Infer(t, spec.Variant)
	if err != nil {
		return nil, err
	}

	args := opts.Args.With(spec.Defaults())
	pre := opts.Preprocess
	if pre == nil {
		if pre, err = preprocess.Lookup(spec.PreprocessKey()); err != nil {
			return nil, err
		}
	}
	data, err := pre(t, info, args)
	if err != nil {
		return nil, fmt.Errorf("preprocessing %s: %w", spec.FullName(), err)
	}

	settings := opts.Settings
	settings.Args = args
	settings.NCore = sampler.NCores(opts.NCore)
	req := &sampler.Request{
		Model:   spec,
		Data:    data,
		Pars:    sampler.Pars(spec, opts.ModelRegressor, opts.IncPostpred),
		NChain:  settings.NChain,
		NIter:   settings.NIter,
		NWarmup: settings.NWarmup,
		NThin:   settings.NThin,
		NCore:   settings.NCore,
		Control: settings.Control,
		Seed:    settings.Seed,
	}

	res := &Result{
		RunID:   uuid.New().String(),
		Model:   spec.FullName(),
		Spec:    spec,
		Created: time.Now(),
		Dropped: dropped,
		Info:    info,
		Data:    data,
	}

	switch {
	case inits.Kind == sampler.VB && opts.VB:
		log.Debug("Approximate fit requested, using random initial values")
	case inits.Kind == sampler.VB:
		log.Notice("Obtaining initial values from variational approximation")
		req.Inits, res.InitFallback = sampler.VariationalInits(opts.Sampler, req, info.NSubj)
	default:
		if req.Inits, err = inits.Generate(spec, info.NSubj); err != nil {
			return nil, err
		}
	}

	printDetails(spec, opts.Data, &settings, info, args)

	if opts.VB {
		res.Draws, err = opts.Sampler.Approximate(req)
	} else {
		res.Draws, err = opts.Sampler.Sample(req)
	}
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", spec.FullName(), err)
	}

	if opts.IncPostpred {
		summary.MaskPostpreds(res.Draws, spec.Postpreds)
	}
	res.IndPars, err = summary.IndPars(measure, res.Draws, spec.SummaryNames(), info.Subjects, spec.IsSingle())
	if err != nil {
		return nil, err
	}
	if opts.ModelRegressor {
		if res.Regressors, err = summary.Regressors(measure, res.Draws, spec.RegressorRanks()); err != nil {
			return nil, err
		}
	}

	t.Revert()
	res.Table = t
	res.Settings = settings
	log.Notice("Model fitting is complete")
	return res, nil
}

// printDetails logs the model, data and sampler settings of a run at
// the default (notice) level.
func printDetails(spec *modelspec.Spec, source interface{}, s *Settings, info *shape.Info, args preprocess.Args) {
	log.Noticef("Model  = %s", spec.FullName())
	if src, ok := source.(string); ok {
		log.Noticef("Data   = %s", src)
	} else {
		log.Notice("Data   = <table>")
	}
	log.Notice("Details:")
	if s.VB {
		log.Notice(" Using variational inference")
	} else {
		log.Noticef(" # of chains                    = %d", s.NChain)
		log.Noticef(" # of cores used                = %d", s.NCore)
		log.Noticef(" # of MCMC samples (per chain)  = %d", s.NIter)
		log.Noticef(" # of burn-in samples           = %d", s.NWarmup)
	}
	log.Noticef(" # of subjects                  = %d", info.NSubj)
	switch spec.Variant {
	case modelspec.MultipleB:
		log.Noticef(" # of (max) blocks per subject  = %d", info.BMax)
		log.Noticef(" # of (max) trials per block    = %d", info.TMax)
	case modelspec.Single:
		log.Noticef(" # of trials (for this subject) = %d", info.TMax)
	default:
		log.Noticef(" # of (max) trials per subject  = %d", info.TMax)
	}

	codes := make([]string, 0, len(spec.AdditionalArgs))
	for _, a := range spec.AdditionalArgs {
		codes = append(codes, a.Code)
	}
	sort.Strings(codes)
	for _, c := range codes {
		log.Noticef(" %-30s = %v", "`"+c+"` is set to", args[c])
	}
	if s.ModelRegressor {
		log.Noticef(" Extracting model-based regressors: %s", strings.Join(spec.RegressorNames(), ", "))
	}
}
