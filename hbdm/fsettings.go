package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"bitbucket.org/ccslab/hbdm/cache"
	"bitbucket.org/ccslab/hbdm/figure"
	"bitbucket.org/ccslab/hbdm/fit"
	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/native"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
	"bitbucket.org/ccslab/hbdm/stan"
	"bitbucket.org/ccslab/hbdm/store"
	"bitbucket.org/ccslab/hbdm/summary"
	"bitbucket.org/ccslab/hbdm/table"
)

// fitSettings stores settings of the fit command.
type fitSettings struct {
	model   string
	data    string
	backend string

	cmdstan   string
	stanDir   string
	workDir   string
	cachePath string

	outF      string
	dbF       string
	plotF     string
	saveDataF string

	opts *fit.Options
}

// newFitSettings initializes fitSettings from global variables
// (command-line arguments).
func newFitSettings() *fitSettings {
	opts := fit.DefaultOptions()
	opts.NIter = *niter
	opts.NWarmup = *nwarmup
	opts.NChain = *nchain
	opts.NCore = *ncore
	opts.NThin = *nthin
	opts.Inits = *inits
	opts.IndPars = *indPars
	opts.ModelRegressor = *modelRegressor
	opts.VB = *vb
	opts.IncPostpred = *incPostpred
	opts.Control = sampler.Control{
		AdaptDelta:   *adaptDelta,
		StepSize:     *stepsize,
		MaxTreeDepth: *maxTreeDepth,
	}
	opts.Args = parseArgs(*extraArgs)
	opts.Seed = *seed

	return &fitSettings{
		model:   *fitModel,
		data:    *fitData,
		backend: *backend,

		cmdstan:   *cmdstan,
		stanDir:   *stanDir,
		workDir:   *workDir,
		cachePath: *cacheF,

		outF:      *outF,
		dbF:       *dbF,
		plotF:     *plotF,
		saveDataF: *saveData,

		opts: opts,
	}
}

// parseArgs converts key=value arguments. Values stay strings and
// are parsed by the preprocessors.
func parseArgs(m map[string]string) preprocess.Args {
	if len(m) == 0 {
		return nil
	}
	args := make(preprocess.Args, len(m))
	for k, v := range m {
		args[k] = v
	}
	return args
}

// loadModel reads a model description file, or looks up a bundled
// model by name.
func loadModel(name string) (*modelspec.Spec, error) {
	if st, err := os.Stat(name); err == nil && !st.IsDir() {
		log.Infof("Reading model description from %s", name)
		return modelspec.LoadFile(name)
	}
	return modelspec.Lookup(name)
}

// hasNative reports whether the native backend implements a model.
func hasNative(name string) bool {
	for _, m := range native.Models() {
		if m == name {
			return true
		}
	}
	return false
}

// openCache opens the compiled model cache. A cache that cannot be
// opened is not an error: models are then compiled without it.
func openCache(path string) *cache.Cache {
	c, err := cache.Open(path)
	if err != nil {
		log.Noticef("Compiled model cache unavailable (%v), continuing without it", err)
		return nil
	}
	return c
}

// createSampler creates the sampling backend. The returned function
// releases its resources.
func (fs *fitSettings) createSampler(spec *modelspec.Spec) (sampler.Sampler, func(), error) {
	switch fs.backend {
	case "native":
		if !hasNative(spec.FullName()) {
			return nil, nil, fmt.Errorf("model %s is not implemented natively (available: %s), use --backend cmdstan",
				spec.FullName(), strings.Join(native.Models(), ", "))
		}
		log.Info("Using native sampler")
		return native.New(), func() {}, nil
	case "cmdstan":
		if fs.cmdstan == "" {
			return nil, nil, fmt.Errorf("CmdStan directory is not set (--cmdstan or CMDSTAN)")
		}
		s, err := stan.New(fs.cmdstan, fs.stanDir, fs.workDir, nil)
		if err != nil {
			return nil, nil, err
		}
		path := fs.cachePath
		if path == "" {
			path = filepath.Join(s.WorkDir, "cache.db")
		}
		c := openCache(path)
		s.Cache = c
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		s.Context = ctx
		return s, func() {
			stop()
			if c != nil {
				c.Close()
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend: %s", fs.backend)
}

// run fits the model.
func (fs *fitSettings) run() (*fit.Result, error) {
	spec, err := loadModel(fs.model)
	if err != nil {
		return nil, err
	}
	smp, release, err := fs.createSampler(spec)
	if err != nil {
		return nil, err
	}
	defer release()

	opts := *fs.opts
	opts.Data = fs.data
	opts.Sampler = smp
	return fit.Run(spec, &opts)
}

// writeOutputs writes the estimates, the cleaned data, the database
// record and the figure.
func (fs *fitSettings) writeOutputs(res *fit.Result) error {
	var w io.Writer = os.Stdout
	if fs.outF != "" {
		f, err := os.Create(fs.outF)
		if err != nil {
			return fmt.Errorf("creating estimates file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeIndPars(w, res.IndPars); err != nil {
		return err
	}

	if fs.saveDataF != "" {
		f, err := os.Create(fs.saveDataF)
		if err != nil {
			return fmt.Errorf("creating data file: %w", err)
		}
		if err := res.Table.Write(f, '\t'); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if fs.dbF != "" {
		db, err := store.Open(fs.dbF)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Save(res); err != nil {
			return err
		}
		log.Noticef("Run id: %s", res.RunID)
	}

	if fs.plotF != "" {
		nChain := res.Settings.NChain
		if res.Settings.VB {
			nChain = 1
		}
		if err := figure.Posterior(res.Spec, res.Draws, nChain, fs.plotF); err != nil {
			return fmt.Errorf("plotting: %w", err)
		}
		log.Infof("Saved posterior plot to %s", fs.plotF)
	}
	return nil
}

// writeIndPars writes the individual estimates as a tab separated
// table with a subjID column.
func writeIndPars(w io.Writer, t *summary.Table) error {
	columns := append([]string{"subjID"}, t.Parameters...)
	rows := make([][]string, len(t.Subjects))
	for i, subj := range t.Subjects {
		row := []string{subj}
		for _, v := range t.Values[i] {
			row = append(row, formatFloat(v))
		}
		rows[i] = row
	}
	out, err := table.New(columns, rows)
	if err != nil {
		return err
	}
	return out.Write(w, '\t')
}
