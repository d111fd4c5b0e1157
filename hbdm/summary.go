package main

import (
	"bitbucket.org/ccslab/hbdm/fit"
	"bitbucket.org/ccslab/hbdm/summary"
)

// CallSummary stores information on the program call.
type CallSummary struct {
	// Version stores hbdm version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Time is the computations time in seconds.
	TotalTime float64 `json:"time"`
}

// FitSummary stores the summary of a fit.
type FitSummary struct {
	CallSummary
	RunID   string `json:"runID"`
	Model   string `json:"model"`
	Backend string `json:"backend"`
	// NSubj is the number of subjects after data cleaning.
	NSubj int `json:"nSubj"`
	// Dropped is the number of rows removed for missing values.
	Dropped      int          `json:"dropped"`
	InitFallback bool         `json:"initFallback,omitempty"`
	Settings     fit.Settings `json:"settings"`
	// IndPars are the point estimates of individual parameters.
	IndPars    *summary.Table                `json:"indPars"`
	Regressors map[string]*summary.Regressor `json:"regressors,omitempty"`
}

// newFitSummary creates a summary of a fitting result.
func newFitSummary(res *fit.Result, backend string) *FitSummary {
	return &FitSummary{
		RunID:        res.RunID,
		Model:        res.Model,
		Backend:      backend,
		NSubj:        res.Info.NSubj,
		Dropped:      len(res.Dropped),
		InitFallback: res.InitFallback,
		Settings:     res.Settings,
		IndPars:      res.IndPars,
		Regressors:   res.Regressors,
	}
}
