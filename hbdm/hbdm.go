/*

Hbdm fits hierarchical Bayesian models of decision-making tasks to
trial-by-trial data.

The basic usage looks like this:

	hbdm fit bandit2arm_delta data.txt

, this fits the two-armed bandit delta model with the built-in
sampler. Models are looked up among the bundled descriptions, or read
from a description file. Use "example" instead of a data file to fit
the example data of the task.

CmdStan models can be fitted with:

	hbdm fit --backend cmdstan --cmdstan ~/cmdstan --stan-dir stan_files igt_pvl_decay data.txt

To list the bundled models run:

	hbdm models

To see all the options run:

	hbdm --help-long

*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("hbdm")
var formatter = logging.MustStringFormatter(`%{message}`)
var colorFormatter = logging.MustStringFormatter(`%{color}%{message}%{color:reset}`)

// packages with loggers controlled by --loglevel
var loggers = []string{"hbdm", "fit", "modelspec", "table", "preprocess", "sampler",
	"native", "optimize", "stan", "cache", "store"}

// command-line options
var (
	// application
	app = kingpin.New("hbdm", "hierarchical Bayesian decision model fitting").Version(version)

	// technical
	nThreads = app.Flag("nt", "number of threads to use").Int()
	seed     = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")

	// fit
	fitCmd   = app.Command("fit", "fit a model to trial data")
	fitModel = fitCmd.Arg("model", "model name (e.g. bandit2arm_delta) or model description file").Required().String()
	fitData  = fitCmd.Arg("data", "tab separated data file or \"example\"").Required().String()

	niter          = fitCmd.Flag("niter", "number of iterations, including warm-up").Default("4000").Int()
	nwarmup        = fitCmd.Flag("nwarmup", "number of warm-up iterations").Default("1000").Int()
	nchain         = fitCmd.Flag("nchain", "number of chains").Default("4").Int()
	ncore          = fitCmd.Flag("ncore", "number of chains run in parallel (-1 for all cores)").Default("1").Int()
	nthin          = fitCmd.Flag("nthin", "keep every n-th draw").Default("1").Int()
	inits          = fitCmd.Flag("inits", "initial values: vb, random, fixed or comma separated values").Default("vb").String()
	indPars        = fitCmd.Flag("indpars", "point estimate of individual parameters (mean, median or mode)").Default("mean").String()
	modelRegressor = fitCmd.Flag("regressor", "extract model-based regressors").Bool()
	vb             = fitCmd.Flag("vb", "use variational approximation instead of sampling").Bool()
	incPostpred    = fitCmd.Flag("postpred", "include posterior predictions").Bool()
	adaptDelta     = fitCmd.Flag("adapt-delta", "target acceptance of the sampler").Default("0.95").Float64()
	stepsize       = fitCmd.Flag("stepsize", "initial step size of the sampler").Default("1").Float64()
	maxTreeDepth   = fitCmd.Flag("max-treedepth", "maximum tree depth of the sampler").Default("10").Int()
	extraArgs      = fitCmd.Flag("args", "additional model argument, key=value (e.g. payscale=100)").StringMap()

	backend  = fitCmd.Flag("backend", "sampling backend (native or cmdstan)").Default("native").Enum("native", "cmdstan")
	cmdstan  = fitCmd.Flag("cmdstan", "CmdStan installation directory").Envar("CMDSTAN").String()
	stanDir  = fitCmd.Flag("stan-dir", "directory with <model>.stan sources").Default("stan_files").String()
	workDir  = fitCmd.Flag("workdir", "directory for compiled models and sampler output").String()
	cacheF   = fitCmd.Flag("cache", "compiled model cache (default <workdir>/cache.db)").String()
	outF     = fitCmd.Flag("out", "write individual parameters to a file").String()
	jsonF    = fitCmd.Flag("json", "write json output to a file").String()
	dbF      = fitCmd.Flag("db", "store the results in a SQLite database").String()
	plotF    = fitCmd.Flag("plot", "plot group-level posteriors (.png, .svg or .pdf)").String()
	saveData = fitCmd.Flag("save-data", "write the cleaned data to a file").String()

	// models
	modelsCmd = app.Command("models", "list bundled models")

	// info
	infoCmd   = app.Command("info", "print a model description")
	infoModel = infoCmd.Arg("model", "model name or description file").Required().String()

	// describe
	describeCmd  = app.Command("describe", "validate and print a model description file")
	describeFile = describeCmd.Arg("file", "model description (yaml)").Required().ExistingFile()

	// runs
	runsCmd = app.Command("runs", "list runs stored in a database")
	runsDB  = runsCmd.Arg("db", "SQLite database").Required().ExistingFile()
	runsID  = runsCmd.Flag("id", "print the estimates of a run").String()
)

// setupLogging configures the backend, the format and the levels.
// The returned function closes the log file.
func setupLogging() func() {
	f := os.Stderr
	closeLog := func() {}
	if *outLogF != "" {
		var err error
		f, err = os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		closeLog = func() { f.Close() }
	}
	backend := logging.NewLogBackend(f, "", 0)
	logging.SetBackend(backend)

	if *outLogF == "" && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		logging.SetFormatter(colorFormatter)
	} else {
		logging.SetFormatter(formatter)
	}

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, module := range loggers {
		logging.SetLevel(level, module)
	}
	return closeLog
}

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	closeLog := setupLogging()
	defer closeLog()

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}

	runtime.GOMAXPROCS(*nThreads)

	var err error
	switch command {
	case fitCmd.FullCommand():
		log.Infof("Random seed=%v", *seed)
		effectiveNThreads := runtime.GOMAXPROCS(0)
		log.Infof("Using threads: %d.", effectiveNThreads)
		err = fitMain(effectiveNThreads)
	case modelsCmd.FullCommand():
		err = listModels(os.Stdout)
	case infoCmd.FullCommand():
		err = printInfo(os.Stdout, *infoModel)
	case describeCmd.FullCommand():
		err = printInfo(os.Stdout, *describeFile)
	case runsCmd.FullCommand():
		err = listRuns(os.Stdout, *runsDB, *runsID)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// fitMain runs the fit command and writes all the requested outputs.
func fitMain(effectiveNThreads int) error {
	startTime := time.Now()

	fs := newFitSettings()
	res, err := fs.run()
	if err != nil {
		return err
	}

	if err := fs.writeOutputs(res); err != nil {
		return err
	}

	deltaT := time.Since(startTime)
	log.Noticef("Running time: %v", deltaT)

	// output summary in json format
	if *jsonF != "" {
		summary := newFitSummary(res, fs.backend)
		summary.NThreads = effectiveNThreads
		summary.Version = version
		summary.CommandLine = os.Args
		summary.Seed = *seed
		summary.TotalTime = deltaT.Seconds()

		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
	return nil
}
