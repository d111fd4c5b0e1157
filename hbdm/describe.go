package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/store"
)

// formatFloat formats an estimate, NA for missing values.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// listModels prints the bundled models. Models with a native
// implementation are marked with *.
func listModels(w io.Writer) error {
	specs, err := modelspec.Bundled()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "model\ttype\ttask")
	for _, s := range specs {
		name := s.FullName()
		if hasNative(name) {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, s.Variant.Desc(), s.Task.Desc)
	}
	return tw.Flush()
}

// printInfo prints a model description.
func printInfo(w io.Writer, name string) error {
	s, err := loadModel(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Name: %s\n", s.FullName())
	fmt.Fprintf(w, "Task: %s\n", s.Task.Desc)
	fmt.Fprintf(w, "Model: %s\n", s.Model.Desc)
	fmt.Fprintf(w, "Type: %s\n", s.Variant.Desc())
	if hasNative(s.FullName()) {
		fmt.Fprintln(w, "Native implementation: yes")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nData columns:")
	for _, c := range s.DataColumns {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.Desc)
	}
	fmt.Fprintln(tw, "\nParameters:\t[lower, plausible, upper]")
	for _, p := range s.Parameters {
		fmt.Fprintf(tw, "  %s\t[%s, %s, %s]\t%s\n", p.Name,
			formatFloat(p.Lower), formatFloat(p.Plausible), formatFloat(p.Upper), p.Desc)
	}
	if len(s.Regressors) > 0 {
		fmt.Fprintln(tw, "\nRegressors:")
		for _, r := range s.Regressors {
			fmt.Fprintf(tw, "  %s\trank %d\n", r.Name, r.Rank)
		}
	}
	if len(s.Postpreds) > 0 {
		fmt.Fprintf(tw, "\nPosterior predictions:\t%s\n", strings.Join(s.Postpreds, ", "))
	}
	if len(s.AdditionalArgs) > 0 {
		fmt.Fprintln(tw, "\nArguments:\tdefault")
		for _, a := range s.AdditionalArgs {
			fmt.Fprintf(tw, "  %s\t%v\t%s\n", a.Code, a.Default, a.Desc)
		}
	}
	if len(s.Contributors) > 0 {
		fmt.Fprintln(tw, "\nContributors:")
		for _, c := range s.Contributors {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.Email)
		}
	}
	return tw.Flush()
}

// listRuns prints the runs stored in a database, or the estimates of
// one run.
func listRuns(w io.Writer, path, id string) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if id != "" {
		t, err := db.Estimates(id)
		if err != nil {
			return err
		}
		return writeIndPars(w, t)
	}

	runs, err := db.Runs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tmodel\tcreated\tsubjects\tvb\tinit fallback")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\t%v\n", r.ID, r.Model,
			r.Created.Local().Format("2006-01-02 15:04:05"), r.NSubj, r.Settings.VB, r.InitFallback)
	}
	return tw.Flush()
}
