// Package summary reduces posterior draws to per-subject point
// estimates and summarized model regressors.
package summary

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"bitbucket.org/ccslab/hbdm/sampler"
)

// ErrUnknownMeasure is returned for unsupported point estimates.
var ErrUnknownMeasure = errors.New("indPars must be one of mean, median or mode")

// Measure reduces draws to a point estimate.
type Measure func(x []float64) float64

// Mean returns the sample mean.
func Mean(x []float64) float64 {
	return stat.Mean(x, nil)
}

// Median returns the sample median; for an even number of values it
// is the mean of the two middle values.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Mode returns the most frequent value (the smallest one on ties).
func Mode(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	best, bestN := s[0], 0
	for i := 0; i < len(s); {
		j := i + 1
		for j < len(s) && s[j] == s[i] {
			j++
		}
		if j-i > bestN {
			best, bestN = s[i], j-i
		}
		i = j
	}
	return best
}

// ParseMeasure returns the measure named mean, median or mode.
func ParseMeasure(name string) (Measure, error) {
	switch name {
	case "mean":
		return Mean, nil
	case "median":
		return Median, nil
	case "mode":
		return Mode, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMeasure, name)
}

// finite drops NaN values, e.g. masked posterior predictions.
func finite(x []float64) []float64 {
	var r []float64
	for _, v := range x {
		if !math.IsNaN(v) {
			r = append(r, v)
		}
	}
	return r
}

// Table holds point estimates, one row per subject and one column per
// parameter in declared order.
type Table struct {
	Subjects   []string    `json:"subjects"`
	Parameters []string    `json:"parameters"`
	Values     [][]float64 `json:"values"`
}

// Get returns the estimate of a parameter for a subject.
func (t *Table) Get(subject, parameter string) (float64, bool) {
	for i, s := range t.Subjects {
		if s != subject {
			continue
		}
		for j, p := range t.Parameters {
			if p == parameter {
				return t.Values[i][j], true
			}
		}
	}
	return 0, false
}

// IndPars summarizes individual parameters. For single-subject models
// parameters are scalar per draw; otherwise they have one element per
// subject.
func IndPars(measure Measure, draws sampler.Draws, pars, subjects []string, single bool) (*Table, error) {
	t := &Table{
		Subjects:   subjects,
		Parameters: pars,
		Values:     make([][]float64, len(subjects)),
	}
	for i := range t.Values {
		t.Values[i] = make([]float64, len(pars))
	}
	for j, p := range pars {
		a, ok := draws[p]
		if !ok {
			return nil, fmt.Errorf("no draws of %s", p)
		}
		if single {
			if a.Size() != 1 || len(subjects) != 1 {
				return nil, fmt.Errorf("%s: expected a scalar for one subject, got shape %v", p, a.Shape)
			}
			t.Values[0][j] = measure(a.Data)
			continue
		}
		if len(a.Shape) != 2 || a.Shape[1] != len(subjects) {
			return nil, fmt.Errorf("%s: expected shape [draws %d], got %v", p, len(subjects), a.Shape)
		}
		for i := range subjects {
			tr, err := a.Trace(i)
			if err != nil {
				return nil, err
			}
			t.Values[i][j] = measure(tr)
		}
	}
	return t, nil
}

// MaskPostpreds replaces the -1 padding of posterior predictions with
// NaN.
func MaskPostpreds(draws sampler.Draws, names []string) {
	for _, n := range names {
		a, ok := draws[n]
		if !ok {
			continue
		}
		for i, v := range a.Data {
			if v == -1 {
				a.Data[i] = math.NaN()
			}
		}
	}
}

// Regressor is a summarized model regressor.
type Regressor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Regressors reduces regressor draws over the draw dimension. The
// first rank dimensions after it (subject first) are kept and any
// further dimension is reduced as well.
func Regressors(measure Measure, draws sampler.Draws, ranks map[string]int) (map[string]*Regressor, error) {
	out := make(map[string]*Regressor, len(ranks))
	for name, rank := range ranks {
		a, ok := draws[name]
		if !ok {
			return nil, fmt.Errorf("no draws of regressor %s", name)
		}
		dims := a.Shape[1:]
		if rank > len(dims) {
			return nil, fmt.Errorf("regressor %s has shape %v, rank %d", name, a.Shape, rank)
		}
		keep := dims[:rank]
		n := 1
		for _, d := range keep {
			n *= d
		}
		inner := a.Size() / n

		r := &Regressor{Shape: append([]int(nil), keep...), Data: make([]float64, n)}
		buf := make([]float64, 0, a.NDraws()*inner)
		for k := 0; k < n; k++ {
			buf = buf[:0]
			for d := 0; d < a.NDraws(); d++ {
				draw := a.Draw(d)
				buf = append(buf, draw[k*inner:(k+1)*inner]...)
			}
			v := finite(buf)
			if len(v) == 0 {
				r.Data[k] = math.NaN()
				continue
			}
			r.Data[k] = measure(v)
		}
		out[name] = r
	}
	return out, nil
}

// At returns a summarized regressor value.
func (r *Regressor) At(idx ...int) float64 {
	off := 0
	for k, i := range idx {
		off = off*r.Shape[k] + i
	}
	return r.Data[off]
}
