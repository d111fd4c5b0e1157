package preprocess

import (
	"fmt"
	"math"

	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/table"
)

// Row gives access to numeric cells of one trial.
type Row struct {
	t   *table.Table
	i   int
	err *error
}

// Get returns the value of a (normalized) column. Errors are recorded
// and reported by the engine once the field is filled.
func (r Row) Get(col string) float64 {
	v, err := r.t.Floats(col)
	if err != nil {
		if *r.err == nil {
			*r.err = err
		}
		return math.NaN()
	}
	return v[r.i]
}

// Field is one padded output array.
type Field struct {
	// Name is the key in Data.
	Name string
	// Column is the normalized input column. It is ignored when
	// Value is set.
	Column string
	// Transform names a registered value transform applied to the
	// column value.
	Transform string
	// Value computes the cell from a trial row.
	Value func(r Row) float64
	// Int fields produce integer arrays.
	Int bool
	// Fill is the padding value.
	Fill float64
}

func (f *Field) value(r Row) (float64, error) {
	if f.Value != nil {
		return f.Value(r), nil
	}
	v := r.Get(f.Column)
	if f.Transform != "" {
		tr, ok := transforms[f.Transform]
		if !ok {
			return 0, fmt.Errorf("%w: unknown transform %q", ErrInternal, f.Transform)
		}
		v = tr(v)
	}
	return v, nil
}

// Header selects the dimension keys written with the fields.
type Header int

const (
	// HeaderFull writes N, T and Tsubj (and B, Bsubj for
	// multi-block data).
	HeaderFull Header = iota
	// HeaderN writes N only.
	HeaderN
	// HeaderNone writes nothing.
	HeaderNone
)

// Layout describes a preprocessor declaratively: a set of padded
// fields followed by named plugins that add derived entries.
type Layout struct {
	Header  Header
	Fields  []Field
	Plugins []string
	// Extra is called last with the data built so far.
	Extra func(t *table.Table, info *shape.Info, args Args, data Data) error
}

// Func returns the layout as a preprocessor.
func (l Layout) Func() Func {
	return l.Build
}

// Build runs the layout on grouped data.
func (l Layout) Build(t *table.Table, info *shape.Info, args Args) (Data, error) {
	data := Data{}
	switch l.Header {
	case HeaderFull:
		data["N"] = info.NSubj
		data["T"] = info.TMax
		if info.MultiBlock() {
			data["B"] = info.BMax
			data["Bsubj"] = append([]int(nil), info.BSubjs...)
			data["Tsubj"] = info.PaddedTSubjsBlock()
		} else {
			data["Tsubj"] = append([]int(nil), info.TSubjs...)
		}
	case HeaderN:
		data["N"] = info.NSubj
	}

	for i := range l.Fields {
		f := &l.Fields[i]
		var (
			v   interface{}
			err error
		)
		if info.MultiBlock() {
			v, err = Pad3D(t, info, f)
		} else {
			v, err = Pad2D(t, info, f)
		}
		if err != nil {
			return nil, err
		}
		data[f.Name] = v
	}

	for _, name := range l.Plugins {
		p, ok := plugins[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown plugin %q", ErrInternal, name)
		}
		if err := p(t, info, args, data); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if l.Extra != nil {
		if err := l.Extra(t, info, args, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// cell converts a value for an integer or real field.
func cell(f *Field, v float64) (float64, error) {
	if f.Int && v != math.Trunc(v) {
		return 0, fmt.Errorf("%s: non-integer value %v", f.Name, v)
	}
	return v, nil
}

// fill writes the values of rows into dst.
func fill(t *table.Table, f *Field, rows []int, dst []float64) error {
	var err error
	for j, i := range rows {
		v, ferr := f.value(Row{t: t, i: i, err: &err})
		if ferr != nil {
			return ferr
		}
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if dst[j], err = cell(f, v); err != nil {
			return err
		}
	}
	return nil
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Pad2D fills an NSubj x TMax array with per-subject trial values,
// padded with the field's fill value.
func Pad2D(t *table.Table, info *shape.Info, f *Field) (interface{}, error) {
	m := make([][]float64, info.NSubj)
	for s, rows := range info.Rows {
		if len(rows) > info.TMax {
			return nil, fmt.Errorf("%w: subject %s has %d trials, maximum is %d",
				ErrInternal, info.Subjects[s], len(rows), info.TMax)
		}
		m[s] = filled(info.TMax, f.Fill)
		if err := fill(t, f, rows, m[s]); err != nil {
			return nil, err
		}
	}
	if f.Int {
		return toInt2(m), nil
	}
	return m, nil
}

// Pad3D fills an NSubj x BMax x TMax array. Blocks a subject does not
// have are left at the fill value.
func Pad3D(t *table.Table, info *shape.Info, f *Field) (interface{}, error) {
	m := make([][][]float64, info.NSubj)
	for s := range m {
		if info.BSubjs[s] == 0 || info.BSubjs[s] > info.BMax {
			return nil, fmt.Errorf("%w: subject %s has %d blocks", ErrInternal, info.Subjects[s], info.BSubjs[s])
		}
		m[s] = make([][]float64, info.BMax)
		for b := range m[s] {
			m[s][b] = filled(info.TMax, f.Fill)
		}
		for b, rows := range info.BlockRows[s] {
			if len(rows) == 0 || len(rows) > info.TMax {
				return nil, fmt.Errorf("%w: subject %s block %s has %d trials",
					ErrInternal, info.Subjects[s], info.Blocks[s][b], len(rows))
			}
			if err := fill(t, f, rows, m[s][b]); err != nil {
				return nil, err
			}
		}
	}
	if f.Int {
		return toInt3(m), nil
	}
	return m, nil
}

func toInt1(v []float64) []int {
	r := make([]int, len(v))
	for i, x := range v {
		r[i] = int(x)
	}
	return r
}

func toInt2(m [][]float64) [][]int {
	r := make([][]int, len(m))
	for i, row := range m {
		r[i] = toInt1(row)
	}
	return r
}

func toInt3(m [][][]float64) [][][]int {
	r := make([][][]int, len(m))
	for i, x := range m {
		r[i] = toInt2(x)
	}
	return r
}

// column returns the values of a column for the given rows.
func column(t *table.Table, col string, rows []int) ([]float64, error) {
	all, err := t.Floats(col)
	if err != nil {
		return nil, err
	}
	v := make([]float64, len(rows))
	for j, i := range rows {
		v[j] = all[i]
	}
	return v, nil
}
