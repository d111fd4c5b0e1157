package sampler

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Array holds the draws of one quantity, row-major, the leading
// dimension indexing draws. A scalar quantity has Shape [ndraws].
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates an array of the given shape.
func NewArray(shape ...int) *Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, n)}
}

// NDraws returns the number of draws.
func (a *Array) NDraws() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Size returns the number of values per draw.
func (a *Array) Size() int {
	n := 1
	for _, d := range a.Shape[1:] {
		n *= d
	}
	return n
}

// Draw returns the values of draw i.
func (a *Array) Draw(i int) []float64 {
	n := a.Size()
	return a.Data[i*n : (i+1)*n]
}

// offset converts a per-draw index to an offset within a draw.
func (a *Array) offset(idx []int) (int, error) {
	dims := a.Shape[1:]
	if len(idx) != len(dims) {
		return 0, fmt.Errorf("index %v for shape %v", idx, a.Shape)
	}
	off := 0
	for k, i := range idx {
		if i < 0 || i >= dims[k] {
			return 0, fmt.Errorf("index %v out of range for shape %v", idx, a.Shape)
		}
		off = off*dims[k] + i
	}
	return off, nil
}

// Trace returns the draws of one element, e.g. Trace(2) for the third
// subject of a per-subject parameter.
func (a *Array) Trace(idx ...int) ([]float64, error) {
	off, err := a.offset(idx)
	if err != nil {
		return nil, err
	}
	n := a.Size()
	v := make([]float64, a.NDraws())
	for d := range v {
		v[d] = a.Data[d*n+off]
	}
	return v, nil
}

// Set stores a value of one draw.
func (a *Array) Set(draw int, v float64, idx ...int) error {
	off, err := a.offset(idx)
	if err != nil {
		return err
	}
	a.Data[draw*a.Size()+off] = v
	return nil
}

// Append concatenates the draws of b to a. Shapes must agree beyond
// the draw dimension.
func (a *Array) Append(b *Array) error {
	if len(a.Shape) != len(b.Shape) {
		return fmt.Errorf("cannot append shape %v to %v", b.Shape, a.Shape)
	}
	for k := 1; k < len(a.Shape); k++ {
		if a.Shape[k] != b.Shape[k] {
			return fmt.Errorf("cannot append shape %v to %v", b.Shape, a.Shape)
		}
	}
	a.Data = append(a.Data, b.Data...)
	a.Shape[0] += b.Shape[0]
	return nil
}

// Draws maps quantity names to their draws.
type Draws map[string]*Array

// Append concatenates draws of another chain.
func (d Draws) Append(o Draws) error {
	for k, v := range o {
		a, ok := d[k]
		if !ok {
			d[k] = &Array{Shape: append([]int(nil), v.Shape...), Data: append([]float64(nil), v.Data...)}
			continue
		}
		if err := a.Append(v); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// Mean returns a single-draw Draws holding the mean over draws of
// every quantity.
func (d Draws) Mean() Draws {
	m := make(Draws, len(d))
	for k, a := range d {
		shape := append([]int{1}, a.Shape[1:]...)
		r := NewArray(shape...)
		n := a.NDraws()
		if n > 0 {
			for i := 0; i < n; i++ {
				floats.Add(r.Data, a.Draw(i))
			}
			floats.Scale(1/float64(n), r.Data)
		}
		m[k] = r
	}
	return m
}
