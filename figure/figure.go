// Package figure plots posterior draws of group-level parameters.
package figure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/sampler"
)

// Number of histogram bins.
const bins = 30

// Quantities returns the names plotted for a model: group means of
// hierarchical models, the parameters of single-subject models.
func Quantities(spec *modelspec.Spec) []string {
	if spec.IsSingle() {
		return spec.ParameterNames()
	}
	var names []string
	for _, p := range spec.ParameterNames() {
		names = append(names, "mu_"+p)
	}
	return names
}

// Trace plots the draws of a scalar quantity, one line per chain.
func Trace(a *sampler.Array, name string, nChain int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "iteration"
	if nChain < 1 {
		nChain = 1
	}
	per := a.NDraws() / nChain
	for c := 0; c < nChain; c++ {
		pts := make(plotter.XYs, per)
		for i := range pts {
			pts[i].X = float64(i + 1)
			pts[i].Y = a.Draw(c*per + i)[0]
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.Color = plotutil.Color(c)
		p.Add(l)
	}
	return p, nil
}

// Histogram plots the normalized distribution of a scalar quantity.
func Histogram(a *sampler.Array, name string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = name
	p.Y.Label.Text = "density"
	h, err := plotter.NewHist(plotter.Values(a.Data), bins)
	if err != nil {
		return nil, err
	}
	h.Normalize(1)
	p.Add(h)
	return p, nil
}

// Posterior saves traces (left) and histograms (right) of the plotted
// quantities into one figure. The format follows the file extension.
func Posterior(spec *modelspec.Spec, draws sampler.Draws, nChain int, path string) error {
	names := Quantities(spec)
	plots := make([][]*plot.Plot, len(names))
	for i, n := range names {
		a, ok := draws[n]
		if !ok {
			return fmt.Errorf("no draws of %s", n)
		}
		if a.Size() != 1 || a.NDraws() == 0 {
			return fmt.Errorf("%s is not a scalar quantity (shape %v)", n, a.Shape)
		}
		tr, err := Trace(a, n, nChain)
		if err != nil {
			return err
		}
		h, err := Histogram(a, n)
		if err != nil {
			return err
		}
		plots[i] = []*plot.Plot{tr, h}
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	c, err := draw.NewFormattedCanvas(8*vg.Inch, vg.Length(len(names))*2.5*vg.Inch, format)
	if err != nil {
		return err
	}
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows: len(names),
		Cols: 2,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
