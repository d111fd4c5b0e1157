package summary

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/sampler"
)

func TestMeasures(tst *testing.T) {
	x := []float64{5, 1, 4, 2, 3}
	for _, name := range []string{"mean", "median"} {
		m, err := ParseMeasure(name)
		require.NoError(tst, err)
		require.Equal(tst, 3.0, m(x), name)
	}
	require.Equal(tst, 2.5, Median([]float64{4, 1, 2, 3}))
	require.Equal(tst, 2.0, Mode([]float64{1, 2, 2, 3}))
	require.True(tst, math.IsNaN(Mode(nil)))
	require.True(tst, math.IsNaN(Median(nil)))

	_, err := ParseMeasure("max")
	require.True(tst, errors.Is(err, ErrUnknownMeasure))
}

func TestIndPars(tst *testing.T) {
	draws := sampler.Draws{
		// 3 draws, 2 subjects
		"A":   {Shape: []int{3, 2}, Data: []float64{0.1, 0.5, 0.2, 0.6, 0.3, 0.7}},
		"tau": {Shape: []int{3, 2}, Data: []float64{1, 2, 1, 2, 1, 2}},
	}
	t, err := IndPars(Mean, draws, []string{"A", "tau"}, []string{"s1", "s2"}, false)
	require.NoError(tst, err)
	require.Equal(tst, []string{"A", "tau"}, t.Parameters)
	require.InDelta(tst, 0.2, t.Values[0][0], 1e-12)
	require.InDelta(tst, 0.6, t.Values[1][0], 1e-12)
	v, ok := t.Get("s2", "tau")
	require.True(tst, ok)
	require.Equal(tst, 2.0, v)
	_, ok = t.Get("s3", "tau")
	require.False(tst, ok)

	_, err = IndPars(Mean, draws, []string{"A", "beta"}, []string{"s1", "s2"}, false)
	require.Error(tst, err)
	_, err = IndPars(Mean, draws, []string{"A"}, []string{"s1", "s2", "s3"}, false)
	require.Error(tst, err)
}

func TestIndParsSingle(tst *testing.T) {
	draws := sampler.Draws{
		"k":    {Shape: []int{4}, Data: []float64{1, 2, 3, 4}},
		"logK": {Shape: []int{4}, Data: []float64{0, 0, 0, 0}},
	}
	t, err := IndPars(Median, draws, []string{"k", "logK"}, []string{"7"}, true)
	require.NoError(tst, err)
	require.Equal(tst, [][]float64{{2.5, 0}}, t.Values)
}

func TestMaskPostpreds(tst *testing.T) {
	draws := sampler.Draws{
		"y_pred": {Shape: []int{1, 3}, Data: []float64{1, -1, 2}},
		"A":      {Shape: []int{1}, Data: []float64{-1}},
	}
	MaskPostpreds(draws, []string{"y_pred", "missing"})
	require.True(tst, math.IsNaN(draws["y_pred"].Data[1]))
	require.Equal(tst, 2.0, draws["y_pred"].Data[2])
	require.Equal(tst, -1.0, draws["A"].Data[0])
}

func TestRegressors(tst *testing.T) {
	// 2 draws, 2 subjects, 3 trials
	a := &sampler.Array{Shape: []int{2, 2, 3}, Data: []float64{
		1, 2, 3, 4, 5, 6,
		3, 4, 5, 6, 7, 8,
	}}
	draws := sampler.Draws{"ev": a}

	r, err := Regressors(Mean, draws, map[string]int{"ev": 2})
	require.NoError(tst, err)
	require.Equal(tst, []int{2, 3}, r["ev"].Shape)
	require.Equal(tst, []float64{2, 3, 4, 5, 6, 7}, r["ev"].Data)
	require.Equal(tst, 7.0, r["ev"].At(1, 2))
	require.Equal(tst, 6.0, r["ev"].At(1, 1))

	r, err = Regressors(Mean, draws, map[string]int{"ev": 1})
	require.NoError(tst, err)
	require.Equal(tst, []int{2}, r["ev"].Shape)
	require.Equal(tst, []float64{3, 6}, r["ev"].Data)

	_, err = Regressors(Mean, draws, map[string]int{"ev": 3})
	require.Error(tst, err)
	_, err = Regressors(Mean, draws, map[string]int{"pe": 2})
	require.Error(tst, err)
}

func TestModeTies(tst *testing.T) {
	distinct := []float64{0.31, 0.12, 0.57, 0.44, 0.29, 0.91, 0.05, 0.66}
	for i := 0; i < 50; i++ {
		require.Equal(tst, 0.05, Mode(distinct))
	}
	require.Equal(tst, 1.0, Mode([]float64{3, 1, 3, 1, 2}))
	require.Equal(tst, 3.0, Mode([]float64{3, 1, 3, 3, 1, 2}))
	require.Equal(tst, 0.31, distinct[0], "input is not reordered")
}
