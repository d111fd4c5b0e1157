package native

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/optimize"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/table"
)

func request(tst *testing.T, model, task string, cols []string, rows [][]string) *sampler.Request {
	spec, err := modelspec.Lookup(model)
	require.NoError(tst, err)
	t, err := table.New(cols, rows)
	require.NoError(tst, err)
	t.Normalize()
	info, err := shape.Infer(t, spec.Variant)
	require.NoError(tst, err)
	data, err := preprocess.Run(task, t, info, nil)
	require.NoError(tst, err)
	return &sampler.Request{
		Model:   spec,
		Data:    data,
		Pars:    sampler.Pars(spec, false, true),
		NChain:  2,
		NIter:   200,
		NWarmup: 100,
		NThin:   2,
		NCore:   2,
		Seed:    42,
	}
}

func banditRequest(tst *testing.T) *sampler.Request {
	return request(tst, "bandit2arm_delta", "bandit2arm",
		[]string{"subjID", "choice", "outcome"},
		[][]string{
			{"A", "1", "1"}, {"A", "2", "-1"}, {"A", "1", "1"},
			{"B", "2", "-1"}, {"B", "1", "1"},
		})
}

func TestBanditLikelihood(tst *testing.T) {
	req := banditRequest(tst)
	gen := optimize.BasicFloatParameterGenerator(rand.New(rand.NewSource(1)))
	m, err := newBandit2arm(req.Model, req.Data, gen)
	require.NoError(tst, err)

	b := m.(*bandit2arm)
	lse := func(a, b float64) float64 { return math.Log(math.Exp(a) + math.Exp(b)) }
	want := math.Log(0.5) + (0 - lse(0.5, 0)) + (0.5 - lse(0.5, -0.5))
	require.InDelta(tst, want, b.subjectLikelihood(0, []float64{0.5, 1}), 1e-12)
}

func TestBanditCache(tst *testing.T) {
	req := banditRequest(tst)
	gen := optimize.BasicFloatParameterGenerator(rand.New(rand.NewSource(1)))
	m, err := newBandit2arm(req.Model, req.Data, gen)
	require.NoError(tst, err)

	pars := m.GetFloatParameters()
	l0 := m.Likelihood()
	// the first subject parameter is the learning rate of subject A
	pars[4].Set(1.5)
	l1 := m.Likelihood()
	require.NotEqual(tst, l0, l1)
	pars[4].Set(0)
	require.InDelta(tst, l0, m.Likelihood(), 1e-12)
}

func TestSample(tst *testing.T) {
	req := banditRequest(tst)
	d, err := New().Sample(req)
	require.NoError(tst, err)

	require.Len(tst, d, len(req.Pars))
	require.Equal(tst, []int{100, 2}, d["A"].Shape)
	require.Equal(tst, []int{100}, d["mu_tau"].Shape)
	require.Equal(tst, []int{100, 2}, d["sigma"].Shape)
	require.Equal(tst, []int{100, 2, 3}, d["y_pred"].Shape)

	pad, err := d["y_pred"].Trace(1, 2)
	require.NoError(tst, err)
	for _, v := range pad {
		require.Equal(tst, -1.0, v)
	}
	a, err := d["A"].Trace(0)
	require.NoError(tst, err)
	for _, v := range a {
		require.True(tst, v >= 0 && v <= 1)
	}

	again, err := New().Sample(req)
	require.NoError(tst, err)
	require.Equal(tst, d["tau"].Data, again["tau"].Data)
}

func TestSampleInits(tst *testing.T) {
	req := banditRequest(tst)
	iv, err := sampler.Inits{Kind: sampler.Fixed}.Generate(req.Model, 2)
	require.NoError(tst, err)
	req.Inits = iv
	req.NChain = 1
	_, err = New().Sample(req)
	require.NoError(tst, err)

	req.Inits = sampler.InitValues{"mu_pr": []float64{0}}
	_, err = New().Sample(req)
	require.Error(tst, err)
}

func TestApproximate(tst *testing.T) {
	req := banditRequest(tst)
	req.Pars = nil
	d, err := New().Approximate(req)
	require.NoError(tst, err)
	require.Equal(tst, []int{1, 2}, d["mu_pr"].Shape)
	require.Equal(tst, []int{1, 2}, d["A_pr"].Shape)

	iv, fallback := sampler.VariationalInits(New(), req, 2)
	require.False(tst, fallback)
	require.Len(tst, iv["tau_pr"], 2)
}

func TestDDSingle(tst *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var rows [][]string
	for t := 0; t < 60; t++ {
		delay := []string{"1", "7", "30", "90", "180"}[t%5]
		amount := []string{"10.5", "13.4", "20", "30.9", "40"}[t%4]
		choice := "0"
		if rng.Float64() < 0.5 {
			choice = "1"
		}
		rows = append(rows, []string{"1", delay, amount, "0", "10", choice})
	}
	req := request(tst, "dd_hyperbolic_single", "dd_single",
		[]string{"subjID", "delay_later", "amount_later", "delay_sooner", "amount_sooner", "choice"}, rows)
	require.Equal(tst, []string{"k", "beta", "logK", "log_lik", "y_pred"}, req.Pars)

	d, err := New().Sample(req)
	require.NoError(tst, err)
	require.Equal(tst, []int{100}, d["k"].Shape)
	require.Equal(tst, []int{100, 60}, d["y_pred"].Shape)
	for i, k := range d["k"].Data {
		require.True(tst, k >= 0 && k <= 1)
		require.InDelta(tst, math.Log(k), d["logK"].Data[i], 1e-12)
	}

	req.Pars = nil
	a, err := New().Approximate(req)
	require.NoError(tst, err)
	require.Equal(tst, 1, a["beta"].NDraws())
	require.False(tst, math.IsNaN(a["log_lik"].Data[0]))
}

func TestUnknownModel(tst *testing.T) {
	req := banditRequest(tst)
	spec, err := modelspec.Lookup("igt_pvl_decay")
	require.NoError(tst, err)
	req.Model = spec
	_, err = New().Sample(req)
	require.Error(tst, err)
	require.Contains(tst, Models(), "bandit2arm_delta")
}
