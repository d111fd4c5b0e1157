package native

import (
	"fmt"
	"math"
	"math/rand"

	"bitbucket.org/ccslab/hbdm/dist"
	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/optimize"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
)

// ddSingle is the hyperbolic discounting model of one subject:
// choosing the later option has probability
// logistic(beta * (V_later - V_sooner)) with V = amount / (1 + k*delay).
type ddSingle struct {
	spec       *modelspec.Spec
	k, beta    float64
	parameters optimize.FloatParameters

	delayLater, amountLater   []float64
	delaySooner, amountSooner []float64
	choice                    []int
}

func newDDSingle(spec *modelspec.Spec, data preprocess.Data, gen optimize.FloatParameterGenerator) (model, error) {
	m := &ddSingle{spec: spec, k: spec.Parameters[0].Plausible, beta: spec.Parameters[1].Plausible}
	t, err := dataInt(data, "Tsubj")
	if err != nil {
		return nil, err
	}
	for name, dst := range map[string]*[]float64{
		"delay_later":   &m.delayLater,
		"amount_later":  &m.amountLater,
		"delay_sooner":  &m.delaySooner,
		"amount_sooner": &m.amountSooner,
	} {
		v, ok := data[name].([]float64)
		if !ok || len(v) != t {
			return nil, fmt.Errorf("data %s: expected %d values", name, t)
		}
		*dst = v
	}
	var ok bool
	if m.choice, ok = data["choice"].([]int); !ok || len(m.choice) != t {
		return nil, fmt.Errorf("data choice: expected %d integers", t)
	}

	for i, v := range []*float64{&m.k, &m.beta} {
		p := spec.Parameters[i]
		par := gen(v, p.Name)
		par.SetMin(p.Lower)
		par.SetMax(p.Upper)
		par.SetPriorFunc(optimize.UniformPrior(p.Lower, p.Upper, true, true))
		m.parameters.Append(par)
	}
	return m, nil
}

func (m *ddSingle) GetFloatParameters() optimize.FloatParameters {
	return m.parameters
}

// utility returns beta * (V_later - V_sooner) of trial t.
func (m *ddSingle) utility(t int) float64 {
	later := m.amountLater[t] / (1 + m.k*m.delayLater[t])
	sooner := m.amountSooner[t] / (1 + m.k*m.delaySooner[t])
	return m.beta * (later - sooner)
}

func (m *ddSingle) Likelihood() float64 {
	l := 0.0
	for t, c := range m.choice {
		u := m.utility(t)
		if c == 1 {
			l += dist.LogInvLogit(u)
		} else {
			l += dist.LogInvLogit(-u)
		}
	}
	return l
}

func (m *ddSingle) dims() map[string][]int {
	d := map[string][]int{
		"log_lik": nil,
		"y_pred":  {len(m.choice)},
	}
	for _, n := range m.spec.SummaryNames() {
		d[n] = nil
	}
	return d
}

func (m *ddSingle) record(out sampler.Draws, d int, rng *rand.Rand) {
	names := m.spec.SummaryNames()
	out[names[0]].Set(d, m.k)
	out[names[1]].Set(d, m.beta)
	out[names[2]].Set(d, math.Log(m.k))
	out["log_lik"].Set(d, m.Likelihood())
	yp := out["y_pred"]
	for t := range m.choice {
		y := 0.0
		if rng.Float64() < dist.InvLogit(m.utility(t)) {
			y = 1
		}
		yp.Set(d, y, t)
	}
}

func (m *ddSingle) setInits(iv sampler.InitValues) error {
	for i, v := range []*float64{&m.k, &m.beta} {
		name := m.spec.Parameters[i].Name
		x, ok := iv[name].(float64)
		if !ok {
			return fmt.Errorf("initial value of %s must be a number, got %v", name, iv[name])
		}
		*v = x
	}
	return nil
}
