package native

import (
	"fmt"
	"math"
	"math/rand"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/optimize"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
)

// bandit2arm is the hierarchical Rescorla-Wagner model of the 2-armed
// bandit task with softmax choice.
type bandit2arm struct {
	*hierarchical
	tMax    int
	tSubj   []int
	choice  [][]int
	outcome [][]float64
}

func dataInt(data preprocess.Data, name string) (int, error) {
	v, ok := data[name].(int)
	if !ok {
		return 0, fmt.Errorf("data %s: expected int, got %T", name, data[name])
	}
	return v, nil
}

func newBandit2arm(spec *modelspec.Spec, data preprocess.Data, gen optimize.FloatParameterGenerator) (model, error) {
	m := &bandit2arm{}
	n, err := dataInt(data, "N")
	if err != nil {
		return nil, err
	}
	if m.tMax, err = dataInt(data, "T"); err != nil {
		return nil, err
	}
	var ok bool
	if m.tSubj, ok = data["Tsubj"].([]int); !ok || len(m.tSubj) != n {
		return nil, fmt.Errorf("data Tsubj: expected %d trial counts", n)
	}
	if m.choice, ok = data["choice"].([][]int); !ok || len(m.choice) != n {
		return nil, fmt.Errorf("data choice: expected %d x %d integers", n, m.tMax)
	}
	if m.outcome, ok = data["outcome"].([][]float64); !ok || len(m.outcome) != n {
		return nil, fmt.Errorf("data outcome: expected %d x %d values", n, m.tMax)
	}
	for s := 0; s < n; s++ {
		for t := 0; t < m.tSubj[s]; t++ {
			if c := m.choice[s][t]; c != 1 && c != 2 {
				return nil, fmt.Errorf("subject %d trial %d: choice must be 1 or 2, got %d", s+1, t+1, c)
			}
		}
	}
	m.hierarchical = newHierarchical(spec, n, gen, m.subjectLikelihood)
	return m, nil
}

// subjectLikelihood returns the log likelihood of the choices of
// subject s given the learning rate and inverse temperature.
func (m *bandit2arm) subjectLikelihood(s int, ind []float64) float64 {
	a, tau := ind[0], ind[1]
	var ev [2]float64
	l := 0.0
	for t := 0; t < m.tSubj[s]; t++ {
		c := m.choice[s][t] - 1
		u0, u1 := tau*ev[0], tau*ev[1]
		mx := math.Max(u0, u1)
		l += tau*ev[c] - mx - math.Log(math.Exp(u0-mx)+math.Exp(u1-mx))
		ev[c] += a * (m.outcome[s][t] - ev[c])
	}
	return l
}

func (m *bandit2arm) dims() map[string][]int {
	d := m.hierarchical.dims()
	d["y_pred"] = []int{m.nSubj, m.tMax}
	return d
}

// record also simulates choices along the observed learning history.
func (m *bandit2arm) record(out sampler.Draws, d int, rng *rand.Rand) {
	m.hierarchical.record(out, d)
	yp := out["y_pred"]
	for s := 0; s < m.nSubj; s++ {
		ind := m.values(s)
		a, tau := ind[0], ind[1]
		var ev [2]float64
		for t := 0; t < m.tMax; t++ {
			if t >= m.tSubj[s] {
				yp.Set(d, -1, s, t)
				continue
			}
			p2 := 1 / (1 + math.Exp(tau*(ev[0]-ev[1])))
			y := 1.0
			if rng.Float64() < p2 {
				y = 2
			}
			yp.Set(d, y, s, t)
			c := m.choice[s][t] - 1
			ev[c] += a * (m.outcome[s][t] - ev[c])
		}
	}
}
