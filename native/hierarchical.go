package native

import (
	"fmt"
	"math"

	"bitbucket.org/ccslab/hbdm/dist"
	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/optimize"
	"bitbucket.org/ccslab/hbdm/sampler"
)

// Prior scale of the group-level standard deviations.
const sigmaScale = 0.2

// hierarchical holds non-centered group and subject parameters:
// value = transform(mu_pr + sigma * pr). Subject log likelihoods are
// cached and recomputed only after their parameters change.
type hierarchical struct {
	spec  *modelspec.Spec
	nSubj int
	muPr  []float64
	sigma []float64
	// pr is indexed by parameter, then subject
	pr         [][]float64
	parameters optimize.FloatParameters

	subjLik func(s int, ind []float64) float64
	subjL   []float64
	dirty   []bool
	ind     []float64
}

func newHierarchical(spec *modelspec.Spec, nSubj int, gen optimize.FloatParameterGenerator,
	subjLik func(s int, ind []float64) float64) *hierarchical {
	np := len(spec.Parameters)
	h := &hierarchical{
		spec:    spec,
		nSubj:   nSubj,
		muPr:    make([]float64, np),
		sigma:   make([]float64, np),
		pr:      make([][]float64, np),
		subjLik: subjLik,
		subjL:   make([]float64, nSubj),
		dirty:   make([]bool, nSubj),
		ind:     make([]float64, np),
	}
	all := func() {
		for s := range h.dirty {
			h.dirty[s] = true
		}
	}
	all()

	for i, p := range spec.Parameters {
		h.sigma[i] = 0.5
		par := gen(&h.muPr[i], "mu_pr."+p.Name)
		par.SetPriorFunc(optimize.NormalPrior(0, 1))
		par.SetOnChange(all)
		h.parameters.Append(par)

		par = gen(&h.sigma[i], "sigma."+p.Name)
		par.SetMin(0)
		par.SetPriorFunc(optimize.NormalPrior(0, sigmaScale))
		par.SetOnChange(all)
		h.parameters.Append(par)
	}
	for i, p := range spec.Parameters {
		h.pr[i] = make([]float64, nSubj)
		for s := 0; s < nSubj; s++ {
			s := s
			par := gen(&h.pr[i][s], fmt.Sprintf("%s_pr.%d", p.Name, s+1))
			par.SetPriorFunc(optimize.NormalPrior(0, 1))
			par.SetOnChange(func() { h.dirty[s] = true })
			h.parameters.Append(par)
		}
	}
	return h
}

// transform maps an unconstrained value into the parameter bounds.
func transform(p modelspec.Parameter, x float64) float64 {
	lowerInf, upperInf := math.IsInf(p.Lower, -1), math.IsInf(p.Upper, 1)
	switch {
	case lowerInf && upperInf:
		return x
	case upperInf:
		return p.Lower + math.Exp(x)
	case lowerInf:
		return p.Upper - math.Exp(x)
	}
	return p.Lower + (p.Upper-p.Lower)*dist.PhiApprox(x)
}

// value returns parameter i of subject s.
func (h *hierarchical) value(i, s int) float64 {
	return transform(h.spec.Parameters[i], h.muPr[i]+h.sigma[i]*h.pr[i][s])
}

// values fills h.ind with the parameters of subject s.
func (h *hierarchical) values(s int) []float64 {
	for i := range h.ind {
		h.ind[i] = h.value(i, s)
	}
	return h.ind
}

func (h *hierarchical) GetFloatParameters() optimize.FloatParameters {
	return h.parameters
}

func (h *hierarchical) Likelihood() float64 {
	l := 0.0
	for s := 0; s < h.nSubj; s++ {
		if h.dirty[s] {
			h.subjL[s] = h.subjLik(s, h.values(s))
			h.dirty[s] = false
		}
		l += h.subjL[s]
	}
	return l
}

func (h *hierarchical) dims() map[string][]int {
	np := len(h.spec.Parameters)
	d := map[string][]int{
		"mu_pr":   {np},
		"sigma":   {np},
		"log_lik": {h.nSubj},
	}
	for _, p := range h.spec.Parameters {
		d[p.Name+"_pr"] = []int{h.nSubj}
		d["mu_"+p.Name] = nil
		d[p.Name] = []int{h.nSubj}
	}
	return d
}

// record writes parameters and log likelihoods of draw d.
func (h *hierarchical) record(out sampler.Draws, d int) {
	for i, p := range h.spec.Parameters {
		out["mu_pr"].Set(d, h.muPr[i], i)
		out["sigma"].Set(d, h.sigma[i], i)
		out["mu_"+p.Name].Set(d, transform(p, h.muPr[i]))
		for s := 0; s < h.nSubj; s++ {
			out[p.Name+"_pr"].Set(d, h.pr[i][s], s)
			out[p.Name].Set(d, h.value(i, s), s)
		}
	}
	h.Likelihood()
	for s := 0; s < h.nSubj; s++ {
		out["log_lik"].Set(d, h.subjL[s], s)
	}
}

func floatsInit(iv sampler.InitValues, name string, n int) ([]float64, error) {
	v, ok := iv[name]
	if !ok {
		return nil, fmt.Errorf("no initial value for %s", name)
	}
	f, ok := v.([]float64)
	if !ok || len(f) != n {
		return nil, fmt.Errorf("initial value of %s must have %d values, got %v", name, n, v)
	}
	return f, nil
}

// setInits sets mu_pr, sigma and <p>_pr.
func (h *hierarchical) setInits(iv sampler.InitValues) error {
	np := len(h.spec.Parameters)
	mu, err := floatsInit(iv, "mu_pr", np)
	if err != nil {
		return err
	}
	sigma, err := floatsInit(iv, "sigma", np)
	if err != nil {
		return err
	}
	for i, p := range h.spec.Parameters {
		pr, err := floatsInit(iv, p.Name+"_pr", h.nSubj)
		if err != nil {
			return err
		}
		copy(h.pr[i], pr)
	}
	copy(h.muPr, mu)
	for i, v := range sigma {
		h.sigma[i] = math.Max(v, 1e-3)
	}
	for s := range h.dirty {
		h.dirty[s] = true
	}
	return nil
}
