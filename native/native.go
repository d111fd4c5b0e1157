// Package native is a sampler backend for models implemented in Go.
// Chains run an adaptive Metropolis-Hastings sampler; the approximation
// is the posterior mode.
package native

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/ccslab/hbdm/modelspec"
	"bitbucket.org/ccslab/hbdm/optimize"
	"bitbucket.org/ccslab/hbdm/preprocess"
	"bitbucket.org/ccslab/hbdm/sampler"
)

var log = logging.MustGetLogger("native")

// model is a log density with derived quantities.
type model interface {
	optimize.Optimizable
	// dims returns the per-draw dimensions of every quantity.
	dims() map[string][]int
	// record writes all quantities at the current parameter values
	// to draw d.
	record(out sampler.Draws, d int, rng *rand.Rand)
	setInits(iv sampler.InitValues) error
}

type builder func(spec *modelspec.Spec, data preprocess.Data, gen optimize.FloatParameterGenerator) (model, error)

var models = map[string]builder{
	"bandit2arm_delta":     newBandit2arm,
	"dd_hyperbolic_single": newDDSingle,
}

// Models returns the names of models this backend implements.
func Models() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sampler is the native backend.
type Sampler struct {
	// LBFGSBIterations is reported to the mode finder.
	LBFGSBIterations int
}

// New creates a native sampler.
func New() *Sampler {
	return &Sampler{LBFGSBIterations: 1000}
}

func lookup(spec *modelspec.Spec) (builder, error) {
	b, ok := models[spec.FullName()]
	if !ok {
		return nil, fmt.Errorf("model %s is not implemented natively (available: %v)", spec.FullName(), Models())
	}
	return b, nil
}

func allocate(m model, n int) sampler.Draws {
	out := sampler.Draws{}
	for name, dims := range m.dims() {
		out[name] = sampler.NewArray(append([]int{n}, dims...)...)
	}
	return out
}

// pick keeps the requested quantities; nil pars keeps all.
func pick(d sampler.Draws, pars []string) (sampler.Draws, error) {
	if pars == nil {
		return d, nil
	}
	out := make(sampler.Draws, len(pars))
	for _, p := range pars {
		a, ok := d[p]
		if !ok {
			return nil, fmt.Errorf("model has no quantity %s", p)
		}
		out[p] = a
	}
	return out, nil
}

func chainRand(seed int64, chain int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(chain)*7919))
}

// Sample runs req.NChain chains, at most req.NCore at a time.
func (s *Sampler) Sample(req *sampler.Request) (sampler.Draws, error) {
	b, err := lookup(req.Model)
	if err != nil {
		return nil, err
	}
	chains := make([]sampler.Draws, req.NChain)
	g := new(errgroup.Group)
	if req.NCore > 0 {
		g.SetLimit(req.NCore)
	}
	for c := range chains {
		c := c
		g.Go(func() error {
			d, err := s.chain(b, req, c)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c+1, err)
			}
			chains[c] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := sampler.Draws{}
	for _, d := range chains {
		if err := out.Append(d); err != nil {
			return nil, err
		}
	}
	return pick(out, req.Pars)
}

func (s *Sampler) chain(b builder, req *sampler.Request, c int) (sampler.Draws, error) {
	rng := chainRand(req.Seed, c)
	as := optimize.NewAdaptiveSettings()
	as.Skip = req.NWarmup / 10
	as.MaxAdapt = req.NWarmup
	m, err := b(req.Model, req.Data, as.ParameterGenerator(rng))
	if err != nil {
		return nil, err
	}
	pars := m.GetFloatParameters()
	if req.Inits != nil {
		if err := m.setInits(req.Inits); err != nil {
			return nil, err
		}
	} else {
		pars.Randomize(rng)
	}

	thin := req.NThin
	if thin < 1 {
		thin = 1
	}
	out := allocate(m, req.NDraws())
	k := 0
	mh := optimize.NewMH(rng)
	mh.Quiet = true
	mh.SetOptimizable(m)
	mh.OnSweep = func(i int, l float64) {
		if i >= req.NWarmup && (i-req.NWarmup)%thin == 0 {
			m.record(out, k, rng)
			k++
		}
		if (i+1)%(req.NIter/10+1) == 0 {
			log.Debugf("Chain %d: iteration %d / %d", c+1, i+1, req.NIter)
		}
	}
	mh.Run(req.NIter)
	log.Infof("Chain %d finished, acceptance rate %.2f", c+1, mh.AcceptanceRate())
	return out, nil
}

// Approximate returns the posterior mode as a single draw.
func (s *Sampler) Approximate(req *sampler.Request) (sampler.Draws, error) {
	b, err := lookup(req.Model)
	if err != nil {
		return nil, err
	}
	rng := chainRand(req.Seed, 0)
	m, err := b(req.Model, req.Data, optimize.BasicFloatParameterGenerator(rng))
	if err != nil {
		return nil, err
	}
	if req.Inits != nil {
		if err := m.setInits(req.Inits); err != nil {
			return nil, err
		}
	}
	opt := optimize.NewLBFGSB()
	opt.SetOptimizable(m)
	opt.Run(s.LBFGSBIterations)
	if err := opt.Err(); err != nil {
		return nil, err
	}
	out := allocate(m, 1)
	m.record(out, 0, rng)
	return pick(out, req.Pars)
}
