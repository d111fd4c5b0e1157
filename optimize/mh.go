package optimize

import (
	"math"
	"math/rand"
)

// MH is a component-wise Metropolis-Hastings sampler. Every iteration
// is a sweep proposing each parameter once, in random order.
type MH struct {
	BaseOptimizer
	// AccPeriod is the number of sweeps between acceptance rate
	// reports.
	AccPeriod int
	// OnSweep is called after every sweep with the current log
	// likelihood.
	OnSweep func(iter int, l float64)
	rng     *rand.Rand
	accRate float64
}

// NewMH creates a new MH sampler using rng.
func NewMH(rng *rand.Rand) (mcmc *MH) {
	mcmc = &MH{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 100,
		},
		AccPeriod: 500,
		rng:       rng,
	}
	return
}

// AcceptanceRate returns the overall acceptance rate of the last run.
func (m *MH) AcceptanceRate() float64 {
	return m.accRate
}

// Run performs iterations sweeps.
func (m *MH) Run(iterations int) {
	l := m.Likelihood()
	m.calls++
	accepted, total := 0, 0
	periodAcc, periodTotal := 0, 0
	for m.i = 0; m.i < iterations; m.i++ {
		if m.i > 0 && m.i%m.AccPeriod == 0 && periodTotal > 0 {
			log.Debugf("Acceptance rate %.2f%%", 100*float64(periodAcc)/float64(periodTotal))
			periodAcc, periodTotal = 0, 0
		}
		for _, p := range m.rng.Perm(len(m.parameters)) {
			par := m.parameters[p]
			par.Propose()
			newL := m.Likelihood()
			m.calls++
			total++
			periodTotal++

			a := math.Exp(par.Prior() - par.OldPrior() + newL - l)
			if a > 1 || m.rng.Float64() < a {
				l = newL
				par.Accept(m.i)
				accepted++
				periodAcc++
				m.saveMax(l)
			} else {
				par.Reject()
			}
		}
		m.l = l
		m.PrintLine(l, m.repPeriod)
		if m.OnSweep != nil {
			m.OnSweep(m.i, l)
		}
	}
	if total > 0 {
		m.accRate = float64(accepted) / float64(total)
	}
}
