package optimize

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Range of random starting values for unbounded parameters.
const (
	MIN = -2
	MAX = +2
)

// FloatParameter is a model parameter that can be proposed, accepted
// and rejected.
type FloatParameter interface {
	Name() string
	Prior() float64
	OldPrior() float64
	Propose()
	Accept(int)
	Reject()
	String() string
	SetMin(float64)
	SetMax(float64)
	GetMin() float64
	GetMax() float64
	SetOnChange(func())
	SetProposalFunc(func(float64) float64)
	SetPriorFunc(func(float64) float64)
	Get() float64
	Set(float64)
	InRange() bool
	ValueInRange(float64) bool
}

// FloatParameterGenerator creates a parameter backed by a float.
type FloatParameterGenerator func(*float64, string) FloatParameter

// FloatParameters is a list of parameters.
type FloatParameters []FloatParameter

// Append adds a parameter.
func (p *FloatParameters) Append(par FloatParameter) {
	*p = append(*p, par)
}

// Names returns the parameter names.
func (p FloatParameters) Names() []string {
	s := make([]string, len(p))
	for i, par := range p {
		s[i] = par.Name()
	}
	return s
}

// Values copies the parameter values into dst, which is allocated when
// it is too short.
func (p FloatParameters) Values(dst []float64) []float64 {
	if len(dst) < len(p) {
		dst = make([]float64, len(p))
	}
	dst = dst[:len(p)]
	for i, par := range p {
		dst[i] = par.Get()
	}
	return dst
}

// ValuesInRange is true if every value is within its parameter bounds.
func (p FloatParameters) ValuesInRange(vals []float64) bool {
	if len(vals) != len(p) {
		panic("Incorrect number of parameters")
	}
	for i, par := range p {
		if !par.ValueInRange(vals[i]) {
			return false
		}
	}
	return true
}

// SetValues sets all parameter values.
func (p FloatParameters) SetValues(v []float64) error {
	if len(v) != len(p) {
		return fmt.Errorf("incorrect number of parameters: %d, expected %d", len(v), len(p))
	}
	for i, par := range p {
		par.Set(v[i])
	}
	return nil
}

// Randomize sets uniform random values within the bounds, truncated
// to [MIN, MAX].
func (p FloatParameters) Randomize(rng *rand.Rand) {
	for _, par := range p {
		lo := math.Max(MIN, par.GetMin())
		hi := math.Min(MAX, par.GetMax())
		par.Set(lo + rng.Float64()*(hi-lo))
	}
}

// InRange is true if all parameters are within bounds.
func (p FloatParameters) InRange() bool {
	for _, par := range p {
		if !par.InRange() {
			return false
		}
	}
	return true
}

// String returns tab-separated values.
func (p FloatParameters) String() string {
	s := make([]string, len(p))
	for i, par := range p {
		s[i] = par.String()
	}
	return strings.Join(s, "\t")
}

// BasicFloatParameter is a parameter with a fixed proposal.
type BasicFloatParameter struct {
	*float64
	old          float64
	name         string
	priorFunc    func(float64) float64
	proposalFunc func(float64) float64
	min          float64
	max          float64
	onChange     func()
}

// NewBasicFloatParameter creates an unbounded parameter with a flat
// prior and a normal proposal drawn from rng.
func NewBasicFloatParameter(par *float64, name string, rng *rand.Rand) *BasicFloatParameter {
	return &BasicFloatParameter{
		float64:      par,
		name:         name,
		priorFunc:    FlatPrior,
		proposalFunc: NormalProposal(0.1, rng),
		min:          math.Inf(-1),
		max:          math.Inf(+1),
	}
}

// BasicFloatParameterGenerator returns a generator of basic
// parameters using rng.
func BasicFloatParameterGenerator(rng *rand.Rand) FloatParameterGenerator {
	return func(par *float64, name string) FloatParameter {
		return NewBasicFloatParameter(par, name, rng)
	}
}

func (p *BasicFloatParameter) SetMin(min float64) {
	p.min = min
}

func (p *BasicFloatParameter) SetMax(max float64) {
	p.max = max
}

func (p *BasicFloatParameter) SetPriorFunc(f func(float64) float64) {
	p.priorFunc = f
}

func (p *BasicFloatParameter) SetProposalFunc(f func(float64) float64) {
	p.proposalFunc = f
}

// SetOnChange sets a function called after every value change.
func (p *BasicFloatParameter) SetOnChange(f func()) {
	p.onChange = f
}

func (p *BasicFloatParameter) Get() float64 {
	return *p.float64
}

func (p *BasicFloatParameter) Set(v float64) {
	if *p.float64 == v {
		return
	}
	*p.float64 = v
	p.changed()
}

func (p *BasicFloatParameter) changed() {
	if p.onChange != nil {
		p.onChange()
	}
}

func (p *BasicFloatParameter) GetMin() float64 {
	return p.min
}

func (p *BasicFloatParameter) GetMax() float64 {
	return p.max
}

func (p *BasicFloatParameter) ValueInRange(v float64) bool {
	return v >= p.min && v <= p.max
}

func (p *BasicFloatParameter) InRange() bool {
	return p.ValueInRange(*p.float64)
}

func (p *BasicFloatParameter) Name() string {
	return p.name
}

func (p *BasicFloatParameter) Prior() float64 {
	return p.priorFunc(*p.float64)
}

func (p *BasicFloatParameter) OldPrior() float64 {
	return p.priorFunc(p.old)
}

// reflect folds a proposal back into the bounds.
func (p *BasicFloatParameter) reflect() {
	if math.IsInf(p.min, -1) && math.IsInf(p.max, 1) {
		return
	}
	for *p.float64 < p.min || *p.float64 > p.max {
		if *p.float64 < p.min {
			*p.float64 = p.min + (p.min - *p.float64)
		}
		if *p.float64 > p.max {
			*p.float64 = p.max - (*p.float64 - p.max)
		}
	}
}

func (p *BasicFloatParameter) Propose() {
	p.old, *p.float64 = *p.float64, p.proposalFunc(*p.float64)
	p.reflect()
	p.changed()
}

func (p *BasicFloatParameter) Reject() {
	*p.float64, p.old = p.old, *p.float64
	p.changed()
}

func (p *BasicFloatParameter) Accept(iter int) {
}

func (p *BasicFloatParameter) String() string {
	return formatFloat(*p.float64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
