package sampler

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"bitbucket.org/ccslab/hbdm/dist"
	"bitbucket.org/ccslab/hbdm/modelspec"
)

// ErrUnknownInits is returned for unparsable initial value settings.
var ErrUnknownInits = errors.New("inits must be random, fixed, vb or a comma-separated list of numbers")

// InitLengthError is returned when user initial values do not match
// the number of model parameters.
type InitLengthError struct {
	Got, Want int
}

func (e *InitLengthError) Error() string {
	return fmt.Sprintf("length of inits must be %d (= the number of parameters of this model), got %d", e.Want, e.Got)
}

// InitKind is the initialization method.
type InitKind int

const (
	// Random lets the backend draw initial values.
	Random InitKind = iota
	// Fixed uses the plausible values of the parameters.
	Fixed
	// VB uses the result of a fast approximation.
	VB
	// User uses values given by the user.
	User
)

// Inits is a parsed initial value setting.
type Inits struct {
	Kind   InitKind
	Values []float64
}

// ParseInits parses "random", "fixed", "vb" or comma-separated
// numbers, one per parameter.
func ParseInits(s string) (Inits, error) {
	switch strings.TrimSpace(s) {
	case "random":
		return Inits{Kind: Random}, nil
	case "fixed":
		return Inits{Kind: Fixed}, nil
	case "vb":
		return Inits{Kind: VB}, nil
	case "":
		return Inits{}, ErrUnknownInits
	}
	fields := strings.Split(s, ",")
	v := make([]float64, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Inits{}, fmt.Errorf("%w: %q", ErrUnknownInits, s)
		}
		v[i] = x
	}
	return Inits{Kind: User, Values: v}, nil
}

func (in Inits) String() string {
	switch in.Kind {
	case Fixed:
		return "fixed"
	case VB:
		return "vb"
	case User:
		s := make([]string, len(in.Values))
		for i, v := range in.Values {
			s[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(s, ",")
	}
	return "random"
}

// Prime maps a parameter value to the unconstrained scale used by the
// non-centered hierarchical models. Values without a lower bound pass
// through, whatever the upper bound.
func Prime(v, lower, upper float64) float64 {
	switch {
	case math.IsInf(lower, -1):
		return v
	case math.IsInf(upper, 1):
		return math.Log(v - lower)
	}
	return dist.QuantileNormal((v - lower) / (upper - lower))
}

// Generate returns initial values for a model with nSubj subjects, or
// nil for random initialization. Single-subject models get the values
// as they are; hierarchical models get group means on the
// unconstrained scale, unit scales and identical individual values.
func (in Inits) Generate(spec *modelspec.Spec, nSubj int) (InitValues, error) {
	var values []float64
	switch in.Kind {
	case Random:
		return nil, nil
	case VB:
		return nil, errors.New("vb initial values require a sampler, use VariationalInits")
	case Fixed:
		for _, p := range spec.Parameters {
			values = append(values, p.Plausible)
		}
	case User:
		if len(in.Values) != len(spec.Parameters) {
			return nil, &InitLengthError{Got: len(in.Values), Want: len(spec.Parameters)}
		}
		values = in.Values
	}

	iv := InitValues{}
	if spec.IsSingle() {
		for i, p := range spec.Parameters {
			iv[p.Name] = values[i]
		}
		return iv, nil
	}

	primes := make([]float64, len(values))
	sigma := make([]float64, len(values))
	for i, p := range spec.Parameters {
		primes[i] = Prime(values[i], p.Lower, p.Upper)
		sigma[i] = 1
	}
	iv["mu_pr"] = primes
	iv["sigma"] = sigma
	for i, p := range spec.Parameters {
		ind := make([]float64, nSubj)
		for s := range ind {
			ind[s] = primes[i]
		}
		iv[p.Name+"_pr"] = ind
	}
	return iv, nil
}

// VariationalInits runs the backend approximation and takes initial
// values from it. On failure it logs a warning and falls back to
// random initialization, reporting fallback as true.
func VariationalInits(s Sampler, req *Request, nSubj int) (InitValues, bool) {
	r := *req
	r.Pars = nil
	r.Inits = nil
	draws, err := s.Approximate(&r)
	if err == nil {
		var iv InitValues
		iv, err = extractInits(req.Model, draws, nSubj)
		if err == nil {
			return iv, false
		}
	}
	log.Warningf("Failed to get VB estimates for initial values (%v). Using random values for initial values.", err)
	return nil, true
}

// first returns the first draw of a quantity with the expected number
// of elements.
func first(draws Draws, name string, size int) ([]float64, error) {
	a, ok := draws[name]
	if !ok || a.NDraws() == 0 {
		return nil, fmt.Errorf("no draws of %s", name)
	}
	if a.Size() != size {
		return nil, fmt.Errorf("%s has %d elements, expected %d", name, a.Size(), size)
	}
	return append([]float64(nil), a.Draw(0)...), nil
}

func extractInits(spec *modelspec.Spec, draws Draws, nSubj int) (InitValues, error) {
	draws = draws.Mean()
	iv := InitValues{}
	if spec.IsSingle() {
		for _, p := range spec.Parameters {
			v, err := first(draws, p.Name, 1)
			if err != nil {
				return nil, err
			}
			iv[p.Name] = v[0]
		}
		return iv, nil
	}

	n := len(spec.Parameters)
	for _, name := range []string{"mu_pr", "sigma"} {
		v, err := first(draws, name, n)
		if err != nil {
			return nil, err
		}
		iv[name] = v
	}
	for _, p := range spec.Parameters {
		v, err := first(draws, p.Name+"_pr", nSubj)
		if err != nil {
			return nil, err
		}
		iv[p.Name+"_pr"] = v
	}
	return iv, nil
}
