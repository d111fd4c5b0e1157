// Package modelspec describes a decision model: its task, the data
// columns it requires, its free parameters with bounds, model-based
// regressors, posterior predictive outputs and additional arguments.
//
// Descriptions are YAML (or JSON, which is a YAML subset) documents.
// Mapping order in the document is significant and kept: data columns,
// parameters, regressors and additional arguments are reported in the
// order they were declared.
package modelspec

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/op/go-logging"
	"gopkg.in/yaml.v3"
)

var log = logging.MustGetLogger("modelspec")

// Variant is a model type. Empty variant is the hierarchical model.
type Variant string

const (
	// Hierarchical models fit many subjects with group-level
	// parameters.
	Hierarchical Variant = ""
	// Single models fit exactly one subject.
	Single Variant = "single"
	// MultipleB models are hierarchical with several blocks per
	// subject.
	MultipleB Variant = "multipleB"
)

// Desc returns a human readable variant name.
func (v Variant) Desc() string {
	switch v {
	case Single:
		return "Individual"
	case MultipleB:
		return "Multiple-Block Hierarchical"
	}
	return "Hierarchical"
}

// Named is a code with a description and citations.
type Named struct {
	Code string   `yaml:"code" json:"code"`
	Desc string   `yaml:"desc" json:"desc"`
	Cite []string `yaml:"cite" json:"cite,omitempty"`
}

// Column is a required data column.
type Column struct {
	Name string `validate:"required" json:"name"`
	Desc string `json:"desc"`
}

// Parameter is a free model parameter. Lower and Upper may be
// infinite.
type Parameter struct {
	Name      string  `validate:"required" json:"name"`
	Desc      string  `json:"desc"`
	Lower     float64 `json:"lower"`
	Plausible float64 `json:"plausible"`
	Upper     float64 `json:"upper"`
}

// Regressor is a model-based regressor with its number of
// non-draw dimensions.
type Regressor struct {
	Name string `validate:"required" json:"name"`
	Rank int    `validate:"gte=1,lte=3" json:"rank"`
}

// Arg is an additional argument a preprocessor accepts.
type Arg struct {
	Code    string      `yaml:"code" validate:"required" json:"code"`
	Default interface{} `yaml:"default" json:"default"`
	Desc    string      `yaml:"desc" json:"desc"`
}

// Contributor is a person credited for the model.
type Contributor struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email,omitempty"`
	Link  string `yaml:"link" json:"link,omitempty"`
}

// Spec is a loaded model description. Spec values are not modified
// after Parse returns.
type Spec struct {
	Task           Named         `json:"task"`
	Model          Named         `json:"model"`
	Variant        Variant       `validate:"variant" json:"variant"`
	DataColumns    []Column      `validate:"required,min=1,dive" json:"data_columns"`
	Parameters     []Parameter   `validate:"required,min=1,dive" json:"parameters"`
	Regressors     []Regressor   `validate:"dive" json:"regressors,omitempty"`
	Postpreds      []string      `validate:"dive,required" json:"postpreds,omitempty"`
	AdditionalArgs []Arg         `validate:"dive" json:"additional_args,omitempty"`
	Contributors   []Contributor `json:"contributors,omitempty"`
}

// document is the on-disk layout. Ordered mappings are decoded from
// yaml nodes.
type document struct {
	TaskName       Named         `yaml:"task_name"`
	ModelName      Named         `yaml:"model_name"`
	ModelType      Named         `yaml:"model_type"`
	DataColumns    yaml.Node     `yaml:"data_columns"`
	Parameters     yaml.Node     `yaml:"parameters"`
	Regressors     yaml.Node     `yaml:"regressors"`
	Postpreds      []string      `yaml:"postpreds"`
	AdditionalArgs []Arg         `yaml:"additional_args"`
	Contributors   []Contributor `yaml:"contributors"`
}

type parameterInfo struct {
	Desc string    `yaml:"desc"`
	Info []float64 `yaml:"info"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		switch Variant(fl.Field().String()) {
		case Hierarchical, Single, MultipleB:
			return true
		}
		return false
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(Parameter)
		if math.IsNaN(p.Lower) || math.IsNaN(p.Plausible) || math.IsNaN(p.Upper) ||
			p.Lower > p.Plausible || p.Plausible > p.Upper {
			sl.ReportError(p.Plausible, "Plausible", "Plausible", "bounds", "")
		}
	}, Parameter{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		s := sl.Current().Interface().(Spec)
		if s.Task.Code == "" {
			sl.ReportError(s.Task.Code, "Task", "Task", "required", "")
		}
		if s.Model.Code == "" {
			sl.ReportError(s.Model.Code, "Model", "Model", "required", "")
		}
	}, Spec{})
	return v
}

// Parse decodes and validates a model description.
func Parse(b []byte) (*Spec, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding model description: %w", err)
	}

	s := &Spec{
		Task:           doc.TaskName,
		Model:          doc.ModelName,
		Variant:        Variant(doc.ModelType.Code),
		Postpreds:      doc.Postpreds,
		AdditionalArgs: doc.AdditionalArgs,
		Contributors:   doc.Contributors,
	}

	err := eachPair(&doc.DataColumns, func(k string, v *yaml.Node) error {
		var desc string
		if err := v.Decode(&desc); err != nil {
			return err
		}
		s.DataColumns = append(s.DataColumns, Column{Name: k, Desc: desc})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("data_columns: %w", err)
	}

	err = eachPair(&doc.Parameters, func(k string, v *yaml.Node) error {
		var pi parameterInfo
		if err := v.Decode(&pi); err != nil {
			return err
		}
		if len(pi.Info) != 3 {
			return fmt.Errorf("parameter %s: info must be [lower, plausible, upper], got %v", k, pi.Info)
		}
		s.Parameters = append(s.Parameters, Parameter{
			Name:      k,
			Desc:      pi.Desc,
			Lower:     pi.Info[0],
			Plausible: pi.Info[1],
			Upper:     pi.Info[2],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}

	err = eachPair(&doc.Regressors, func(k string, v *yaml.Node) error {
		var rank int
		if err := v.Decode(&rank); err != nil {
			return err
		}
		s.Regressors = append(s.Regressors, Regressor{Name: k, Rank: rank})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("regressors: %w", err)
	}

	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("invalid model description %s: %w", s.FullName(), err)
	}
	log.Debugf("Loaded model description %s", s.FullName())
	return s, nil
}

// eachPair walks a yaml mapping node in document order. Empty and null
// nodes are treated as empty mappings.
func eachPair(n *yaml.Node, f func(string, *yaml.Node) error) error {
	if n.Kind == 0 || n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if seen[k] {
			return fmt.Errorf("line %d: duplicate key %q", n.Content[i].Line, k)
		}
		seen[k] = true
		if err := f(k, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a model description from r.
func Load(r io.Reader) (*Spec, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// LoadFile reads a model description from a file.
func LoadFile(path string) (*Spec, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// FullName returns task_model[_variant].
func (s *Spec) FullName() string {
	return joinNonEmpty(s.Task.Code, s.Model.Code, string(s.Variant))
}

// PreprocessKey returns task[_variant], the name the preprocessor is
// registered under.
func (s *Spec) PreprocessKey() string {
	return joinNonEmpty(s.Task.Code, string(s.Variant))
}

func joinNonEmpty(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "_")
}

// IsSingle is true for single-subject models.
func (s *Spec) IsSingle() bool {
	return s.Variant == Single
}

// ColumnNames returns the required column names in declared order.
func (s *Spec) ColumnNames() []string {
	names := make([]string, len(s.DataColumns))
	for i, c := range s.DataColumns {
		names[i] = c.Name
	}
	return names
}

// ParameterNames returns free parameter names in declared order.
func (s *Spec) ParameterNames() []string {
	names := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		names[i] = p.Name
	}
	return names
}

// SummaryNames returns the individual-level quantities reported for
// each subject. Delay discounting single-subject models also report
// the log of their first parameter (e.g. logK).
func (s *Spec) SummaryNames() []string {
	names := s.ParameterNames()
	if s.Task.Code == "dd" && s.IsSingle() {
		names = append(names, "log"+strings.ToUpper(names[0]))
	}
	return names
}

// RegressorRanks returns regressor ranks keyed by name.
func (s *Spec) RegressorRanks() map[string]int {
	ranks := make(map[string]int, len(s.Regressors))
	for _, r := range s.Regressors {
		ranks[r.Name] = r.Rank
	}
	return ranks
}

// RegressorNames returns regressor names in declared order.
func (s *Spec) RegressorNames() []string {
	names := make([]string, len(s.Regressors))
	for i, r := range s.Regressors {
		names[i] = r.Name
	}
	return names
}

// ArgDefault returns the declared default of an additional argument.
func (s *Spec) ArgDefault(code string) (interface{}, bool) {
	for _, a := range s.AdditionalArgs {
		if a.Code == code {
			return a.Default, true
		}
	}
	return nil, false
}

// Defaults returns all additional argument defaults.
func (s *Spec) Defaults() map[string]interface{} {
	m := make(map[string]interface{}, len(s.AdditionalArgs))
	for _, a := range s.AdditionalArgs {
		m[a.Code] = a.Default
	}
	return m
}
