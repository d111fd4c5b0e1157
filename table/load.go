package table

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"bitbucket.org/ccslab/hbdm/modelspec"
)

//go:embed extdata/*_exampleData.txt
var extdata embed.FS

// ErrExampleNotFound is returned when no example data set is bundled
// for a task.
var ErrExampleNotFound = errors.New("example data not found")

// ExampleName returns the file name of the example data set for a task
// and model variant.
func ExampleName(task string, variant modelspec.Variant) string {
	if variant == modelspec.Hierarchical {
		return task + "_exampleData.txt"
	}
	return task + "_" + string(variant) + "_exampleData.txt"
}

// Example returns the bundled example data set for a task.
func Example(task string, variant modelspec.Variant) (*Table, error) {
	name := ExampleName(task, variant)
	b, err := extdata.ReadFile("extdata/" + name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrExampleNotFound)
	}
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(b), '\t')
}

// Load resolves a data source and returns a table with normalized
// column labels. A source is a *Table (copied, the argument is never
// modified), a file name, or "example" for the bundled example data
// of the model's task.
func Load(source interface{}, spec *modelspec.Spec) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch s := source.(type) {
	case *Table:
		if s == nil {
			return nil, ErrInvalidSource
		}
		t = s.Clone()
	case string:
		if s == "example" {
			log.Infof("Using example data for %s", spec.FullName())
			t, err = Example(spec.Task.Code, spec.Variant)
		} else if s == "" {
			return nil, ErrInvalidSource
		} else {
			t, err = Read(s)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidSource, source)
	}
	if err != nil {
		return nil, err
	}
	t.Normalize()
	return t, nil
}
