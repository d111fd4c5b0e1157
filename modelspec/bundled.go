package modelspec

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed models/*.yml
var bundledFS embed.FS

var (
	bundledOnce  sync.Once
	bundledSpecs map[string]*Spec
	bundledErr   error
)

func loadBundled() {
	entries, err := bundledFS.ReadDir("models")
	if err != nil {
		bundledErr = err
		return
	}
	bundledSpecs = make(map[string]*Spec, len(entries))
	for _, e := range entries {
		b, err := bundledFS.ReadFile(path.Join("models", e.Name()))
		if err != nil {
			bundledErr = err
			return
		}
		s, err := Parse(b)
		if err != nil {
			bundledErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
		if want := strings.TrimSuffix(e.Name(), ".yml"); s.FullName() != want {
			bundledErr = fmt.Errorf("%s: describes model %s", e.Name(), s.FullName())
			return
		}
		bundledSpecs[s.FullName()] = s
	}
}

// Bundled returns the model descriptions shipped with the package,
// sorted by full name.
func Bundled() ([]*Spec, error) {
	bundledOnce.Do(loadBundled)
	if bundledErr != nil {
		return nil, bundledErr
	}
	specs := make([]*Spec, 0, len(bundledSpecs))
	for _, s := range bundledSpecs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].FullName() < specs[j].FullName()
	})
	return specs, nil
}

// Lookup returns a bundled model description by its full name.
func Lookup(name string) (*Spec, error) {
	bundledOnce.Do(loadBundled)
	if bundledErr != nil {
		return nil, bundledErr
	}
	s, ok := bundledSpecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return s, nil
}
