// Package preprocess turns grouped trial data into the fixed-shape
// arrays a model consumes. Every task registers one preprocessor; most
// are declarative layouts of padded fields.
//
// Padded cells carry sentinel values (e.g. -1 for a missing choice) and
// are never read by the models: Tsubj gives the number of valid trials.
package preprocess

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/op/go-logging"

	"bitbucket.org/ccslab/hbdm/shape"
	"bitbucket.org/ccslab/hbdm/table"
)

var log = logging.MustGetLogger("preprocess")

// ErrInternal marks inconsistencies between grouping and
// preprocessing. These are bugs, not data errors.
var ErrInternal = errors.New("internal preprocessing error")

// Data maps model data names to values: int, float64 or (nested)
// slices of them.
type Data map[string]interface{}

// Func builds model data from a normalized table.
type Func func(t *table.Table, info *shape.Info, args Args) (Data, error)

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// Register adds a preprocessor. Registering a key twice panics.
func Register(key string, f Func) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[key]; ok {
		panic(fmt.Sprintf("preprocessor %s registered twice", key))
	}
	registry[key] = f
}

// Lookup returns the preprocessor registered for a task key
// (task[_variant]).
func Lookup(key string) (Func, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("no preprocessor for %s", key)
	}
	return f, nil
}

// Keys returns the registered keys in sorted order.
func Keys() []string {
	mu.RLock()
	defer mu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run looks up and runs a preprocessor.
func Run(key string, t *table.Table, info *shape.Info, args Args) (Data, error) {
	f, err := Lookup(key)
	if err != nil {
		return nil, err
	}
	log.Debugf("Preprocessing %d rows with %s", t.Len(), key)
	return f(t, info, args)
}
