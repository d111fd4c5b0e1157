package preprocess

import (
	"fmt"
	"strconv"
)

// Args holds additional arguments of a fitting call, keyed by the
// argument code (e.g. payscale, RTbound).
type Args map[string]interface{}

// Float returns a numeric argument or def if it is not set. Values
// given as strings (command line) are parsed.
func (a Args) Float(name string, def float64) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %s: %w", name, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("argument %s: unsupported value %v (%T)", name, v, v)
}

// String returns a string argument or def.
func (a Args) String(name string, def string) string {
	v, ok := a[name]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// With returns a copy of a with defaults added for unset keys.
func (a Args) With(defaults map[string]interface{}) Args {
	m := make(Args, len(a)+len(defaults))
	for k, v := range defaults {
		m[k] = v
	}
	for k, v := range a {
		m[k] = v
	}
	return m
}
