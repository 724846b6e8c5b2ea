// Package model defines the contracts shared by every tabml component.
//
// It holds:
//
//   - Column values and types that flow between pipeline stages
//   - The two-phase Stage / FittedStage transformation contract
//   - The backend contracts (Regressor, BinaryClassifier) and the fitted
//     model interfaces they return
//   - Hyperparameters, the loosely typed parameter bag backends are built from
//   - Envelope, the digest-protected JSON format fitted pipelines persist to
//
// Pipelines, stages and backends depend on this package; it depends on none
// of them.
package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ezoic/tabml/pkg/errors"
)

// Hyperparameters holds backend parameters as decoded from a configuration
// file. Values are typically float64, int, string or bool.
type Hyperparameters map[string]interface{}

// GetParams returns a copy of the parameters.
func (h Hyperparameters) GetParams() map[string]interface{} {
	params := make(map[string]interface{}, len(h))
	for k, v := range h {
		params[k] = v
	}
	return params
}

// SetParams returns a copy of h with params merged over it.
func (h Hyperparameters) SetParams(params map[string]interface{}) Hyperparameters {
	out := Hyperparameters(h.GetParams())
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (h Hyperparameters) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the parameter name as a float64, or def when it is absent.
func (h Hyperparameters) Float(name string, def float64) (float64, error) {
	v, ok := h[name]
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
			return 0, errors.NewValidationError(name, "must be a number", v)
		}
		return f, nil
	default:
		return 0, errors.NewValidationError(name, "must be a number", v)
	}
}

// Int returns the parameter name as an int, or def when it is absent.
// Floats are accepted only when they hold an integral value.
func (h Hyperparameters) Int(name string, def int) (int, error) {
	v, ok := h[name]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return n, nil
	default:
		return 0, errors.NewValidationError(name, "must be an integer", v)
	}
}

// String returns the parameter name as a string, or def when it is absent.
func (h Hyperparameters) String(name, def string) string {
	v, ok := h[name]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Unknown returns the parameter names not in allowed, sorted.
func (h Hyperparameters) Unknown(allowed ...string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	var out []string
	for _, k := range h.Keys() {
		if _, ok := set[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
