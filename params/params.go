// Package params structurally validates loosely-typed, model-generated
// arguments against a registry.Schema.
//
// Validation is pure and synchronous. It never fails fast: every problem is
// collected so a single response can tell the caller (or the model) all of
// the corrections it needs to make. Unknown keys are ignored and dropped from
// the validated data, which keeps over-generated fields from reaching any
// handler.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/registry"
)

// Validation is the outcome of Validate.
type Validation struct {
	Valid  bool           `json:"valid"`
	Data   map[string]any `json:"data,omitempty"`
	Errors []string       `json:"errors,omitempty"`
}

// Err returns nil for a valid result and a *core.ValidationError otherwise.
func (v Validation) Err(function string) error {
	if v.Valid {
		return nil
	}
	return core.NewValidationError(function, v.Errors...)
}

// Validate checks raw against schema. On success Data holds only declared
// parameters that were supplied, normalized to string or float64.
func Validate(schema registry.Schema, raw map[string]any) Validation {
	var errs []string
	data := make(map[string]any, len(schema))

	for _, p := range schema {
		value, present := raw[p.Name]
		if !present || isEmpty(value) {
			if p.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter: %s", p.Name))
			}
			continue
		}

		normalized, problem := check(p, value)
		if problem != "" {
			errs = append(errs, problem)
			continue
		}
		data[p.Name] = normalized
	}

	if len(errs) > 0 {
		return Validation{Valid: false, Errors: errs}
	}
	return Validation{Valid: true, Data: data}
}

func check(p registry.Parameter, value any) (any, string) {
	switch p.Type {
	case registry.TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, typeProblem(p.Name, "string", value)
		}
		return s, ""
	case registry.TypeNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, typeProblem(p.Name, "number", value)
		}
		return f, ""
	case registry.TypeEnum:
		s, ok := value.(string)
		if !ok {
			return nil, typeProblem(p.Name, "string (one of: "+strings.Join(p.Enum, ", ")+")", value)
		}
		if canonical, ok := matchEnum(p.Enum, s); ok {
			return canonical, ""
		}
		return nil, fmt.Sprintf("parameter %s must be one of: %s (got %q)", p.Name, strings.Join(p.Enum, ", "), s)
	default:
		return nil, fmt.Sprintf("parameter %s has unsupported type %q", p.Name, p.Type)
	}
}

func typeProblem(name, expected string, value any) string {
	return fmt.Sprintf("parameter %s must be of type %s, got %s", name, expected, jsonTypeName(value))
}

// matchEnum compares exactly first, then case-insensitively; a
// case-insensitive hit is normalized to the declared spelling.
func matchEnum(allowed []string, s string) (string, bool) {
	for _, a := range allowed {
		if a == s {
			return a, true
		}
	}
	trimmed := strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(a, trimmed) {
			return a, true
		}
	}
	return "", false
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// jsonTypeName names the JSON type of a decoded value for error messages.
func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	}
	if _, ok := toFloat(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}
