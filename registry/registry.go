// Package registry holds the static, versioned catalog of functions the model
// layer may invoke, together with the parameter contract of each one.
//
// The catalog is immutable after construction and safe for concurrent use. The
// executor checks its dispatch table against the registry at startup, so a
// function that is declared but not implemented (or the reverse) is reported
// before the first request is served.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/storefn/model"
)

// ParameterType is the primitive type of a parameter.
type ParameterType string

const (
	// TypeString accepts JSON strings.
	TypeString ParameterType = "string"
	// TypeNumber accepts JSON numbers (integers or floats).
	TypeNumber ParameterType = "number"
	// TypeEnum accepts a string from a declared set of values.
	TypeEnum ParameterType = "enum"
)

// Parameter declares a single named argument.
type Parameter struct {
	Name        string        `json:"name" yaml:"name"`
	Type        ParameterType `json:"type" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool          `json:"required" yaml:"required"`
	Enum        []string      `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Schema is the ordered parameter list of a function. Order is preserved in
// validation error output and in the exported JSON Schema.
type Schema []Parameter

// Lookup returns the parameter called name.
func (s Schema) Lookup(name string) (Parameter, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// RequiredNames returns the names of all required parameters in declaration order.
func (s Schema) RequiredNames() []string {
	var out []string
	for _, p := range s {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// JSONSchema renders the schema as a minimal JSON Schema object suitable for
// model function calling.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	for _, p := range s {
		prop := map[string]any{}
		switch p.Type {
		case TypeNumber:
			prop["type"] = "number"
		case TypeEnum:
			prop["type"] = "string"
			enum := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		default:
			prop["type"] = "string"
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := s.RequiredNames(); len(req) > 0 {
		required := make([]any, len(req))
		for i, r := range req {
			required[i] = r
		}
		out["required"] = required
	}
	return out
}

// FunctionDefinition is one invocable operation.
type FunctionDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Parameters  Schema `json:"parameters" yaml:"parameters"`
}

// ToolDefinition converts the definition into the model function-calling shape.
func (d FunctionDefinition) ToolDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters.JSONSchema(),
		},
	}
}

// Registry is an immutable catalog of FunctionDefinitions.
type Registry struct {
	version string
	order   []string
	defs    map[string]FunctionDefinition
}

// New builds a registry. It rejects empty or duplicate names and structurally
// broken parameter declarations.
func New(version string, defs ...FunctionDefinition) (*Registry, error) {
	r := &Registry{
		version: version,
		defs:    make(map[string]FunctionDefinition, len(defs)),
	}
	for _, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("registry: function with empty name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate function %q", d.Name)
		}
		if err := checkSchema(d); err != nil {
			return nil, err
		}
		d.Parameters = append(Schema(nil), d.Parameters...)
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for static catalogs.
func MustNew(version string, defs ...FunctionDefinition) *Registry {
	r, err := New(version, defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func checkSchema(d FunctionDefinition) error {
	seen := map[string]bool{}
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("registry: %s: parameter with empty name", d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("registry: %s: duplicate parameter %q", d.Name, p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case TypeString, TypeNumber:
		case TypeEnum:
			if len(p.Enum) == 0 {
				return fmt.Errorf("registry: %s: enum parameter %q has no allowed values", d.Name, p.Name)
			}
		default:
			return fmt.Errorf("registry: %s: parameter %q has unsupported type %q", d.Name, p.Name, p.Type)
		}
	}
	return nil
}

// Version returns the catalog version.
func (r *Registry) Version() string { return r.version }

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (FunctionDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the registered function names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// SortedNames returns the registered function names sorted alphabetically.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

// Definitions returns all definitions in declaration order.
func (r *Registry) Definitions() []FunctionDefinition {
	out := make([]FunctionDefinition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

// ToolDefinitions exports the catalog in the model function-calling format.
func (r *Registry) ToolDefinitions() []model.ToolDefinition {
	out := make([]model.ToolDefinition, 0, len(r.order))
	for _, d := range r.Definitions() {
		out = append(out, d.ToolDefinition())
	}
	return out
}
