package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Check compiles the exported JSON Schema of every function. A definition
// whose schema a function-calling model would reject is a startup error.
func (r *Registry) Check() error {
	_, err := r.compile()
	return err
}

// CompiledSchemas returns the compiled JSON Schema per function name.
func (r *Registry) CompiledSchemas() (map[string]*jsonschema.Schema, error) {
	return r.compile()
}

func (r *Registry) compile() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	urls := make(map[string]string, len(r.order))
	for _, name := range r.order {
		raw, err := json.Marshal(r.defs[name].Parameters.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("registry: marshal schema of %s: %w", name, err)
		}
		url := fmt.Sprintf("file:///storefn/functions/%s.json", name)
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("registry: add schema of %s: %w", name, err)
		}
		urls[name] = url
	}

	out := make(map[string]*jsonschema.Schema, len(urls))
	for _, name := range r.order {
		sch, err := compiler.Compile(urls[name])
		if err != nil {
			return nil, fmt.Errorf("registry: compile schema of %s: %w", name, err)
		}
		out[name] = sch
	}
	return out, nil
}
