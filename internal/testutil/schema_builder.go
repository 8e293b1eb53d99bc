package testutil

import (
	"github.com/hupe1980/storefn/core"
)

// SchemaBuilder helps construct detected schemas with fluent chaining.
// Example:
//
//	schema := NewSchemaBuilder().Tab("Product List", "products", "Name", "Category").Build()
type SchemaBuilder struct {
	schema core.DetectedSchema
}

// NewSchemaBuilder creates an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{schema: core.DetectedSchema{}}
}

// Tab adds or overwrites a tab with its inferred role and columns (chainable).
func (b *SchemaBuilder) Tab(name, role string, columns ...string) *SchemaBuilder {
	b.schema[name] = core.SchemaEntry{Role: role, Columns: append([]string(nil), columns...)}
	return b
}

// Build returns a copy of the accumulated schema.
func (b *SchemaBuilder) Build() core.DetectedSchema {
	return b.schema.Clone()
}

// Config wraps the schema into a StoreConfig.
func (b *SchemaBuilder) Config() core.StoreConfig {
	return core.StoreConfig{DetectedSchema: b.Build()}
}

// Rows builds rows from a header and value lines, like a sheet export.
//
//	Rows([]string{"Name", "Price"}, []any{"Latte", 4.5}, []any{"Tea", 3})
func Rows(header []string, lines ...[]any) []core.Row {
	out := make([]core.Row, 0, len(lines))
	for _, line := range lines {
		r := core.Row{}
		for i, col := range header {
			if i < len(line) {
				r[col] = line[i]
			}
		}
		out = append(out, r)
	}
	return out
}
