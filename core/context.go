package core

import (
	"sort"

	"github.com/google/uuid"
)

// SchemaEntry describes one physical tab of a store's spreadsheet as detected
// during onboarding: its header columns and the semantic role it was
// classified as ("services", "products", "leads", ...).
type SchemaEntry struct {
	Columns []string `json:"columns" yaml:"columns"`
	Role    string   `json:"role" yaml:"role"`
}

// DetectedSchema maps physical tab names to their detected entry.
type DetectedSchema map[string]SchemaEntry

// Tabs returns the physical tab names in sorted order.
func (s DetectedSchema) Tabs() []string {
	tabs := make([]string, 0, len(s))
	for name := range s {
		tabs = append(tabs, name)
	}
	sort.Strings(tabs)
	return tabs
}

// Columns returns a copy of the declared columns for tab (nil when unknown).
func (s DetectedSchema) Columns(tab string) []string {
	entry, ok := s[tab]
	if !ok || len(entry.Columns) == 0 {
		return nil
	}
	return append([]string(nil), entry.Columns...)
}

// Clone returns a deep copy of the schema.
func (s DetectedSchema) Clone() DetectedSchema {
	if s == nil {
		return DetectedSchema{}
	}
	out := make(DetectedSchema, len(s))
	for name, entry := range s {
		out[name] = SchemaEntry{
			Columns: append([]string(nil), entry.Columns...),
			Role:    entry.Role,
		}
	}
	return out
}

// StoreConfig is the per-store configuration supplied with every request.
type StoreConfig struct {
	DetectedSchema DetectedSchema `json:"detectedSchema" yaml:"detectedSchema"`
}

// FunctionContext is the request scope of a single conversational turn. It
// is constructed once via NewFunctionContext and exposes read-only accessors;
// the detected schema is copied on construction and on access so neither the
// caller nor a handler can mutate it mid-request.
type FunctionContext struct {
	requestID string
	storeID   string
	authToken string
	schema    DetectedSchema
}

// NewFunctionContext builds the immutable context for one turn.
func NewFunctionContext(storeID, authToken string, cfg StoreConfig) *FunctionContext {
	return &FunctionContext{
		requestID: uuid.NewString(),
		storeID:   storeID,
		authToken: authToken,
		schema:    cfg.DetectedSchema.Clone(),
	}
}

// RequestID returns the identifier generated for this turn.
func (fc *FunctionContext) RequestID() string { return fc.requestID }

// StoreID returns the store the request targets.
func (fc *FunctionContext) StoreID() string { return fc.storeID }

// AuthToken returns the pre-validated actor token.
func (fc *FunctionContext) AuthToken() string { return fc.authToken }

// DetectedSchema returns a copy of the store's detected schema.
func (fc *FunctionContext) DetectedSchema() DetectedSchema { return fc.schema.Clone() }

// Schema returns the schema without copying. Callers must treat it as read-only.
func (fc *FunctionContext) Schema() DetectedSchema { return fc.schema }
