// Package core provides the foundational domain types shared by storefn:
//
//   - FunctionContext (immutable per-turn request scope: store, actor token, store config)
//   - DetectedSchema / SchemaEntry (per-store physical tabs, columns and inferred roles)
//   - Row (one untyped spreadsheet record)
//   - Result (the two-variant success/failure envelope returned to the model layer)
//   - the error taxonomy (validation, resolution, transport, unknown function)
//
// The package intentionally keeps implementation concerns (HTTP, ranking,
// dispatch) out of scope so every other package can depend on it without
// pulling transitive dependencies.
package core
