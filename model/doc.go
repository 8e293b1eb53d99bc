// Package model defines the provider‑agnostic abstractions for talking to
// language models from storefn.
//
// storefn does not let a model choose which function to run; that happens
// upstream. Models are used as collaborators inside the core, chiefly as the
// ranking backend of the semantic matcher, and the function registry exports
// its catalog in the ToolDefinition shape consumed by function-calling models.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Describe callable functions declaratively (ToolDefinition)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI) implement the Model interface in sub-packages
// so higher layers remain decoupled from vendor SDKs.
package model
