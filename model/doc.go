// Package model defines the provider-agnostic abstractions for talking to
// language models from encapt agents.
//
// Core goals:
//   - A single Generate call returning response and error channels
//   - Normalized tool / function call representation (ToolDefinition)
//   - Request/response shapes that stay independent of vendor SDKs
//   - Lightweight scripted models for tests (MockModel, ScriptedModel)
//
// Providers (openai, anthropic) implement Model in sub packages so agents
// remain decoupled from vendor SDKs.
package model
