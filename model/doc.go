// Package model defines the provider-agnostic completion abstraction agents
// consume: given a system prompt and a transcript of messages, produce text.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Offer a synchronous Complete helper for callers that want one string
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) live in sub-packages; balancer spreads load
// over several backends.
package model
