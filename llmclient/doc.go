// Package llmclient provides a provider-agnostic model client backing the
// agent loop's inference collaborator.
//
// It wraps gollm to present a small, uniform surface: a Client routes
// requests by provider identifier through optional middleware to a
// registered ProviderAdapter, classifies provider failures into a typed
// error taxonomy, and retries retryable errors with jittered exponential
// backoff. The agent loop consumes it through LoopClient, which renders the
// loop's message log into a request and returns the raw response text for
// envelope parsing.
package llmclient
