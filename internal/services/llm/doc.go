// Package llm provides an OpenRouter/OpenAI-compatible chat client used as the
// reasoning service for lab result triage.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Evaluate: send one prompt, receive the model's text (the Reasoner seam
// consumed by the analysis and note-drafting steps).
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode JSON from a response, stripping markdown fences.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, 3 attempts by default).
// Context cancellation aborts retries immediately. Callers bound each call
// with their own context deadline.
package llm
