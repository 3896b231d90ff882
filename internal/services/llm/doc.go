// Package llm is the text-generation provider client: a small wrapper around
// OpenAI-compatible chat completion endpoints (OpenRouter, Ollama and anything
// else that speaks the same schema).
//
// Callers send a system prompt and a user prompt and receive the model's JSON
// payload as a string; DecodeJSON tolerates the usual formatting quirks
// (code fences, prose around the object).
//
// Requests that fail with HTTP 408/429/5xx, network timeouts or an empty
// completion are retried with exponential backoff (1s base, 10s cap, five
// attempts by default). Context cancellation stops retries immediately.
//
// An API key is required unless the endpoint is on a loopback address.
package llm
