// Package llm — ChatProvider interface.
// Adapters implement this interface so the completion loop is never coupled
// to a specific model vendor.
package llm

import "context"

// ChatProvider is the model-facing interface consumed by the completion loop.
type ChatProvider interface {
	// ChatCompletion performs a non-streaming chat completion with tool
	// advertisement. Implementations must not retry internally; a transport
	// or provider failure is surfaced to the caller as an error.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
