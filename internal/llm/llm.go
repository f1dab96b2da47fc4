// Package llm provides the summarization model clients.
package llm

import (
	"context"
)

// Client sends a prompt to a language model and returns the generated text.
// Implementations carry their own model name, token budget and temperature;
// callers treat any error as "summarization unavailable" and fall back to a
// deterministic template.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options bounds one provider's generation.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}
