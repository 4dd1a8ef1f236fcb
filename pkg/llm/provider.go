package llm

import (
	"context"
	"fmt"
)

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Infer sends the full history and the advertised tools and returns the
	// model's next turn. Implementations must treat history as read-only and
	// must not retry on failure.
	Infer(ctx context.Context, history []Turn, tools []ToolSpec) (*Message, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float32
	SystemPrompt string
}

// InferenceError reports a failed inference call. It is fatal to the
// conversation that issued it.
type InferenceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s inference failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s inference failed: %v", e.Provider, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
