package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenerationConfig tunes one model call.
type GenerationConfig struct {
	Temperature     float32
	MaxOutputTokens int32
	JSON            bool
}

// Generator is a text generation backend. Implement this interface to add new AI providers.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

var (
	// ErrBlocked is returned when the provider refuses to answer for safety reasons.
	ErrBlocked = errors.New("response blocked by safety filters")
	// ErrEmptyResponse is returned when the provider answers with no text.
	ErrEmptyResponse = errors.New("empty model response")
)

// RateLimitError signals that the provider asked us to slow down.
// RetryAfter is the provider's suggested wait, zero when it gave none.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AsRateLimit extracts a RateLimitError from err's chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
