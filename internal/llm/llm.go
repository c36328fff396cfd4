// Package llm abstracts the external inference service the summarizer
// calls. Providers translate their transport failures into a small
// taxonomy so the summarizer can log and fall back appropriately.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Failure taxonomy. Providers wrap these with detail; callers test with
// errors.Is.
var (
	ErrTimeout    = errors.New("inference request timed out")
	ErrConnection = errors.New("inference service unreachable")
	ErrMalformed  = errors.New("inference service returned a malformed or empty response")
)

// Client is a single request/response inference call. Implementations
// honor ctx cancellation and their configured request timeout.
type Client interface {
	// Complete sends a prompt and returns the generated text.
	Complete(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model for logging.
	Name() string
}

// Options configures a provider.
type Options struct {
	Timeout time.Duration // Per-request timeout
	Host    string        // Ollama host URL
	Model   string
	APIKey  string // Gemini only
}

// New builds the configured provider. Supported providers: "ollama"
// (default, local) and "gemini".
func New(provider string, opts Options) (Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	switch provider {
	case "", "ollama":
		return NewOllama(opts), nil
	case "gemini":
		return NewGemini(opts)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
