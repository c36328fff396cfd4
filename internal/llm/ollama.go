package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Ollama calls a local Ollama server over its plain HTTP API.
type Ollama struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewOllama builds an Ollama client with defaults for a local install.
func NewOllama(opts Options) *Ollama {
	host := strings.TrimRight(opts.Host, "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := opts.Model
	if model == "" {
		model = "qwen2.5:1.5b-instruct"
	}
	return &Ollama{
		host:  host,
		model: model,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Name identifies the provider and model.
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete sends a non-streaming generate request.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrMalformed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrConnection, resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformed)
	}
	return text, nil
}

// classifyTransportError maps an HTTP client error into the taxonomy:
// deadline and timeout errors become ErrTimeout, everything else is a
// connection failure.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// Ping reports whether the Ollama server is reachable. Used by serve
// mode to warn at startup rather than on the first run.
func (o *Ollama) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
