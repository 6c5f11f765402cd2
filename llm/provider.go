// Package llm defines the narrow synchronous chat contract the agent loop
// consumes, together with an OpenAI-compatible reference implementation.
// The loop depends on nothing else about the provider: one request in,
// one response with content and token usage out.
package llm

import (
	"context"
	"time"

	"github.com/BaSui01/scriptflow/types"
)

// ChatRequest is a single synchronous model call.
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	// Reasoning asks the provider for its reasoning trace when supported.
	Reasoning bool `json:"reasoning,omitempty"`
}

// ChatResponse carries the assistant reply and the usage accounting the
// loop accumulates across iterations.
type ChatResponse struct {
	Content   string           `json:"content"`
	Usage     types.TokenUsage `json:"usage"`
	Reasoning string           `json:"reasoning,omitempty"`
}

// Provider is the model collaborator contract.
type Provider interface {
	Name() string
	// Chat performs one synchronous model call. A non-nil error aborts
	// the whole turn; recoverable conditions must not be encoded here.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// HealthCheck reports whether the provider is reachable.
	HealthCheck(ctx context.Context) bool
}

// Config configures the shipped HTTP provider.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns provider defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.openai.com",
		Model:     "gpt-4o-mini",
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}
