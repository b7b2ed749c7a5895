// Package provider builds the single configured LLM client and its middleware chain.
package provider

import (
	"fmt"
	"strings"
	"time"

	"gameforge/pkg/llm"
	"gameforge/pkg/llm/middleware/metrics"
	"gameforge/pkg/llm/middleware/ratelimit"
	"gameforge/pkg/llm/middleware/timeout"
	"gameforge/pkg/logx"
	metricsrec "gameforge/pkg/metrics"
	"gameforge/pkg/provider/internal/llmimpl/anthropic"
	"gameforge/pkg/provider/internal/llmimpl/google"
	"gameforge/pkg/provider/internal/llmimpl/ollama"
	"gameforge/pkg/provider/internal/llmimpl/openrouter"
)

// Provider names.
const (
	OpenRouter = "openrouter"
	Anthropic  = "anthropic"
	Google     = "google"
	Ollama     = "ollama"
)

// Options configures the client.
type Options struct {
	Provider          string
	APIKey            string
	BaseURL           string // OpenRouter-compatible base URL or Ollama host
	DefaultModel      string
	AttemptTimeout    time.Duration
	RequestsPerMinute int
	Recorder          metricsrec.Recorder
}

// Names returns the supported provider names.
func Names() []string {
	return []string{OpenRouter, Anthropic, Google, Ollama}
}

// NewRaw returns the bare provider adapter.
func NewRaw(opts Options) (llm.LLMClient, error) {
	switch strings.ToLower(opts.Provider) {
	case OpenRouter, "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", OpenRouter)
		}
		return openrouter.New(opts.APIKey, opts.BaseURL, opts.DefaultModel), nil
	case Anthropic:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", Anthropic)
		}
		return anthropic.New(opts.APIKey, opts.DefaultModel), nil
	case Google:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", Google)
		}
		return google.New(opts.APIKey, opts.DefaultModel), nil
	case Ollama:
		return ollama.New(opts.BaseURL, opts.DefaultModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: %s)", opts.Provider, strings.Join(Names(), ", "))
	}
}

// New returns the provider adapter wrapped as:
// metrics -> rate limit -> per-attempt timeout -> provider.
func New(opts Options) (llm.LLMClient, error) {
	raw, err := NewRaw(opts)
	if err != nil {
		return nil, err
	}
	return Wrap(raw, opts), nil
}

// Wrap applies the standard middleware chain to client.
func Wrap(client llm.LLMClient, opts Options) llm.LLMClient {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metricsrec.Nop()
	}
	return llm.Chain(client,
		metrics.Middleware(recorder, nil, logx.NewLogger("llm")),
		ratelimit.Middleware(ratelimit.NewLimiter(opts.RequestsPerMinute), recorder),
		timeout.Middleware(opts.AttemptTimeout),
	)
}
