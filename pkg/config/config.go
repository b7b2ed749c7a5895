// Package config loads gameforge settings from defaults, YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gameforge/pkg/invoker"
	"gameforge/pkg/llm"
	"gameforge/pkg/logx"
	"gameforge/pkg/metrics"
	"gameforge/pkg/provider"
)

// Provider names accepted in llm.provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOllama     = "ollama"
)

// Config is the full application configuration.
type Config struct {
	LLM      LLMConfig      `koanf:"llm" yaml:"llm"`
	Store    StoreConfig    `koanf:"store" yaml:"store"`
	EventLog EventLogConfig `koanf:"eventlog" yaml:"eventlog"`
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	Export   ExportConfig   `koanf:"export" yaml:"export"`
	Debug    DebugConfig    `koanf:"debug" yaml:"debug"`
}

// LLMConfig selects the provider, the per-mode models and the retry budget.
type LLMConfig struct {
	Provider          string        `koanf:"provider" yaml:"provider"`
	PlanModel         string        `koanf:"plan_model" yaml:"plan_model"`
	BuildModel        string        `koanf:"build_model" yaml:"build_model"`
	BaseURL           string        `koanf:"base_url" yaml:"base_url"`
	MaxAttempts       int           `koanf:"max_attempts" yaml:"max_attempts"`
	DelayBase         time.Duration `koanf:"delay_base" yaml:"delay_base"`
	AttemptTimeout    time.Duration `koanf:"attempt_timeout" yaml:"attempt_timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute" yaml:"requests_per_minute"`
}

type StoreConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// EventLogConfig points at the transition log directory. Empty disables it.
type EventLogConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`
}

type ServerConfig struct {
	Addr       string `koanf:"addr" yaml:"addr"`
	GuestOwner string `koanf:"guest_owner" yaml:"guest_owner"`
}

type ExportConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`
}

// DebugConfig mirrors DEBUG and DEBUG_DOMAINS.
type DebugConfig struct {
	Enabled bool     `koanf:"enabled" yaml:"enabled"`
	Domains []string `koanf:"domains" yaml:"domains"`
}

// Validate checks the loaded configuration for unusable values.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderOpenRouter, ProviderAnthropic, ProviderGoogle, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %s", c.LLM.Provider,
			strings.Join([]string{ProviderOpenRouter, ProviderAnthropic, ProviderGoogle, ProviderOllama}, ", ")))
	}
	if strings.TrimSpace(c.LLM.PlanModel) == "" {
		errs = append(errs, errors.New("llm.plan_model is required"))
	}
	if strings.TrimSpace(c.LLM.BuildModel) == "" {
		errs = append(errs, errors.New("llm.build_model is required"))
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.max_attempts must be positive, got %d", c.LLM.MaxAttempts))
	}
	if c.LLM.DelayBase < 0 {
		errs = append(errs, fmt.Errorf("llm.delay_base cannot be negative, got %s", c.LLM.DelayBase))
	}
	if c.LLM.AttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("llm.attempt_timeout cannot be negative, got %s", c.LLM.AttemptTimeout))
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_minute cannot be negative, got %d", c.LLM.RequestsPerMinute))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	return errors.Join(errs...)
}

// APIKeyEnv returns the environment variable holding the provider's key.
// Ollama needs none.
func (c *Config) APIKeyEnv() string {
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_GENAI_API_KEY"
	case ProviderOllama:
		return ""
	default:
		return "OPENROUTER_API_KEY"
	}
}

// APIKey resolves the provider key from the environment, then from the
// unlocked secrets file.
func (c *Config) APIKey() (string, error) {
	name := c.APIKeyEnv()
	if name == "" {
		return "", nil
	}
	return GetSecret(name)
}

// ProviderBaseURL returns the endpoint for providers that take one.
func (c *Config) ProviderBaseURL() string {
	if strings.ToLower(c.LLM.Provider) == ProviderOllama {
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			return host
		}
		if c.LLM.BaseURL == DefaultBaseURL {
			return ""
		}
	}
	return c.LLM.BaseURL
}

// Policy returns the invoker retry policy.
func (c *Config) Policy() invoker.Policy {
	return invoker.Policy{MaxAttempts: c.LLM.MaxAttempts, DelayBase: c.LLM.DelayBase}
}

// Models returns the per-mode model names.
func (c *Config) Models() llm.Models {
	return llm.Models{Plan: c.LLM.PlanModel, Build: c.LLM.BuildModel}
}

// ProviderOptions assembles the client options, resolving the API key.
func (c *Config) ProviderOptions(recorder metrics.Recorder) (provider.Options, error) {
	key, err := c.APIKey()
	if err != nil {
		return provider.Options{}, fmt.Errorf("provider %s: %w", c.LLM.Provider, err)
	}
	return provider.Options{
		Provider:          c.LLM.Provider,
		APIKey:            key,
		BaseURL:           c.ProviderBaseURL(),
		DefaultModel:      c.LLM.PlanModel,
		AttemptTimeout:    c.LLM.AttemptTimeout,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		Recorder:          recorder,
	}, nil
}

// ApplyDebug pushes the debug settings into logx.
func (c *Config) ApplyDebug() {
	if c.Debug.Enabled {
		logx.SetDebugConfig(true)
	}
	if len(c.Debug.Domains) > 0 {
		logx.SetDebugDomains(c.Debug.Domains)
	}
}
