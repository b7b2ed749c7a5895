package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every configuration environment variable.
	EnvPrefix = "GAMEFORGE_"
	// DefaultConfigFile is read from the working directory when no path is given.
	DefaultConfigFile = "gameforge.yaml"
	// DefaultBaseURL is the OpenRouter endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults returns the built-in configuration.
func Defaults() []byte {
	return append([]byte(nil), defaultsYAML...)
}

// Load builds the configuration. Precedence, lowest to highest:
//
//  1. built-in defaults
//  2. YAML file (configPath, or ./gameforge.yaml if present)
//  3. OPENROUTER_MODEL / OPENROUTER_MODEL_BUILDER
//  4. GAMEFORGE_* variables, "__" separating levels:
//     GAMEFORGE_LLM__PLAN_MODEL -> llm.plan_model
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}
	content, err := readConfigFile(configPath)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := k.Load(env.Provider("OPENROUTER_", ".", legacyEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy environment variables: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps GAMEFORGE_LLM__PLAN_MODEL to llm.plan_model.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// legacyEnvKey maps the OpenRouter variable names; anything else is ignored.
func legacyEnvKey(s string) string {
	switch s {
	case "OPENROUTER_MODEL":
		return "llm.plan_model"
	case "OPENROUTER_MODEL_BUILDER":
		return "llm.build_model"
	default:
		return ""
	}
}
