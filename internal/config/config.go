// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/synapse-agent/synapse/internal/constants"
)

// Config is the root configuration structure.
type Config struct {
	DefaultProvider string                    `toml:"default_provider"`
	Providers       map[string]ProviderConfig `toml:"providers"`
	MCP             MCPConfig                 `toml:"mcp"`
	Cache           CacheConfig               `toml:"cache"`
	UI              UIConfig                  `toml:"ui"`
	Limits          LimitsConfig              `toml:"limits"`
}

// LimitsConfig holds the runtime ceilings that bound agent-loop and
// sub-agent concurrency and resource usage. Every field can be overridden
// by a SYNAPSE_* environment variable; the TOML value (if any) wins over
// the built-in default, and the environment wins over both.
type LimitsConfig struct {
	// MaxParallelTasks caps how many task: sub-agents may run concurrently
	// from a single parent step. SYNAPSE_MAX_PARALLEL_TASKS.
	MaxParallelTasks int `toml:"max_parallel_tasks"`

	// MaxTokens caps the context window a single provider request may
	// consume before agentloop forces an offload. SYNAPSE_MAX_TOKENS.
	MaxTokens int `toml:"max_tokens"`

	// MaxRoundsKept caps how many recent per-round usage entries the
	// session's usage accumulator keeps in its tail.
	// SYNAPSE_MAX_ROUNDS_KEPT.
	MaxRoundsKept int `toml:"max_rounds_kept"`

	// MaxEnhanceContextChars is loaded and defaulted like the other limits,
	// but no component reads it: a skill-enhance sub-agent is handed only
	// the prompt it was dispatched with, and no length cap is applied.
	// SYNAPSE_MAX_ENHANCE_CONTEXT_CHARS.
	MaxEnhanceContextChars int `toml:"max_enhance_context_chars"`

	// FailureWindowSize is the sliding window, in most-recent tool results,
	// the failure-threshold stop condition inspects. SYNAPSE_FAILURE_WINDOW_SIZE.
	FailureWindowSize int `toml:"failure_window_size"`

	// FailureThreshold is how many IsError results within the window stop
	// the agent loop. SYNAPSE_FAILURE_THRESHOLD.
	FailureThreshold int `toml:"failure_threshold"`

	// MCPTimeoutMS is loaded and defaulted like the other limits, in
	// milliseconds, but is not passed to the MCP client; the client's HTTP
	// timeout is fixed at 30 seconds. SYNAPSE_MCP_TIMEOUT_MS.
	MCPTimeoutMS int `toml:"mcp_timeout_ms"`

	// OffloadScanRatio is the fraction (oldest-first, by position) of a
	// session's history the offload pass scans once MaxTokens is
	// exceeded. SYNAPSE_OFFLOAD_SCAN_RATIO.
	OffloadScanRatio float64 `toml:"offload_scan_ratio"`

	// OffloadMinChars is the shortest tool-result body the offload pass
	// will rewrite out of the live transcript; shorter bodies aren't worth
	// the indirection. SYNAPSE_OFFLOAD_MIN_CHARS.
	OffloadMinChars int `toml:"offload_min_chars"`
}

const (
	defaultMaxParallelTasks       = 5
	defaultMaxTokens              = 128000
	defaultMaxRoundsKept          = 50
	defaultMaxEnhanceContextChars = 8000
	defaultFailureWindowSize      = 10
	defaultFailureThreshold       = 3
	defaultMCPTimeoutMS           = 30000
	defaultOffloadScanRatio       = 0.5
	defaultOffloadMinChars        = 50
)

// WithDefaults returns a copy of l with every zero-valued field replaced by
// its built-in default.
func (l LimitsConfig) WithDefaults() LimitsConfig {
	if l.MaxParallelTasks <= 0 {
		l.MaxParallelTasks = defaultMaxParallelTasks
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = defaultMaxTokens
	}
	if l.MaxRoundsKept <= 0 {
		l.MaxRoundsKept = defaultMaxRoundsKept
	}
	if l.MaxEnhanceContextChars <= 0 {
		l.MaxEnhanceContextChars = defaultMaxEnhanceContextChars
	}
	if l.FailureWindowSize <= 0 {
		l.FailureWindowSize = defaultFailureWindowSize
	}
	if l.FailureThreshold <= 0 {
		l.FailureThreshold = defaultFailureThreshold
	}
	if l.MCPTimeoutMS <= 0 {
		l.MCPTimeoutMS = defaultMCPTimeoutMS
	}
	if l.OffloadScanRatio <= 0 {
		l.OffloadScanRatio = defaultOffloadScanRatio
	}
	if l.OffloadMinChars <= 0 {
		l.OffloadMinChars = defaultOffloadMinChars
	}
	return l
}

// UIConfig holds user-interface settings.
type UIConfig struct {
	// SyntaxTheme is the Chroma syntax highlighting theme the REPL uses to
	// highlight the final assistant reply of each turn.
	// Defaults to "vulcan" if unset.
	SyntaxTheme string `toml:"syntax_theme"`
}

// SyntaxThemeOrDefault returns the configured syntax theme or constants.DefaultSyntaxTheme if unset.
func (u UIConfig) SyntaxThemeOrDefault() string {
	if u.SyntaxTheme == "" {
		return constants.DefaultSyntaxTheme
	}
	return u.SyntaxTheme
}

// CacheConfig holds web cache settings.
type CacheConfig struct {
	TTLHours int `toml:"ttl_hours"`
}

// CacheTTLOrDefault returns the configured TTL or 24 hours if unset.
func (c CacheConfig) CacheTTLOrDefault() int {
	if c.TTLHours <= 0 {
		return 24
	}
	return c.TTLHours
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	// Type selects the provider implementation: "ollama" (any
	// OpenAI/Ollama-compatible endpoint, the default), "zen", "vllm", or
	// "anthropic". The provider's registry key is still its map name in
	// Providers, so two entries of the same Type can coexist under
	// different names.
	Type        string  `toml:"type"`
	Endpoint    string  `toml:"endpoint"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// TypeOrDefault returns the configured provider type, defaulting to "ollama".
func (p ProviderConfig) TypeOrDefault() string {
	if p.Type == "" {
		return "ollama"
	}
	return p.Type
}

// MCPConfig holds MCP proxy settings.
type MCPConfig struct {
	Upstream string `toml:"upstream"`
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	// Config file is required
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	// File must exist
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Load from file
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)
	cfg.Limits = cfg.Limits.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	} else {
		for name, providerCfg := range c.Providers {
			errs = append(errs, validateProviderConfig(name, providerCfg)...)
		}
	}

	// Validate default provider if specified
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider=%q does not exist in providers", c.DefaultProvider))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateProviderConfig(name string, cfg ProviderConfig) []error {
	var errs []error
	if cfg.Endpoint == "" {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint is required", name))
	} else if err := validateEndpoint(cfg.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint=%q is invalid: %v", name, cfg.Endpoint, err))
	}

	if cfg.Model == "" {
		errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
	}

	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("providers.%s.temperature=%v must be between 0.0 and 2.0", name, cfg.Temperature))
	}

	return errs
}

func validateEndpoint(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("missing scheme or host")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"SYNAPSE_MCP_ENDPOINT", func(v string) {
			if v != "" {
				cfg.MCP.Upstream = v
			}
		}},
		{"SYNAPSE_MAX_PARALLEL_TASKS", intSetter(&cfg.Limits.MaxParallelTasks)},
		{"SYNAPSE_MAX_TOKENS", intSetter(&cfg.Limits.MaxTokens)},
		{"SYNAPSE_MAX_ROUNDS_KEPT", intSetter(&cfg.Limits.MaxRoundsKept)},
		{"SYNAPSE_MAX_ENHANCE_CONTEXT_CHARS", intSetter(&cfg.Limits.MaxEnhanceContextChars)},
		{"SYNAPSE_FAILURE_WINDOW_SIZE", intSetter(&cfg.Limits.FailureWindowSize)},
		{"SYNAPSE_FAILURE_THRESHOLD", intSetter(&cfg.Limits.FailureThreshold)},
		{"SYNAPSE_MCP_TIMEOUT_MS", intSetter(&cfg.Limits.MCPTimeoutMS)},
		{"SYNAPSE_OFFLOAD_SCAN_RATIO", floatSetter(&cfg.Limits.OffloadScanRatio)},
		{"SYNAPSE_OFFLOAD_MIN_CHARS", intSetter(&cfg.Limits.OffloadMinChars)},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}

// intSetter parses a non-empty string as an int and stores it at dst,
// silently leaving dst untouched on a malformed or empty value so a bad
// environment variable falls back to the TOML value or built-in default
// rather than zeroing out a working config.
func intSetter(dst *int) func(string) {
	return func(v string) {
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return
		}
		*dst = n
	}
}

// floatSetter is intSetter's float64 counterpart, for ratio-valued limits.
func floatSetter(dst *float64) func(string) {
	return func(v string) {
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return
		}
		*dst = f
	}
}

// DataDir returns the path to the Synapse data directory (~/.config/synapse).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "synapse"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}
