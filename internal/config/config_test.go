package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalValidConfig = `
default_provider = "anthropic"

[providers.anthropic]
endpoint = "https://api.anthropic.com"
model = "claude-sonnet"
temperature = 0.7
`

func TestLoadAppliesLimitsDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalValidConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Limits.MaxParallelTasks != defaultMaxParallelTasks {
		t.Errorf("MaxParallelTasks = %d, want %d", cfg.Limits.MaxParallelTasks, defaultMaxParallelTasks)
	}
	if cfg.Limits.FailureThreshold != defaultFailureThreshold {
		t.Errorf("FailureThreshold = %d, want %d", cfg.Limits.FailureThreshold, defaultFailureThreshold)
	}
	if cfg.Limits.MCPTimeoutMS != defaultMCPTimeoutMS {
		t.Errorf("MCPTimeoutMS = %d, want %d", cfg.Limits.MCPTimeoutMS, defaultMCPTimeoutMS)
	}
}

func TestLoadHonorsTOMLLimitsOverDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalValidConfig+`
[limits]
max_parallel_tasks = 8
failure_threshold = 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.MaxParallelTasks != 8 {
		t.Errorf("MaxParallelTasks = %d, want 8", cfg.Limits.MaxParallelTasks)
	}
	if cfg.Limits.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Limits.FailureThreshold)
	}
	// Untouched fields still fall back to built-in defaults.
	if cfg.Limits.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", cfg.Limits.MaxTokens, defaultMaxTokens)
	}
}

func TestEnvOverridesWinOverTOML(t *testing.T) {
	path := writeConfigFile(t, minimalValidConfig+`
[limits]
max_parallel_tasks = 8
`)

	t.Setenv("SYNAPSE_MAX_PARALLEL_TASKS", "2")
	t.Setenv("SYNAPSE_MCP_ENDPOINT", "https://mcp.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.MaxParallelTasks != 2 {
		t.Errorf("MaxParallelTasks = %d, want 2 (env should win)", cfg.Limits.MaxParallelTasks)
	}
	if cfg.MCP.Upstream != "https://mcp.example.com" {
		t.Errorf("MCP.Upstream = %q", cfg.MCP.Upstream)
	}
}

func TestEnvOverrideIgnoresMalformedValue(t *testing.T) {
	path := writeConfigFile(t, minimalValidConfig)
	t.Setenv("SYNAPSE_MAX_TOKENS", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default %d when env is malformed", cfg.Limits.MaxTokens, defaultMaxTokens)
	}
}

func TestLoadRejectsMissingProviders(t *testing.T) {
	path := writeConfigFile(t, `default_provider = "anthropic"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for config with no providers")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
