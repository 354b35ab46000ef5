package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "llm:\n  default_provider: anthropic\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Fatalf("expected default metrics port 9090, got %d", cfg.Server.MetricsPort)
	}
	if cfg.SubAgent.MaxDepth != 3 {
		t.Fatalf("expected default subagent max depth 3, got %d", cfg.SubAgent.MaxDepth)
	}
	if cfg.SubAgent.StoreMode != "file" {
		t.Fatalf("expected default store mode file, got %q", cfg.SubAgent.StoreMode)
	}
	if cfg.Tools.Execution.MaxIterations != 24 {
		t.Fatalf("expected default max iterations 24, got %d", cfg.Tools.Execution.MaxIterations)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "not_a_real_field: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsInvalidStoreMode(t *testing.T) {
	path := writeTempConfig(t, "subagent:\n  store_mode: bogus\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(*ConfigValidationError); !ok {
		t.Fatalf("expected *ConfigValidationError, got %T: %v", err, err)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_AGENTCORE_KEY", "sk-test-123")
	path := writeTempConfig(t, "llm:\n  providers:\n    anthropic:\n      api_key: \"${TEST_AGENTCORE_KEY}\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers["anthropic"].APIKey; got != "sk-test-123" {
		t.Fatalf("expected expanded api key, got %q", got)
	}
}

func TestEnvOverrideSetsProviderKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env-override")
	path := writeTempConfig(t, "llm:\n  default_provider: anthropic\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers["anthropic"].APIKey; got != "sk-env-override" {
		t.Fatalf("expected env override api key, got %q", got)
	}
}
