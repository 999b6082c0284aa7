package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `{
  "providers": [
    {
      "name": "primary",
      "enabled": true,
      "priority": 1,
      "api_key": "${TEST_PRIMARY_KEY}",
      "base_url": "https://api.example.com/v1",
      "models": {"big": ["m1", "m2"], "middle": ["m1"], "small": ["m1"]}
    }
  ],
  "fallback_strategy": "priority",
  "health_check_interval": 15,
  "circuit_breaker": {"failure_threshold": 3, "recovery_timeout": 30}
}`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadProviderManagerConfig_ExpandsVars(t *testing.T) {
	t.Setenv("TEST_PRIMARY_KEY", "sk-secret")
	path := writeTempConfig(t, sampleConfig)

	cfg, err := LoadProviderManagerConfig(path)
	if err != nil {
		t.Fatalf("LoadProviderManagerConfig: %v", err)
	}
	if got := cfg.Providers[0].APIKey; got != "sk-secret" {
		t.Errorf("api_key = %q, want sk-secret", got)
	}
	if cfg.HealthCheckInterval != 15 {
		t.Errorf("health_check_interval = %d, want 15", cfg.HealthCheckInterval)
	}
	if cfg.CircuitBreaker.FailureThreshold != 3 {
		t.Errorf("failure_threshold = %d, want 3", cfg.CircuitBreaker.FailureThreshold)
	}
	if cfg.Providers[0].MaxRetries != DefaultProviderMaxRetries {
		t.Errorf("max_retries default not applied, got %d", cfg.Providers[0].MaxRetries)
	}
}

func TestLoadProviderManagerConfig_MissingFile(t *testing.T) {
	_, err := LoadProviderManagerConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLegacyProviderManagerConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("BIG_MODEL", "gpt-4o")
	t.Setenv("CUSTOM_HEADER_X_ORG_ID", "acme")

	cfg, err := LegacyProviderManagerConfig()
	if err != nil {
		t.Fatalf("LegacyProviderManagerConfig: %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("base_url = %q", p.BaseURL)
	}
	if p.Models.Big[0] != "gpt-4o" {
		t.Errorf("big model = %q", p.Models.Big[0])
	}
	if p.CustomHeaders["x-org-id"] != "acme" {
		t.Errorf("custom header not translated: %+v", p.CustomHeaders)
	}
}

func TestLegacyProviderManagerConfig_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := LegacyProviderManagerConfig(); err == nil {
		t.Fatal("expected error when OPENAI_API_KEY unset")
	}
}

func TestIsLegacyPassthrough(t *testing.T) {
	cases := map[string]bool{
		"gpt-4o":          true,
		"o1-preview":      true,
		"deepseek-chat":   true,
		"claude-3-opus":   false,
	}
	for name, want := range cases {
		if got := IsLegacyPassthrough(name); got != want {
			t.Errorf("IsLegacyPassthrough(%q) = %v, want %v", name, got, want)
		}
	}
}
