package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// varPattern matches "${NAME}" references inside config string fields.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars substitutes every ${VAR} occurrence in s against the process
// environment. A reference to an unset variable expands to the empty
// string; callers that require the variable to be present (enabled
// providers, per §4.2) check for that separately.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}

// referencedVars returns the variable names referenced by s, in order of
// first appearance.
func referencedVars(s string) []string {
	matches := varPattern.FindAllStringSubmatch(s, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// expandProviderVars expands ${VAR} references in the fields §6 allows
// them in: api_key, base_url, and each custom_headers value.
func expandProviderVars(p ProviderConfig) ProviderConfig {
	p.APIKey = expandVars(p.APIKey)
	p.BaseURL = expandVars(p.BaseURL)
	if p.CustomHeaders != nil {
		expanded := make(map[string]string, len(p.CustomHeaders))
		for k, v := range p.CustomHeaders {
			expanded[k] = expandVars(v)
		}
		p.CustomHeaders = expanded
	}
	return p
}

// missingEnvVars reports which ${VAR} references in a provider's
// substitutable fields name an unset environment variable.
func missingEnvVars(p ProviderConfig) []string {
	var missing []string
	check := func(s string) {
		for _, name := range referencedVars(s) {
			if _, ok := os.LookupEnv(name); !ok {
				missing = append(missing, name)
			}
		}
	}
	check(p.APIKey)
	check(p.BaseURL)
	for _, v := range p.CustomHeaders {
		check(v)
	}
	return missing
}

// LoadProviderManagerConfig reads and parses the JSON document at path into
// a ProviderManagerConfig, applying defaults and expanding ${VAR}
// references. An enabled provider that references an unset env var fails
// the load; disabled providers may reference unset vars (they expand to "").
func LoadProviderManagerConfig(path string) (*ProviderManagerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg ProviderManagerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i, p := range cfg.Providers {
		if p.Enabled {
			if missing := missingEnvVars(p); len(missing) > 0 {
				return nil, fmt.Errorf("config: provider %q references unset environment variable(s): %s", p.Name, strings.Join(missing, ", "))
			}
		}
		cfg.Providers[i] = expandProviderVars(p)
	}

	ApplyProviderManagerDefaults(&cfg)
	return &cfg, nil
}

// SaveProviderManagerConfig validates cfg and writes it to path as indented
// JSON, replacing the file's previous contents. Used by the admin surface's
// whole-document replace endpoint (§6); rejects an invalid document before
// touching disk.
func SaveProviderManagerConfig(path string, cfg *ProviderManagerConfig) error {
	if err := ValidateProviderManagerConfig(cfg); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads the full process Config: the ambient server/logging
// sections plus the provider manager document at providersPath. It falls
// back to LegacyProviderManagerConfig when providersPath does not exist,
// matching the "Legacy mode" glossary entry.
func LoadConfig(providersPath string) (*Config, error) {
	cfg := &Config{}
	ApplyServerDefaults(&cfg.Server)
	ApplyTokenLimitDefaults(&cfg.TokenLimits)
	ApplyLoggingDefaults(&cfg.Logging)
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	applyServerEnvOverrides(&cfg.Server)
	applyTokenLimitEnvOverrides(&cfg.TokenLimits)
	applyLoggingEnvOverrides(&cfg.Logging)

	if _, err := os.Stat(providersPath); err == nil {
		pmc, err := LoadProviderManagerConfig(providersPath)
		if err != nil {
			return nil, err
		}
		cfg.Providers = *pmc
		return cfg, nil
	}

	pmc, err := LegacyProviderManagerConfig()
	if err != nil {
		return nil, fmt.Errorf("config: no file at %s and legacy bootstrap failed: %w", providersPath, err)
	}
	cfg.Providers = *pmc
	return cfg, nil
}

func applyServerEnvOverrides(s *ServerConfig) {
	host := os.Getenv("HOST")
	port := os.Getenv("PORT")
	if host != "" || port != "" {
		if host == "" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		s.ListenAddress = host + ":" + port
	}
}

func applyTokenLimitEnvOverrides(t *TokenLimits) {
	if v := os.Getenv("MAX_TOKENS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			t.Max = n
		}
	}
	if v := os.Getenv("MIN_TOKENS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			t.Min = n
		}
	}
}

func applyLoggingEnvOverrides(l *LoggingConfig) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		l.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		l.Format = v
	}
}
