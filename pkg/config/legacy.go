package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// legacyPassthroughPrefixes are inbound model name prefixes that, under the
// legacy single-provider path, are forwarded to the upstream verbatim
// rather than mapped to a size class (§4.3). Kept here because they are
// part of the legacy provider's identity, not the Model Manager's general
// logic.
var legacyPassthroughPrefixes = []string{"gpt-", "o1-", "ep-", "doubao-", "deepseek-"}

// LegacyProviderManagerConfig synthesizes a single-provider
// ProviderManagerConfig from OPENAI_API_KEY, OPENAI_BASE_URL,
// AZURE_API_VERSION, BIG_MODEL, MIDDLE_MODEL, SMALL_MODEL and
// CUSTOM_HEADER_* environment variables. It is the "Legacy mode" referenced
// in the glossary: used when no JSON config file is present.
func LegacyProviderManagerConfig() (*ProviderManagerConfig, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("config: OPENAI_API_KEY is required when no providers.json is present")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	big := envOr("BIG_MODEL", "gpt-4o")
	middle := envOr("MIDDLE_MODEL", "gpt-4o")
	small := envOr("SMALL_MODEL", "gpt-4o-mini")

	maxRetries := 2
	if v, err := strconv.Atoi(os.Getenv("MAX_RETRIES")); err == nil {
		maxRetries = v
	}
	timeout := 90
	if v, err := strconv.Atoi(os.Getenv("REQUEST_TIMEOUT")); err == nil {
		timeout = v
	}

	provider := ProviderConfig{
		Name:          "openai",
		Enabled:       true,
		Priority:      1,
		APIKey:        apiKey,
		BaseURL:       baseURL,
		APIVersion:    os.Getenv("AZURE_API_VERSION"),
		TimeoutSecs:   timeout,
		MaxRetries:    maxRetries,
		CustomHeaders: CustomHeadersFromEnv(),
		Models: ModelList{
			Big:    []string{big},
			Middle: []string{middle},
			Small:  []string{small},
		},
	}

	cfg := &ProviderManagerConfig{
		Providers:        []ProviderConfig{provider},
		FallbackStrategy: StrategyPriority,
		Legacy:           true,
	}
	ApplyProviderManagerDefaults(cfg)
	return cfg, nil
}

// CustomHeadersFromEnv scans the process environment for CUSTOM_HEADER_*
// variables and turns them into HTTP header name/value pairs: the prefix is
// stripped, the remainder lower-cased, and underscores become hyphens
// (§6), e.g. CUSTOM_HEADER_X_ORG_ID=acme -> "x-org-id": "acme".
func CustomHeadersFromEnv() map[string]string {
	const prefix = "CUSTOM_HEADER_"
	headers := map[string]string{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := strings.TrimPrefix(name, prefix)
		header := strings.ToLower(strings.ReplaceAll(suffix, "_", "-"))
		headers[header] = value
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// IsLegacyPassthrough reports whether name begins with one of the legacy
// single-provider passthrough prefixes (§4.3).
func IsLegacyPassthrough(name string) bool {
	for _, p := range legacyPassthroughPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
