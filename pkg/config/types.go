package config

// ModelList holds the ordered, rotating list of upstream model names a
// provider exposes for one size class.
type ModelList struct {
	Big    []string `json:"big"`
	Middle []string `json:"middle"`
	Small  []string `json:"small"`
}

// ForClass returns the model list for the named size class, or nil if the
// class is unknown.
func (m ModelList) ForClass(class string) []string {
	switch class {
	case SizeBig:
		return m.Big
	case SizeMiddle:
		return m.Middle
	case SizeSmall:
		return m.Small
	default:
		return nil
	}
}

// Size class constants, shared between config, the model manager, and the
// provider manager.
const (
	SizeBig    = "big"
	SizeMiddle = "middle"
	SizeSmall  = "small"
)

// ProviderConfig is the static, JSON-loaded description of one upstream
// chat-completion endpoint. Name is the identity key used throughout the
// rest of the system (ProviderState map key, admin endpoint path segment,
// metric label).
type ProviderConfig struct {
	Name          string            `json:"name"`
	Enabled       bool              `json:"enabled"`
	Priority      int               `json:"priority"`
	APIKey        string            `json:"api_key"`
	BaseURL       string            `json:"base_url"`
	APIVersion    string            `json:"api_version,omitempty"`
	TimeoutSecs   int               `json:"timeout"`
	MaxRetries    int               `json:"max_retries"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
	Models        ModelList         `json:"models"`
}

// CircuitBreakerConfig governs when a provider's circuit opens and when it
// is eligible to be swept back to healthy.
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold"`
	RecoveryTimeout  int `json:"recovery_timeout"` // seconds
}

// FallbackStrategy values understood by the provider manager's selection
// step.
const (
	StrategyPriority   = "priority"
	StrategyRoundRobin = "round_robin"
	StrategyRandom     = "random"
)

// ProviderManagerConfig is the root document loaded from the JSON config
// file (or synthesized by the legacy env-var bootstrap).
type ProviderManagerConfig struct {
	Providers           []ProviderConfig     `json:"providers"`
	FallbackStrategy    string               `json:"fallback_strategy"`
	HealthCheckInterval int                  `json:"health_check_interval"` // seconds
	CircuitBreaker      CircuitBreakerConfig `json:"circuit_breaker"`

	// Legacy marks this document as synthesized by LegacyProviderManagerConfig
	// rather than loaded from a providers.json file. Never part of the
	// on-disk or wire shape; it only changes request routing (§4.3's
	// passthrough rule applies only in legacy mode).
	Legacy bool `json:"-"`
}

// Clone returns a deep-enough copy suitable for the admin "GET config" /
// "PUT config" round trip: mutating the returned value never affects the
// original.
func (c *ProviderManagerConfig) Clone() *ProviderManagerConfig {
	out := &ProviderManagerConfig{
		FallbackStrategy:    c.FallbackStrategy,
		HealthCheckInterval: c.HealthCheckInterval,
		CircuitBreaker:      c.CircuitBreaker,
		Legacy:              c.Legacy,
		Providers:           make([]ProviderConfig, len(c.Providers)),
	}
	for i, p := range c.Providers {
		cp := p
		cp.Models = ModelList{
			Big:    append([]string(nil), p.Models.Big...),
			Middle: append([]string(nil), p.Models.Middle...),
			Small:  append([]string(nil), p.Models.Small...),
		}
		if p.CustomHeaders != nil {
			cp.CustomHeaders = make(map[string]string, len(p.CustomHeaders))
			for k, v := range p.CustomHeaders {
				cp.CustomHeaders[k] = v
			}
		}
		out.Providers[i] = cp
	}
	return out
}

// ServerConfig is the ambient HTTP listener configuration, not part of the
// distilled ProviderManagerConfig but required to run the process.
type ServerConfig struct {
	ListenAddress   string `json:"listen_address"`
	ReadTimeoutSecs int    `json:"read_timeout"`
	WriteTimeoutSecs int   `json:"write_timeout"`
	IdleTimeoutSecs int    `json:"idle_timeout"`
	ShutdownTimeoutSecs int `json:"shutdown_timeout"`
}

// TokenLimits holds the process-wide max_tokens clamp bounds (§4.4).
type TokenLimits struct {
	Min int `json:"min_tokens_limit"`
	Max int `json:"max_tokens_limit"`
}

// ModelDefaults carries the legacy BIG_MODEL/MIDDLE_MODEL/SMALL_MODEL
// bootstrap values.
type ModelDefaults struct {
	Big    string `json:"big_model"`
	Middle string `json:"middle_model"`
	Small  string `json:"small_model"`
}

// LoggingConfig controls the ambient structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug|info|warn|error
	Format string `json:"format"` // json|text|console
}

// Config is the full process configuration: the distilled
// ProviderManagerConfig plus the ambient sections this expansion adds.
type Config struct {
	Server      ServerConfig          `json:"server"`
	Providers   ProviderManagerConfig `json:"-"`
	TokenLimits TokenLimits           `json:"token_limits"`
	Logging     LoggingConfig         `json:"logging"`

	// AnthropicAPIKey is the shared secret inbound clients must present.
	// Empty means authentication is disabled (§6).
	AnthropicAPIKey string `json:"-"`
}
