package config

// Default values applied by ApplyServerDefaults / ApplyProviderManagerDefaults
// / ApplyTokenLimitDefaults / ApplyLoggingDefaults. Idempotent and safe to
// call more than once, following the teacher's ApplyDefaults convention.
const (
	DefaultListenAddress       = "127.0.0.1:8080"
	DefaultReadTimeoutSecs     = 30
	DefaultWriteTimeoutSecs    = 30
	DefaultIdleTimeoutSecs     = 120
	DefaultShutdownTimeoutSecs = 30

	DefaultProviderTimeoutSecs = 90
	DefaultProviderMaxRetries  = 2

	DefaultFallbackStrategy    = StrategyPriority
	DefaultHealthCheckInterval = 30
	DefaultFailureThreshold    = 3
	DefaultRecoveryTimeout     = 60

	DefaultMinTokensLimit = 1
	DefaultMaxTokensLimit = 8192

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyServerDefaults fills zero-valued ServerConfig fields.
func ApplyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeoutSecs == 0 {
		s.ReadTimeoutSecs = DefaultReadTimeoutSecs
	}
	if s.WriteTimeoutSecs == 0 {
		s.WriteTimeoutSecs = DefaultWriteTimeoutSecs
	}
	if s.IdleTimeoutSecs == 0 {
		s.IdleTimeoutSecs = DefaultIdleTimeoutSecs
	}
	if s.ShutdownTimeoutSecs == 0 {
		s.ShutdownTimeoutSecs = DefaultShutdownTimeoutSecs
	}
}

// ApplyTokenLimitDefaults fills zero-valued TokenLimits fields.
func ApplyTokenLimitDefaults(t *TokenLimits) {
	if t.Min == 0 {
		t.Min = DefaultMinTokensLimit
	}
	if t.Max == 0 {
		t.Max = DefaultMaxTokensLimit
	}
}

// ApplyLoggingDefaults fills zero-valued LoggingConfig fields.
func ApplyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
}

// ApplyProviderManagerDefaults fills zero-valued ProviderManagerConfig and
// per-provider fields.
func ApplyProviderManagerDefaults(cfg *ProviderManagerConfig) {
	if cfg.FallbackStrategy == "" {
		cfg.FallbackStrategy = DefaultFallbackStrategy
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.CircuitBreaker.RecoveryTimeout == 0 {
		cfg.CircuitBreaker.RecoveryTimeout = DefaultRecoveryTimeout
	}
	for i, p := range cfg.Providers {
		if p.TimeoutSecs == 0 {
			cfg.Providers[i].TimeoutSecs = DefaultProviderTimeoutSecs
		}
		if p.MaxRetries == 0 {
			cfg.Providers[i].MaxRetries = DefaultProviderMaxRetries
		}
	}
}
