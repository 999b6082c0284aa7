package config

import (
	"fmt"
	"strings"
)

// FieldError reports a single invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in one pass, so a single
// PUT /api/config/providers request reports every problem at once instead
// of one-at-a-time.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("config: %s", e.Errors[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config: %d validation errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err)
	}
	return sb.String()
}

// ValidateProviderManagerConfig checks structural validity: unique
// provider names, a known fallback strategy, positive circuit breaker
// parameters, and (for each enabled provider) a non-empty base URL and at
// least one size class with at least one model. For enabled providers it
// also checks that every ${VAR} reference names a variable set in the live
// process environment (see missingEnvVars); disabled providers are exempt,
// so a saved-but-disabled provider may reference a variable that is not
// currently set.
func ValidateProviderManagerConfig(cfg *ProviderManagerConfig) error {
	var errs []FieldError

	switch cfg.FallbackStrategy {
	case StrategyPriority, StrategyRoundRobin, StrategyRandom, "":
	default:
		errs = append(errs, FieldError{"fallback_strategy", fmt.Sprintf("unknown strategy %q", cfg.FallbackStrategy)})
	}

	if cfg.CircuitBreaker.FailureThreshold < 0 {
		errs = append(errs, FieldError{"circuit_breaker.failure_threshold", "must be >= 0"})
	}
	if cfg.CircuitBreaker.RecoveryTimeout < 0 {
		errs = append(errs, FieldError{"circuit_breaker.recovery_timeout", "must be >= 0"})
	}

	seen := make(map[string]bool, len(cfg.Providers))
	for i, p := range cfg.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{field + ".name", "required"})
			continue
		}
		field = fmt.Sprintf("providers[%q]", p.Name)
		if seen[p.Name] {
			errs = append(errs, FieldError{field, "duplicate provider name"})
		}
		seen[p.Name] = true

		if !p.Enabled {
			continue
		}
		if p.BaseURL == "" {
			errs = append(errs, FieldError{field + ".base_url", "required when enabled"})
		}
		if len(p.Models.Big) == 0 && len(p.Models.Middle) == 0 && len(p.Models.Small) == 0 {
			errs = append(errs, FieldError{field + ".models", "at least one size class must have a model"})
		}
		if missing := missingEnvVars(p); len(missing) > 0 {
			errs = append(errs, FieldError{field, fmt.Sprintf("references unset environment variable(s): %s", strings.Join(missing, ", "))})
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
