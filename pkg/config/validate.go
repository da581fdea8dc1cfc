package config

import (
	"fmt"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "storage.backend".
	Field string

	// Message is a human-readable description.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in one pass.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every violated rule, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Server.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}

	switch cfg.Storage.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{"storage.backend",
			fmt.Sprintf("must be \"memory\" or \"sqlite\", got %q", cfg.Storage.Backend)})
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		errs = append(errs, FieldError{"storage.path", "required for the sqlite backend"})
	}

	for category, ceilings := range cfg.RateLimits {
		if !category.Valid() {
			errs = append(errs, FieldError{"rate_limits",
				fmt.Sprintf("unknown category %q", category)})
			continue
		}
		field := fmt.Sprintf("rate_limits.%s", category)
		if ceilings.TokensPerMinute <= 0 {
			errs = append(errs, FieldError{field + ".tokens_per_minute", "must be positive"})
		}
		if ceilings.TokensPerHour < ceilings.TokensPerMinute {
			errs = append(errs, FieldError{field + ".tokens_per_hour", "must be at least tokens_per_minute"})
		}
		if ceilings.TokensPerDay < ceilings.TokensPerHour {
			errs = append(errs, FieldError{field + ".tokens_per_day", "must be at least tokens_per_hour"})
		}
		if ceilings.RequestsPerMinute <= 0 {
			errs = append(errs, FieldError{field + ".requests_per_minute", "must be positive"})
		}
		if ceilings.RequestsPerHour < ceilings.RequestsPerMinute {
			errs = append(errs, FieldError{field + ".requests_per_hour", "must be at least requests_per_minute"})
		}
	}

	if cfg.Ledger.DailyTokenCap <= 0 {
		errs = append(errs, FieldError{"ledger.daily_token_cap", "must be positive"})
	}
	if cfg.Ledger.MonthlyTokenCap < cfg.Ledger.DailyTokenCap {
		errs = append(errs, FieldError{"ledger.monthly_token_cap", "must be at least daily_token_cap"})
	}
	if cfg.Ledger.EmergencyBuffer >= cfg.Ledger.DailyTokenCap {
		errs = append(errs, FieldError{"ledger.emergency_buffer", "must be smaller than daily_token_cap"})
	}
	for _, category := range cfg.Ledger.EmergencyCategories {
		if !category.Valid() {
			errs = append(errs, FieldError{"ledger.emergency_categories",
				fmt.Sprintf("unknown category %q", category)})
		}
	}
	switch cfg.Ledger.Store {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{"ledger.store",
			fmt.Sprintf("must be \"memory\" or \"sqlite\", got %q", cfg.Ledger.Store)})
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Telemetry.Logging.Level)})
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("must be \"json\" or \"text\", got %q", cfg.Telemetry.Logging.Format)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
