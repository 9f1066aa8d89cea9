package config

import (
	"fmt"
	"net/url"
	"strings"

	"eventintake/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	errors = append(errors, validateServer(cfg.Server)...)
	errors = append(errors, validateRepository(cfg.Repository)...)
	errors = append(errors, validateRateLimit(cfg.RateLimit, cfg.Database)...)

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) []error {
	var errs []error

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		})
	}

	if cfg.ReadTimeout <= 0 {
		errs = append(errs, &ValidationError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}

	if cfg.WriteTimeout <= 0 {
		errs = append(errs, &ValidationError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}

	if !strings.HasPrefix(cfg.SubmitPath, "/") {
		errs = append(errs, &ValidationError{Field: "server.submit_path", Message: "submit path must start with /"})
	}

	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, &ValidationError{Field: "server.max_body_bytes", Message: "max body size must be positive"})
	}

	if cfg.Throttle.Enabled && (cfg.Throttle.RPS <= 0 || cfg.Throttle.Burst <= 0) {
		errs = append(errs, &ValidationError{Field: "server.throttle", Message: "rps and burst must be positive when throttling is enabled"})
	}

	return errs
}

func validateRepository(cfg RepositoryConfig) []error {
	var errs []error

	if cfg.Owner == "" {
		errs = append(errs, &ValidationError{Field: "repository.owner", Message: "repository owner is required (GITHUB_REPO_OWNER)"})
	}
	if cfg.Name == "" {
		errs = append(errs, &ValidationError{Field: "repository.name", Message: "repository name is required (GITHUB_REPO_NAME)"})
	}
	if cfg.Token == "" {
		errs = append(errs, &ValidationError{Field: "repository.token", Message: "repository token is required (GITHUB_TOKEN)"})
	}
	if cfg.DefaultBranch == "" {
		errs = append(errs, &ValidationError{Field: "repository.default_branch", Message: "default branch is required"})
	}

	switch cfg.Mode {
	case constants.PublishModePullRequest, constants.PublishModeDirect:
	default:
		errs = append(errs, &ValidationError{
			Field:   "repository.mode",
			Message: fmt.Sprintf("unknown publish mode: %s (supported: pull_request, direct)", cfg.Mode),
		})
	}

	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, &ValidationError{Field: "repository.base_url", Message: "base url must be an absolute URL"})
		}
	}

	if cfg.EventsDir == "" || strings.HasPrefix(cfg.EventsDir, "/") {
		errs = append(errs, &ValidationError{Field: "repository.events_dir", Message: "events dir must be a relative repository path"})
	}

	return errs
}

func validateRateLimit(cfg RateLimitConfig, db DatabaseConfig) []error {
	var errs []error

	switch cfg.Backend {
	case constants.RateLimitBackendMemory:
	case constants.RateLimitBackendRedis:
		if db.Redis.Host == "" {
			errs = append(errs, &ValidationError{Field: "database.redis.host", Message: "redis host is required for the redis rate limit backend"})
		}
	default:
		errs = append(errs, &ValidationError{
			Field:   "rate_limit.backend",
			Message: fmt.Sprintf("unknown backend: %s (supported: memory, redis)", cfg.Backend),
		})
	}

	if cfg.Limit < 1 {
		errs = append(errs, &ValidationError{Field: "rate_limit.limit", Message: "limit must be at least 1"})
	}
	if cfg.Window <= 0 {
		errs = append(errs, &ValidationError{Field: "rate_limit.window", Message: "window must be positive"})
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, &ValidationError{Field: "rate_limit.sweep_interval", Message: "sweep interval must be positive"})
	}

	validOnError := map[string]bool{
		constants.FallbackAllow: true, constants.FallbackDeny: true, constants.FallbackError: true,
	}
	if !validOnError[strings.ToLower(cfg.OnStoreError)] {
		errs = append(errs, &ValidationError{
			Field:   "rate_limit.on_store_error",
			Message: fmt.Sprintf("invalid on_store_error value: %s (valid: allow, deny, error)", cfg.OnStoreError),
		})
	}

	return errs
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Redis.Host != "" {
		if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
			return &ValidationError{
				Field:   "database.redis.port",
				Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Redis.Port),
			}
		}
	}

	if cfg.Postgres.Host != "" {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{Field: "database.postgres.user", Message: "PostgreSQL user is required"}
	}

	if cfg.DBName == "" {
		return &ValidationError{Field: "database.postgres.dbname", Message: "PostgreSQL database name is required"}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}
