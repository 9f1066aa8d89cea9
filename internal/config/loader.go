package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"eventintake/internal/constants"
)

// LoadConfig reads configFile (YAML) over the built-in defaults and applies
// environment overrides. An empty configFile loads defaults and environment only.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", constants.DefaultReadTimeout)
	viper.SetDefault("server.write_timeout", constants.DefaultWriteTimeout)
	viper.SetDefault("server.submit_path", constants.DefaultSubmitPath)
	viper.SetDefault("server.max_body_bytes", constants.DefaultMaxBodyBytes)
	viper.SetDefault("server.allow_origin", "*")
	viper.SetDefault("server.throttle.enabled", false)
	viper.SetDefault("server.throttle.rps", 1.0)
	viper.SetDefault("server.throttle.burst", 10)
	viper.SetDefault("server.throttle.cleanup_interval", "5m")
	viper.SetDefault("server.throttle.max_age", "10m")

	viper.SetDefault("repository.default_branch", "main")
	viper.SetDefault("repository.mode", constants.PublishModePullRequest)
	viper.SetDefault("repository.events_dir", constants.DefaultEventsDir)
	viper.SetDefault("repository.branch_prefix", constants.DefaultBranchPrefix)
	viper.SetDefault("repository.timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("rate_limit.backend", constants.RateLimitBackendMemory)
	viper.SetDefault("rate_limit.limit", constants.DefaultSubmissionLimit)
	viper.SetDefault("rate_limit.window", constants.DefaultSubmissionWindow)
	viper.SetDefault("rate_limit.sweep_interval", constants.DefaultSweepInterval)
	viper.SetDefault("rate_limit.key_prefix", constants.CacheKeyPrefixQuota)
	viper.SetDefault("rate_limit.on_store_error", constants.FallbackAllow)

	viper.SetDefault("database.connect_retry.initial_interval", "500ms")
	viper.SetDefault("database.connect_retry.max_interval", "5s")
	viper.SetDefault("database.connect_retry.multiplier", 2.0)
	viper.SetDefault("database.connect_retry.max_elapsed_time", "30s")
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("tracing.service_name", constants.ServiceName)
}

func bindEnvVariables() {
	viper.BindEnv("repository.token", "GITHUB_TOKEN", "REPOSITORY_TOKEN")
	viper.BindEnv("repository.owner", "GITHUB_REPO_OWNER", "REPOSITORY_OWNER")
	viper.BindEnv("repository.name", "GITHUB_REPO_NAME", "REPOSITORY_NAME")
	viper.BindEnv("repository.default_branch", "GITHUB_DEFAULT_BRANCH", "REPOSITORY_DEFAULT_BRANCH")
	viper.BindEnv("repository.base_url", "GITHUB_API_URL", "REPOSITORY_BASE_URL")
	viper.BindEnv("repository.mode", "REPOSITORY_MODE")

	viper.BindEnv("rate_limit.backend", "RATE_LIMIT_BACKEND")
	viper.BindEnv("rate_limit.limit", "RATE_LIMIT_LIMIT")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("broker.kafka.topic", "BROKER_KAFKA_TOPIC")

	viper.BindEnv("server.port", "SERVER_PORT", "PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	viper.BindEnv("tracing.environment", "TRACING_ENVIRONMENT", "DEPLOY_ENV")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}
}
