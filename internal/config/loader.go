package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentgate.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTGATE_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTGATE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTGATE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTGATE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTGATE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTGATE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTGATE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt(&cfg.Queue.Workers, "AGENTGATE_QUEUE_WORKERS")
	setInt(&cfg.Queue.MaxAttempts, "AGENTGATE_QUEUE_MAX_ATTEMPTS")
	setDuration(&cfg.Queue.BackoffBase, "AGENTGATE_QUEUE_BACKOFF_BASE")
	setDuration(&cfg.Executor.CommandTimeout, "AGENTGATE_EXEC_COMMAND_TIMEOUT")
	setInt64(&cfg.Executor.MaxOutputBytes, "AGENTGATE_EXEC_MAX_OUTPUT_BYTES")
	setDuration(&cfg.Rate.Window, "AGENTGATE_RATE_WINDOW")
	setInt(&cfg.Rate.DefaultPerWindow, "AGENTGATE_RATE_DEFAULT_PER_WINDOW")
	setDuration(&cfg.Rate.CleanupInterval, "AGENTGATE_RATE_CLEANUP_INTERVAL")
	setInt64(&cfg.Cache.MaxSizeMB, "AGENTGATE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.PlanTTL, "AGENTGATE_CACHE_PLAN_TTL")
	setString(&cfg.Provider.URL, "AGENTGATE_PROVIDER_URL")
	setString(&cfg.Provider.APIKey, "AGENTGATE_PROVIDER_API_KEY")
	setDuration(&cfg.Provider.Timeout, "AGENTGATE_PROVIDER_TIMEOUT")
	setString(&cfg.Search.URL, "AGENTGATE_SEARCH_URL")
	setString(&cfg.Search.APIKey, "AGENTGATE_SEARCH_API_KEY")
	setDuration(&cfg.Search.Timeout, "AGENTGATE_SEARCH_TIMEOUT")
	setInt(&cfg.Search.MaxResults, "AGENTGATE_SEARCH_MAX_RESULTS")
	setString(&cfg.Plans.URL, "AGENTGATE_PLANS_URL")
	setString(&cfg.Plans.APIKey, "AGENTGATE_PLANS_API_KEY")
	setDuration(&cfg.Plans.Timeout, "AGENTGATE_PLANS_TIMEOUT")
	setInt(&cfg.Plans.DefaultRPM, "AGENTGATE_PLANS_DEFAULT_RPM")
	setInt64(&cfg.Plans.DefaultQuota, "AGENTGATE_PLANS_DEFAULT_QUOTA")
	setString(&cfg.Notify.SlackWebhookURL, "AGENTGATE_SLACK_WEBHOOK_URL")
	setString(&cfg.Notify.DiscordWebhookURL, "AGENTGATE_DISCORD_WEBHOOK_URL")
	setString(&cfg.Notify.EmailEndpoint, "AGENTGATE_EMAIL_ENDPOINT")
	setString(&cfg.Notify.EmailAPIKey, "AGENTGATE_EMAIL_API_KEY")
	setString(&cfg.Notify.EmailFrom, "AGENTGATE_EMAIL_FROM")
	setString(&cfg.Logging.Level, "AGENTGATE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTGATE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "AGENTGATE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTGATE_BREAKER_TIMEOUT")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Queue.Workers < 1 {
		return errors.New("queue.workers must be >= 1")
	}
	if cfg.Queue.MaxAttempts < 1 {
		return errors.New("queue.max_attempts must be >= 1")
	}
	if cfg.Executor.CommandTimeout <= 0 {
		return errors.New("executor.command_timeout must be positive")
	}
	if cfg.Rate.Window <= 0 {
		return errors.New("rate.window must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
