package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the crashbot server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Slack     SlackConfig
	Identity  IdentityConfig
	Topic     TopicConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port             int    `env:"CRASHBOT_PORT" env-default:"8080"`
	Env              string `env:"CRASHBOT_ENV" env-default:"development"`
	APIKey           string `env:"API_KEY"`
	ListRateLimitRPM int    `env:"LIST_RATE_LIMIT_PER_MINUTE" env-default:"60"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" env-default:"false"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" env-default:"5m"`
	MigrationsDir   string        `env:"DATABASE_MIGRATIONS_DIR" env-default:"migrations"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type SlackConfig struct {
	BotToken        string `env:"SLACK_BOT_TOKEN"`
	AppToken        string `env:"SLACK_APP_TOKEN"`
	UserToken       string `env:"SLACK_USER_TOKEN"`
	AnnounceChannel string `env:"SLACK_ANNOUNCE_CHANNEL" env-default:"crash"`
	TopicChannel    string `env:"SLACK_TOPIC_CHANNEL"`
	CreateCommand   string `env:"CREATE_COMMAND" env-default:"/create-incident"`
	UpdateCommand   string `env:"UPDATE_COMMAND" env-default:"/update-incident"`
}

type IdentityConfig struct {
	CacheTTL       time.Duration `env:"IDENTITY_CACHE_TTL" env-default:"1h"`
	MaxConcurrency int           `env:"IDENTITY_MAX_CONCURRENCY" env-default:"16"`
}

type TopicConfig struct {
	RefreshTimeout time.Duration `env:"TOPIC_REFRESH_TIMEOUT" env-default:"15s"`
	ResyncSchedule string        `env:"TOPIC_RESYNC_SCHEDULE"`
}

type TelemetryConfig struct {
	ServiceName          string        `env:"OTEL_SERVICE_NAME" env-default:"crashbot"`
	TracesExporter       string        `env:"OTEL_TRACES_EXPORTER" env-default:"none"`
	OTLPEndpoint         string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsExporter      string        `env:"OTEL_METRICS_EXPORTER" env-default:"none"`
	MetricExportInterval time.Duration `env:"OTEL_METRIC_EXPORT_INTERVAL" env-default:"60s"`
}

var validTracesExporters = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

var validMetricsExporters = map[string]bool{
	"none":   true,
	"stdout": true,
}

// Load reads configuration from the process environment, plus envFile when it
// exists, and returns a validated Config. Values in envFile are exported into
// the environment before it is read.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load(envFile string) (*Config, error) {
	cfg := &Config{}

	var err error
	if envFile != "" && fileExists(envFile) {
		err = cleanenv.ReadConfig(envFile, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("CRASHBOT_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Server.ListRateLimitRPM <= 0 {
		return fmt.Errorf("LIST_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.Server.ListRateLimitRPM)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Slack.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if !strings.HasPrefix(c.Slack.BotToken, "xoxb-") {
		return fmt.Errorf("SLACK_BOT_TOKEN must start with xoxb-")
	}
	if c.Slack.AppToken == "" {
		return fmt.Errorf("SLACK_APP_TOKEN is required")
	}
	if !strings.HasPrefix(c.Slack.AppToken, "xapp-") {
		return fmt.Errorf("SLACK_APP_TOKEN must start with xapp-")
	}
	if c.Slack.UserToken == "" {
		return fmt.Errorf("SLACK_USER_TOKEN is required")
	}
	if c.Slack.TopicChannel == "" {
		return fmt.Errorf("SLACK_TOPIC_CHANNEL is required")
	}
	if !strings.HasPrefix(c.Slack.CreateCommand, "/") {
		return fmt.Errorf("CREATE_COMMAND must start with /, got %q", c.Slack.CreateCommand)
	}
	if !strings.HasPrefix(c.Slack.UpdateCommand, "/") {
		return fmt.Errorf("UPDATE_COMMAND must start with /, got %q", c.Slack.UpdateCommand)
	}

	if c.Identity.MaxConcurrency <= 0 {
		return fmt.Errorf("IDENTITY_MAX_CONCURRENCY must be positive, got %d", c.Identity.MaxConcurrency)
	}
	if c.Topic.RefreshTimeout <= 0 {
		return fmt.Errorf("TOPIC_REFRESH_TIMEOUT must be positive, got %s", c.Topic.RefreshTimeout)
	}
	if c.Topic.ResyncSchedule != "" {
		if _, err := cron.ParseStandard(c.Topic.ResyncSchedule); err != nil {
			return fmt.Errorf("TOPIC_RESYNC_SCHEDULE is not a valid cron expression: %w", err)
		}
	}

	if !validTracesExporters[c.Telemetry.TracesExporter] {
		return fmt.Errorf("OTEL_TRACES_EXPORTER must be one of none, stdout, otlp; got %q", c.Telemetry.TracesExporter)
	}
	if c.Telemetry.TracesExporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_TRACES_EXPORTER is otlp")
	}
	if !validMetricsExporters[c.Telemetry.MetricsExporter] {
		return fmt.Errorf("OTEL_METRICS_EXPORTER must be one of none, stdout; got %q", c.Telemetry.MetricsExporter)
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
