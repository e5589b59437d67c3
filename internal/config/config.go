// Package config handles loading, defaulting and validating the connector's
// YAML configuration, with environment variable overrides for secrets and
// deployment settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Guliveer/livetiming-connector/internal/constants"
)

// DefaultConfigFile is used when no path is given on the command line.
const DefaultConfigFile = "connector.yaml"

// Load reads the configuration at path, then applies defaults and environment
// overrides. A missing file at DefaultConfigFile yields a default config;
// any other missing path is an error.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultConfigFile:
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = constants.LiveTimingBaseURL
	}
	if len(cfg.Source.Streams) == 0 {
		cfg.Source.Streams = constants.DataStreams
	}
	if cfg.Source.ConnectWait == 0 {
		cfg.Source.ConnectWait = constants.DefaultConnectWait
	}
	if cfg.Source.KeepAliveInterval == 0 {
		cfg.Source.KeepAliveInterval = constants.DefaultKeepAliveInterval
	}
	if cfg.Source.HandshakeTimeout == 0 {
		cfg.Source.HandshakeTimeout = constants.DefaultHandshakeTimeout
	}
	if cfg.Source.MaxConsecutiveErrors == 0 {
		cfg.Source.MaxConsecutiveErrors = constants.MaxConsecutiveErrors
	}

	if cfg.Supervisor.Interval == 0 {
		cfg.Supervisor.Interval = constants.DefaultSupervisorInterval
	}
	if cfg.Supervisor.GracePeriod == 0 {
		cfg.Supervisor.GracePeriod = constants.DefaultSessionGracePeriod
	}
	if cfg.Supervisor.DataRecency == 0 {
		cfg.Supervisor.DataRecency = constants.DefaultDataRecency
	}
	if cfg.Supervisor.IdleReconnect == 0 {
		cfg.Supervisor.IdleReconnect = constants.DefaultIdleReconnect
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = constants.DefaultHTTPPort
	}
	if cfg.Server.MessageQueueSize == 0 {
		cfg.Server.MessageQueueSize = constants.DefaultMessageQueueSize
	}
	if cfg.Server.RateWindow == 0 {
		cfg.Server.RateWindow = constants.DefaultRateWindow
	}

	if cfg.Sinks.Buffer == 0 {
		cfg.Sinks.Buffer = constants.DefaultSinkBuffer
	}
	if cfg.Sinks.NATS != nil && cfg.Sinks.NATS.SubjectPrefix == "" {
		cfg.Sinks.NATS.SubjectPrefix = constants.DefaultNATSSubjectPrefix
	}
	if cfg.Sinks.Postgres != nil && cfg.Sinks.Postgres.Table == "" {
		cfg.Sinks.Postgres.Table = constants.DefaultStorageTable
	}

	if cfg.Metrics.Interval == 0 {
		cfg.Metrics.Interval = constants.DefaultMetricsInterval
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
	if cfg.Log.FileLevel == "" {
		cfg.Log.FileLevel = "DEBUG"
	}
}

// applyEnvOverrides overlays environment variables. Broker and database URLs
// enable their sink; notification secrets only fill sections that exist in
// the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIVETIMING_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		if cfg.Sinks.NATS == nil {
			cfg.Sinks.NATS = &NATSConfig{SubjectPrefix: constants.DefaultNATSSubjectPrefix}
		}
		cfg.Sinks.NATS.Enabled = true
		cfg.Sinks.NATS.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		if cfg.Sinks.Postgres == nil {
			cfg.Sinks.Postgres = &PostgresConfig{Table: constants.DefaultStorageTable}
		}
		cfg.Sinks.Postgres.Enabled = true
		cfg.Sinks.Postgres.URL = v
	}

	if cfg.Notifications.Telegram != nil {
		if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
			cfg.Notifications.Telegram.Token = v
		}
		if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
			cfg.Notifications.Telegram.ChatID = v
		}
	}
	if cfg.Notifications.Discord != nil {
		if v := os.Getenv("DISCORD_WEBHOOK"); v != "" {
			cfg.Notifications.Discord.WebhookURL = v
		}
	}
	if cfg.Notifications.Webhook != nil {
		if v := os.Getenv("WEBHOOK_URL"); v != "" {
			cfg.Notifications.Webhook.Endpoint = v
		}
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("source.base_url %q: %w", cfg.Source.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source.base_url %q: scheme must be http or https", cfg.Source.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("source.base_url %q: missing host", cfg.Source.BaseURL)
	}

	idle := cfg.Supervisor.IdleReconnect
	if idle < constants.MinIdleReconnect || idle > constants.MaxIdleReconnect {
		return fmt.Errorf("supervisor.idle_reconnect %s must be between %s and %s",
			idle, constants.MinIdleReconnect, constants.MaxIdleReconnect)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	if n := cfg.Sinks.NATS; n != nil && n.Enabled && n.URL == "" {
		return fmt.Errorf("sinks.nats enabled but url not set (use env var NATS_URL)")
	}
	if p := cfg.Sinks.Postgres; p != nil && p.Enabled && p.URL == "" {
		return fmt.Errorf("sinks.postgres enabled but url not set (use env var DATABASE_URL)")
	}
	if f := cfg.Sinks.File; f != nil && f.Enabled && f.Path == "" {
		return fmt.Errorf("sinks.file enabled but path not set")
	}

	if t := cfg.Notifications.Telegram; t != nil && t.Enabled && (t.Token == "" || t.ChatID == "") {
		return fmt.Errorf("telegram enabled but token or chat_id not set (use env vars TELEGRAM_TOKEN and TELEGRAM_CHAT_ID)")
	}
	if d := cfg.Notifications.Discord; d != nil && d.Enabled && d.WebhookURL == "" {
		return fmt.Errorf("discord enabled but webhook_url not set (use env var DISCORD_WEBHOOK)")
	}
	if w := cfg.Notifications.Webhook; w != nil && w.Enabled && w.Endpoint == "" {
		return fmt.Errorf("webhook enabled but endpoint not set (use env var WEBHOOK_URL)")
	}

	return nil
}
