package config

import "time"

// Config is the full connector configuration. It is loaded from a YAML file
// and optionally overlaid with environment variables.
type Config struct {
	Source        SourceConfig        `yaml:"source"`
	Supervisor    SupervisorConfig    `yaml:"supervisor"`
	Server        ServerConfig        `yaml:"server"`
	Sinks         SinksConfig         `yaml:"sinks"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// SourceConfig holds the hub connection settings.
type SourceConfig struct {
	BaseURL              string        `yaml:"base_url"`
	Streams              []string      `yaml:"streams,omitempty"`
	MessageLog           string        `yaml:"message_log,omitempty"`
	ConnectWait          time.Duration `yaml:"connect_wait"`
	KeepAliveInterval    time.Duration `yaml:"keep_alive_interval"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
}

// SupervisorConfig holds the session policy timings.
type SupervisorConfig struct {
	Enabled       *bool         `yaml:"enabled,omitempty"`
	Interval      time.Duration `yaml:"interval"`
	GracePeriod   time.Duration `yaml:"grace_period"`
	DataRecency   time.Duration `yaml:"data_recency"`
	IdleReconnect time.Duration `yaml:"idle_reconnect"`
}

// IsEnabled defaults to true when unset.
func (s SupervisorConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ServerConfig holds the status server settings.
type ServerConfig struct {
	Enabled          *bool         `yaml:"enabled,omitempty"`
	Port             int           `yaml:"port"`
	MessageQueueSize int           `yaml:"message_queue_size"`
	RateWindow       time.Duration `yaml:"rate_window"`
}

// IsEnabled defaults to true when unset.
func (s ServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// SinksConfig holds the external message sinks.
type SinksConfig struct {
	Buffer   int             `yaml:"buffer"`
	NATS     *NATSConfig     `yaml:"nats,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
	File     *FileConfig     `yaml:"file,omitempty"`
}

// NATSConfig holds the NATS publisher settings.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// PostgresConfig holds the message store settings.
type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Table   string `yaml:"table"`
}

// FileConfig holds the JSON lines writer settings.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NotificationsConfig holds all notification provider configurations.
type NotificationsConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Discord  *DiscordConfig  `yaml:"discord,omitempty"`
	Webhook  *WebhookConfig  `yaml:"webhook,omitempty"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Token               string   `yaml:"token,omitempty"`
	ChatID              string   `yaml:"chat_id,omitempty"`
	Events              []string `yaml:"events"`
	DisableNotification bool     `yaml:"disable_notification"`
}

// DiscordConfig holds Discord notification settings.
type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Events     []string `yaml:"events"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Method   string   `yaml:"method"`
	Events   []string `yaml:"events"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	FileLevel string `yaml:"file_level"`
	Dir       string `yaml:"dir,omitempty"`
	Color     *bool  `yaml:"color,omitempty"`
}

// MetricsConfig enables periodic export of the connector's metrics to stdout.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}
