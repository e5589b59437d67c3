package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/constants"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LIVETIMING_BASE_URL", "PORT", "LOG_LEVEL", "NATS_URL", "DATABASE_URL",
		"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "DISCORD_WEBHOOK", "WEBHOOK_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, constants.LiveTimingBaseURL, cfg.Source.BaseURL)
	assert.Equal(t, constants.DataStreams, cfg.Source.Streams)
	assert.Equal(t, constants.MaxConsecutiveErrors, cfg.Source.MaxConsecutiveErrors)
	assert.Equal(t, 20*time.Minute, cfg.Supervisor.IdleReconnect)
	assert.Equal(t, 60*time.Second, cfg.Supervisor.GracePeriod)
	assert.True(t, cfg.Supervisor.IsEnabled())
	assert.True(t, cfg.Server.IsEnabled())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Nil(t, cfg.Sinks.NATS)
	require.NoError(t, Validate(cfg))
}

func TestLoadParsesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
source:
  base_url: http://localhost:8090/signalr/
  streams: [SessionInfo, TimingData]
  connect_wait: 5s
supervisor:
  idle_reconnect: 15m
server:
  enabled: false
  port: 9000
sinks:
  nats:
    enabled: true
    url: nats://localhost:4222
  postgres:
    enabled: false
  file:
    enabled: true
    path: out/messages.jsonl
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.example/hook
    events: [SESSION_LIVE]
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8090/signalr/", cfg.Source.BaseURL)
	assert.Equal(t, []string{"SessionInfo", "TimingData"}, cfg.Source.Streams)
	assert.Equal(t, 5*time.Second, cfg.Source.ConnectWait)
	assert.Equal(t, 15*time.Minute, cfg.Supervisor.IdleReconnect)
	assert.False(t, cfg.Server.IsEnabled())
	assert.Equal(t, 9000, cfg.Server.Port)
	require.NotNil(t, cfg.Sinks.NATS)
	assert.Equal(t, constants.DefaultNATSSubjectPrefix, cfg.Sinks.NATS.SubjectPrefix)
	require.NotNil(t, cfg.Sinks.Postgres)
	assert.Equal(t, constants.DefaultStorageTable, cfg.Sinks.Postgres.Table)
	assert.Equal(t, "out/messages.jsonl", cfg.Sinks.File.Path)
	assert.Equal(t, []string{"SESSION_LIVE"}, cfg.Notifications.Discord.Events)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, Validate(cfg))
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	t.Chdir(t.TempDir())
	cfg, err := Load(DefaultConfigFile)
	require.NoError(t, err)
	assert.Equal(t, constants.LiveTimingBaseURL, cfg.Source.BaseURL)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "source: [unterminated\n"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIVETIMING_BASE_URL", "http://mock:8090/signalr/")
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db/livetiming")
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("DISCORD_WEBHOOK", "https://discord.example/hook")

	cfg, err := Load(writeConfig(t, `
notifications:
  telegram:
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "http://mock:8090/signalr/", cfg.Source.BaseURL)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "WARN", cfg.Log.Level)

	require.NotNil(t, cfg.Sinks.NATS)
	assert.True(t, cfg.Sinks.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.Sinks.NATS.URL)
	assert.Equal(t, constants.DefaultNATSSubjectPrefix, cfg.Sinks.NATS.SubjectPrefix)

	require.NotNil(t, cfg.Sinks.Postgres)
	assert.True(t, cfg.Sinks.Postgres.Enabled)
	assert.Equal(t, constants.DefaultStorageTable, cfg.Sinks.Postgres.Table)

	assert.Equal(t, "tg-token", cfg.Notifications.Telegram.Token)
	assert.Equal(t, "42", cfg.Notifications.Telegram.ChatID)
	// no discord section in the file
	assert.Nil(t, cfg.Notifications.Discord)
	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Source.BaseURL = "ftp://example.com/signalr/" },
			wantErr: "scheme",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Source.BaseURL = "https:///signalr/" },
			wantErr: "missing host",
		},
		{
			name:    "idle reconnect too short",
			mutate:  func(c *Config) { c.Supervisor.IdleReconnect = 5 * time.Minute },
			wantErr: "idle_reconnect",
		},
		{
			name:    "idle reconnect too long",
			mutate:  func(c *Config) { c.Supervisor.IdleReconnect = time.Hour },
			wantErr: "idle_reconnect",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "nats without url",
			mutate:  func(c *Config) { c.Sinks.NATS = &NATSConfig{Enabled: true} },
			wantErr: "NATS_URL",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Sinks.Postgres = &PostgresConfig{Enabled: true} },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "file without path",
			mutate:  func(c *Config) { c.Sinks.File = &FileConfig{Enabled: true} },
			wantErr: "sinks.file",
		},
		{
			name:    "telegram without chat",
			mutate:  func(c *Config) { c.Notifications.Telegram = &TelegramConfig{Enabled: true, Token: "t"} },
			wantErr: "telegram",
		},
		{
			name:    "discord without webhook",
			mutate:  func(c *Config) { c.Notifications.Discord = &DiscordConfig{Enabled: true} },
			wantErr: "discord",
		},
		{
			name:    "webhook without endpoint",
			mutate:  func(c *Config) { c.Notifications.Webhook = &WebhookConfig{Enabled: true} },
			wantErr: "webhook",
		},
		{
			name:   "disabled sinks need nothing",
			mutate: func(c *Config) { c.Sinks.NATS = &NATSConfig{} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
