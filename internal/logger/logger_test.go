package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

func TestWithComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Level: slog.LevelDebug, Output: &buf})
	require.NoError(t, err)

	log.WithComponent("hub").Info("Connected", "state", "CONNECTED")

	line := buf.String()
	assert.Contains(t, line, "[hub] Connected")
	assert.Contains(t, line, "state=CONNECTED")
	assert.NotContains(t, line, "component=")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Level: slog.LevelWarn, Output: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestEventNotifiesThroughChildren(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Level: slog.LevelInfo, Output: &buf})
	require.NoError(t, err)
	child := log.WithComponent("supervisor")

	var got []string
	log.SetNotifyFunc(func(_ context.Context, message string, event model.Event) {
		got = append(got, string(event)+"|"+message)
	})

	child.Event(context.Background(), model.EventSessionLive, "Live session detected", "session", "Race")

	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "SESSION_LIVE|"))
	assert.Contains(t, got[0], "Live session detected (session: Race)")
	assert.Contains(t, buf.String(), "event=SESSION_LIVE")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
