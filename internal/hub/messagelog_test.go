package hub

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/mockhub"
)

func TestMessageLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "raw.txt")
	l, err := OpenMessageLog(path)
	require.NoError(t, err)
	l.Write(`{}`)
	l.Write(`{"C":"d-1","M":[]}`)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	l.Write("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n{\"C\":\"d-1\",\"M\":[]}\n", string(data))

	var nilLog *MessageLog
	nilLog.Write("ignored")
	assert.NoError(t, nilLog.Close())
}

func TestConnectionWritesMessageLogReplayableByMock(t *testing.T) {
	lines, err := mockhub.SampleSession(time.Date(2024, 5, 26, 13, 0, 0, 0, time.UTC), 2)
	require.NoError(t, err)
	_, srv := startMock(t, mockhub.Config{ReplayInterval: 5 * time.Millisecond}, lines)

	path := filepath.Join(t.TempDir(), "raw.txt")
	cfg := fastConfig(srv.URL + "/signalr/")
	cfg.MessageLogPath = path

	var got collector
	conn, err := New(cfg, got.consume, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	require.Eventually(t, func() bool { return len(got.snapshot()) >= 5 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Shutdown())

	recorded, err := mockhub.LoadLog(path)
	require.NoError(t, err)
	require.NotEmpty(t, recorded)
	assert.Contains(t, recorded[0], `"S":1`)
}
