package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/signalr"
)

func newRoutedConnection(t *testing.T) (*Connection, *socket, *collector, *time.Time) {
	t.Helper()
	var got collector
	c, err := New(Config{BaseURL: "http://127.0.0.1:1/signalr/"}, got.consume, logger.Nop())
	require.NoError(t, err)

	now := time.Date(2024, 5, 26, 13, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	s := &socket{done: make(chan struct{})}
	c.sock = s
	c.operational = model.OperationalOpen
	c.state = model.ConnectionConnecting
	return c, s, &got, &now
}

func TestRouteInitCompletesHandshake(t *testing.T) {
	c, s, got, now := newRoutedConnection(t)

	// data before init is ignored
	require.NoError(t, c.route(s, `{"M":[{"H":"Streaming","M":"feed","A":["LapCount",{"CurrentLap":3},"2024-05-26T13:00:00Z"]}]}`))
	assert.Equal(t, model.ConnectionConnecting, c.ConnectionState())

	*now = now.Add(time.Second)
	require.NoError(t, c.route(s, `{"C":"d-1","S":1,"M":[]}`))
	assert.Equal(t, model.ConnectionConnected, c.ConnectionState())
	assert.Equal(t, *now, c.LastKeepAlive())
	assert.True(t, c.IsConnected())
	assert.Empty(t, got.snapshot())
}

func TestRouteConnected(t *testing.T) {
	c, s, got, now := newRoutedConnection(t)
	c.state = model.ConnectionConnected

	*now = now.Add(5 * time.Second)
	require.NoError(t, c.route(s, "{}"))
	assert.Equal(t, *now, c.LastKeepAlive())
	assert.Empty(t, got.snapshot())

	require.NoError(t, c.route(s, `{"M":[{"H":"Streaming","M":"feed","A":["LapCount",{"CurrentLap":3},"2024-05-26T13:00:00Z"]}]}`))
	msgs := got.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.LiveTimingMessage{
		Category:    "LapCount",
		Payload:     `{"CurrentLap":3}`,
		Timestamp:   time.Date(2024, 5, 26, 13, 0, 0, 0, time.UTC),
		IsStreaming: true,
	}, msgs[0])

	// group membership and unknown frames deliver nothing
	require.NoError(t, c.route(s, `{"C":"d-1","G":"token","M":[]}`))
	require.NoError(t, c.route(s, `[1,2,3]`))
	assert.Len(t, got.snapshot(), 1)
}

func TestRouteMalformed(t *testing.T) {
	c, s, got, _ := newRoutedConnection(t)
	c.state = model.ConnectionConnected

	err := c.route(s, `{"M":[`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, signalr.ErrMalformedEnvelope))
	assert.Empty(t, got.snapshot())
}

func TestRouteIgnoresStaleSocket(t *testing.T) {
	c, _, got, _ := newRoutedConnection(t)
	c.state = model.ConnectionConnecting

	stale := &socket{done: make(chan struct{})}
	require.NoError(t, c.route(stale, `{"C":"d-1","S":1,"M":[]}`))
	assert.Equal(t, model.ConnectionConnecting, c.ConnectionState())

	c.markLost(stale, model.ConnectionDisconnected)
	assert.Equal(t, model.ConnectionConnecting, c.ConnectionState())
	assert.Empty(t, got.snapshot())
}

func TestRouteWhileDisconnected(t *testing.T) {
	c, s, got, _ := newRoutedConnection(t)
	c.state = model.ConnectionDisconnected

	require.NoError(t, c.route(s, `{"M":[{"H":"Streaming","M":"feed","A":["LapCount",{},"2024-05-26T13:00:00Z"]}]}`))
	assert.Empty(t, got.snapshot())
}
