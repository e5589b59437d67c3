package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

var ts = time.Date(2024, 5, 26, 13, 0, 1, 500_000_000, time.UTC)

func message(category, payload string, streaming bool) model.LiveTimingMessage {
	return model.LiveTimingMessage{Category: category, Payload: payload, Timestamp: ts, IsStreaming: streaming}
}

type recordingSink struct {
	name    string
	mu      sync.Mutex
	got     []model.LiveTimingMessage
	block   chan struct{}
	err     error
	closed  bool
	batches int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, batch []model.LiveTimingMessage) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, batch...)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) messages() []model.LiveTimingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LiveTimingMessage(nil), s.got...)
}

func TestFanoutDeliversInOrder(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	f := NewFanout([]Sink{a, b}, 16, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	for _, c := range []string{"Heartbeat", "TimingData", "CarData.z"} {
		f.Consume(message(c, "{}", true))
	}
	require.Eventually(t, func() bool { return len(a.messages()) == 3 && len(b.messages()) == 3 },
		time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	for _, s := range []*recordingSink{a, b} {
		got := s.messages()
		assert.Equal(t, []string{"Heartbeat", "TimingData", "CarData.z"},
			[]string{got[0].Category, got[1].Category, got[2].Category})
		assert.True(t, s.closed)
	}
}

func TestFanoutDropsWhenQueueFull(t *testing.T) {
	slow := &recordingSink{name: "slow", block: make(chan struct{})}
	fast := &recordingSink{name: "fast"}
	f := NewFanout([]Sink{slow, fast}, 2, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	// the slow sink holds the first message; two more fill its queue
	f.Consume(message("M0", "{}", true))
	require.Eventually(t, func() bool { return len(fast.messages()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	for i, c := range []string{"M1", "M2", "M3", "M4"} {
		f.Consume(message(c, "{}", true))
		require.Eventually(t, func() bool { return len(fast.messages()) == i+2 }, time.Second, time.Millisecond)
	}

	assert.Equal(t, int64(2), f.Dropped("slow"))
	assert.Equal(t, int64(0), f.Dropped("fast"))
	assert.Equal(t, int64(0), f.Dropped("unknown"))

	close(slow.block)
	cancel()
	<-done
	got := slow.messages()
	require.Len(t, got, 3)
	assert.Equal(t, "M2", got[2].Category)
}

func TestFanoutCloseFlushesQueue(t *testing.T) {
	s := &recordingSink{name: "s"}
	f := NewFanout([]Sink{s}, 8, logger.Nop())

	f.Consume(message("A", "{}", false))
	f.Consume(message("B", "{}", false))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	assert.Len(t, s.messages(), 2)
	assert.Equal(t, 1, s.batches)
	assert.True(t, s.closed)
}

func TestFanoutSurvivesWriteErrors(t *testing.T) {
	s := &recordingSink{name: "s", err: errors.New("unavailable")}
	f := NewFanout([]Sink{s}, 8, logger.Nop())
	f.Consume(message("A", "{}", false))
	require.NoError(t, f.Close())
	assert.Equal(t, 1, s.batches)
}

type fakePublisher struct {
	msgs    []*nats.Msg
	flushed int
	closed  bool
}

func (p *fakePublisher) PublishMsg(m *nats.Msg) error {
	p.msgs = append(p.msgs, m)
	return nil
}

func (p *fakePublisher) FlushWithContext(context.Context) error {
	p.flushed++
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func TestNATSWrite(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATS(pub, "")

	require.NoError(t, n.Write(context.Background(), []model.LiveTimingMessage{
		message("TrackStatus", `{"Status":"1"}`, true),
		message("SessionInfo", `{"SessionStatus":"Started"}`, false),
	}))
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, 1, pub.flushed)

	first := pub.msgs[0]
	assert.Equal(t, "livetiming.TrackStatus", first.Subject)
	assert.Equal(t, `{"Status":"1"}`, string(first.Data))
	assert.Equal(t, "2024-05-26T13:00:01.5Z", first.Header.Get("timestamp"))
	assert.Equal(t, "streaming", first.Header.Get("messageType"))
	assert.Equal(t, "true", first.Header.Get("streaming"))

	assert.Equal(t, "snapshot", pub.msgs[1].Header.Get("messageType"))
	assert.Equal(t, "false", pub.msgs[1].Header.Get("streaming"))

	require.NoError(t, n.Close())
	assert.True(t, pub.closed)
}

type fakeBatchResults struct{ err error }

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, r.err }
func (r *fakeBatchResults) Query() (pgx.Rows, error)         { return nil, r.err }
func (r *fakeBatchResults) QueryRow() pgx.Row                { return nil }
func (r *fakeBatchResults) Close() error                     { return r.err }

type fakeDB struct {
	execs   []string
	batches []*pgx.Batch
	err     error
	closed  bool
}

func (d *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	d.batches = append(d.batches, b)
	return &fakeBatchResults{err: d.err}
}

func (d *fakeDB) Close() { d.closed = true }

func TestPostgresWrite(t *testing.T) {
	db := &fakeDB{}
	p := NewPostgres(db, "")

	require.NoError(t, p.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[0], `CREATE TABLE IF NOT EXISTS "live_timing_messages"`)
	assert.Contains(t, db.execs[1], `"live_timing_messages_hash_idx"`)

	m := message("TrackStatus", `{"Status":"1"}`, true)
	empty := message("Heartbeat", "", true)
	require.NoError(t, p.Write(context.Background(), []model.LiveTimingMessage{m, empty}))
	require.Len(t, db.batches, 1)

	queued := db.batches[0].QueuedQueries
	require.Len(t, queued, 2)
	assert.Contains(t, queued[0].SQL, "ON CONFLICT (message_hash) DO NOTHING")
	assert.Equal(t, []any{"TrackStatus", true, `{"Status":"1"}`, ts, MessageHash(m)}, queued[0].Arguments)
	assert.Nil(t, queued[1].Arguments[2])

	db.err = errors.New("connection reset")
	require.Error(t, p.Write(context.Background(), []model.LiveTimingMessage{m}))

	require.NoError(t, p.Close())
	assert.True(t, db.closed)
}

func TestMessageHash(t *testing.T) {
	m := message("TrackStatus", `{"Status":"1"}`, true)
	assert.Len(t, MessageHash(m), 32)
	assert.Equal(t, MessageHash(m), MessageHash(m))

	other := m
	other.IsStreaming = false
	assert.NotEqual(t, MessageHash(m), MessageHash(other))
	other = m
	other.Timestamp = ts.Add(time.Millisecond)
	assert.NotEqual(t, MessageHash(m), MessageHash(other))
}

func TestFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "messages.jsonl")
	f, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, f.Write(context.Background(), []model.LiveTimingMessage{
		message("TrackStatus", `{"Status":"1"}`, true),
		message("LapCount", `{"CurrentLap":2}`, false),
	}))
	require.NoError(t, f.Close())

	data, err := os.Open(path)
	require.NoError(t, err)
	defer data.Close()

	var got []model.LiveTimingMessage
	sc := bufio.NewScanner(data)
	for sc.Scan() {
		var m model.LiveTimingMessage
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		got = append(got, m)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "TrackStatus", got[0].Category)
	assert.Equal(t, `{"Status":"1"}`, got[0].Payload)
	assert.True(t, got[0].Timestamp.Equal(ts))
	assert.False(t, got[1].IsStreaming)
}
