package hub

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Guliveer/livetiming-connector/internal/constants"
)

// socket is one websocket plus the lifetime of its reader goroutine.
type socket struct {
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

func newSocket(conn *websocket.Conn) *socket {
	ctx, cancel := context.WithCancel(context.Background())
	return &socket{
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *socket) write(ctx context.Context, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

// sendClose sends a close frame without waiting for the peer's answer.
func (s *socket) sendClose(code websocket.StatusCode) {
	go func() { _ = s.conn.Close(code, "") }()
}

// close sends a close frame, waits briefly for the handshake, then aborts
// the connection and stops the reader.
func (s *socket) close(code websocket.StatusCode) {
	s.once.Do(func() {
		closed := make(chan struct{})
		go func() {
			_ = s.conn.Close(code, "")
			close(closed)
		}()
		select {
		case <-closed:
		case <-s.done:
		case <-time.After(constants.DefaultCloseGrace):
		}
		_ = s.conn.CloseNow()
		s.cancel()
	})
}
