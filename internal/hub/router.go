package hub

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"

	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/signalr"
)

const readChunkSize = 32 << 10

// readLoop feeds websocket data into the reassembler and routes every
// complete message. Each Read from a message reader is one fragment; EOF
// marks the last one.
func (c *Connection) readLoop(s *socket) {
	defer close(s.done)

	var r signalr.Reassembler
	buf := make([]byte, readChunkSize)

	for {
		typ, reader, err := s.conn.Reader(s.ctx)
		if err != nil {
			c.transportClosed(s, err, &r)
			return
		}
		if typ != websocket.MessageText {
			_, _ = io.Copy(io.Discard, reader)
			continue
		}

		for {
			n, rerr := reader.Read(buf)
			last := errors.Is(rerr, io.EOF)
			if rerr != nil && !last {
				c.transportClosed(s, rerr, &r)
				return
			}
			if n == 0 && !last {
				continue
			}

			msg, complete := r.Add(string(buf[:n]), last)
			if !complete {
				continue
			}
			if err := c.route(s, msg); err != nil {
				c.log.Error("Unrecoverable message from the hub, dropping connection", "error", err)
				s.sendClose(websocket.StatusProtocolError)
				c.markLost(s, model.ConnectionDisconnected)
				return
			}
			break
		}
	}
}

// transportClosed handles the end of the reader. A partial message is
// discarded.
func (c *Connection) transportClosed(s *socket, err error, r *signalr.Reassembler) {
	if r.Pending() {
		c.log.Debug("Discarding partial message on transport close")
	}
	r.Reset()

	if status := websocket.CloseStatus(err); status != -1 {
		c.log.Info("Websocket closed", "status", status)
		c.markLost(s, model.ConnectionReady)
		return
	}
	if s.ctx.Err() == nil {
		c.log.Warn("Websocket error", "error", err)
	}
	c.markLost(s, model.ConnectionDisconnected)
}

// markLost moves the state only if s is still the active socket.
func (c *Connection) markLost(s *socket, state model.ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock != s {
		return
	}
	c.setStateLocked(state)
}

// route classifies one complete message. Control frames update the
// connection state; data frames go through the extractor to the consumer.
// Only a JSON syntax error is returned.
func (c *Connection) route(s *socket, raw string) error {
	env, err := signalr.Decode(raw)

	kind := signalr.KindUnknown
	if err == nil {
		kind = env.Kind()
	}
	c.metrics.recordReceived(context.Background(), kind)
	c.msgLog.Write(raw)

	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.sock != s {
		c.mu.Unlock()
		return nil
	}
	state := c.state

	switch state {
	case model.ConnectionReady:
		c.mu.Unlock()
		c.log.Error("Message received before the connection was set up", "kind", kind)
		return nil
	case model.ConnectionConnecting:
		if kind == signalr.KindInit {
			c.setStateLocked(model.ConnectionConnected)
			c.lastKeepAlive = c.now()
			c.mu.Unlock()
			c.log.Info("Hub connection established over websocket")
			return nil
		}
		c.mu.Unlock()
		c.log.Warn("Unexpected message while waiting for the hub init message", "kind", kind)
		return nil
	case model.ConnectionConnected:
		if kind == signalr.KindKeepAlive {
			c.lastKeepAlive = c.now()
			c.mu.Unlock()
			c.log.Debug("Received keep-alive")
			return nil
		}
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.log.Error("Message received while disconnected", "kind", kind)
		return nil
	}

	messages := c.extractor.Extract(env)
	c.log.Debug("Extracted live timing messages", "kind", kind, "count", len(messages))
	for _, m := range messages {
		c.metrics.recordDelivered(context.Background(), m)
		c.consumer(m)
	}
	return nil
}
