package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

// startLoop launches the keep-alive loop unless one is already running.
func (c *Connection) startLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loopDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel, c.loopDone = cancel, done
	go c.keepAliveLoop(ctx, done)
}

// keepAliveLoop ticks once per interval. A tick runs to completion before
// the next one starts.
func (c *Connection) keepAliveLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.tick(ctx) {
				return
			}
		}
	}
}

// tick runs one keep-alive check. It returns true when the loop must stop.
func (c *Connection) tick(ctx context.Context) bool {
	c.mu.Lock()
	op, state := c.operational, c.state
	since := c.now().Sub(c.lastKeepAlive)
	timeout := c.keepAliveTimeout
	c.mu.Unlock()

	c.log.Debug("Hub connection loop", "operational", op, "state", state)

	if op == model.OperationalClosed {
		c.log.Warn("Connection closed but keep-alive loop still running, forcing close")
		c.abandon()
		return true
	}

	switch state {
	case model.ConnectionReady, model.ConnectionDisconnected:
		c.log.Warn("Not connected to the hub, reconnecting", "state", state)
		return c.retry(ctx)
	default:
		if since <= timeout {
			return false
		}
		c.log.Warn("No keep-alive from the hub, reconnecting",
			"state", state, "since_last", since.Round(time.Millisecond), "timeout", timeout)
		if s := c.currentSocket(); s != nil {
			s.sendClose(websocket.StatusNormalClosure)
		}
		return c.retry(ctx)
	}
}

// retry runs a forced reconnect from the loop and applies the consecutive
// error limit.
func (c *Connection) retry(ctx context.Context) bool {
	err := c.connect(ctx, true, ctx)
	if ctx.Err() != nil {
		return true
	}

	c.mu.Lock()
	if err == nil {
		c.errorCount = 0
		c.mu.Unlock()
		return false
	}
	c.errorCount++
	count := c.errorCount
	c.mu.Unlock()

	c.metrics.reconnectFailed(ctx)
	c.log.Warn("Error reconnecting to hub", "attempt", count, "error", err)

	if count <= c.cfg.MaxConsecutiveErrors {
		return false
	}

	giveUp := fmt.Errorf("%w: %d failed attempts, last: %w", ErrTooManyConsecutiveErrors, count, err)
	c.log.Error("Too many consecutive connection errors, closing the connection", "attempts", count)
	c.abandon()
	if c.cfg.OnGiveUp != nil {
		c.cfg.OnGiveUp(giveUp)
	}
	return true
}

// abandon closes the connection from inside the loop without waiting for
// the loop to exit.
func (c *Connection) abandon() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.closeLocked()
}
