// Package hub implements the live timing hub connection: negotiation, the
// websocket lifecycle, the subscribe call, keep-alive staleness detection,
// automatic reconnection and routing of decoded messages to a consumer.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/signalr"
)

// Consumer receives every decoded message in arrival order. It is called
// from the connection's reader goroutine without any internal lock held.
type Consumer func(model.LiveTimingMessage)

// Config holds the hub connection settings. Zero values take defaults.
type Config struct {
	BaseURL string
	Streams []string

	ConnectWait          time.Duration
	ConnectPollInterval  time.Duration
	KeepAliveInterval    time.Duration
	KeepAliveTimeout     time.Duration
	HandshakeTimeout     time.Duration
	MaxConsecutiveErrors int
	ReadLimit            int64

	// MessageLogPath enables the raw message log when set.
	MessageLogPath string
	HTTPClient     *http.Client
	// OnGiveUp is called once each time the keep-alive loop closes the
	// connection after too many failures.
	OnGiveUp func(err error)
}

func (cfg *Config) applyDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.LiveTimingBaseURL
	}
	if len(cfg.Streams) == 0 {
		cfg.Streams = constants.DataStreams
	}
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = constants.DefaultConnectWait
	}
	if cfg.ConnectPollInterval <= 0 {
		cfg.ConnectPollInterval = constants.DefaultConnectPollInterval
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = constants.DefaultKeepAliveInterval
	}
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = constants.DefaultKeepAliveTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = constants.DefaultHandshakeTimeout
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = constants.MaxConsecutiveErrors
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = constants.DefaultReadLimit
	}
}

// Connection is a single hub connection. Connect, Reconnect and Close are
// serialized by opMu and may be called from any goroutine.
type Connection struct {
	cfg       Config
	baseURL   *url.URL
	client    *http.Client
	consumer  Consumer
	extractor *signalr.Extractor
	metrics   *metrics
	msgLog    *MessageLog
	log       *logger.Logger
	now       func() time.Time

	opMu sync.Mutex

	mu               sync.Mutex
	state            model.ConnectionState
	operational      model.OperationalState
	sock             *socket
	lastKeepAlive    time.Time
	keepAliveTimeout time.Duration
	errorCount       int
	loopCancel       context.CancelFunc
	loopDone         chan struct{}
}

// New creates a Connection in the Ready/Closed state. Nothing is dialed
// until Connect is called.
func New(cfg Config, consumer Consumer, log *logger.Logger) (*Connection, error) {
	cfg.applyDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing hub base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("hub base URL %q: unsupported scheme %q", cfg.BaseURL, base.Scheme)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if consumer == nil {
		consumer = func(model.LiveTimingMessage) {}
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	c := &Connection{
		cfg:              cfg,
		baseURL:          base,
		client:           client,
		consumer:         consumer,
		extractor:        signalr.NewExtractor(log.Logger),
		log:              log,
		now:              time.Now,
		state:            model.ConnectionReady,
		operational:      model.OperationalClosed,
		keepAliveTimeout: cfg.KeepAliveTimeout,
	}

	if cfg.MessageLogPath != "" {
		msgLog, err := OpenMessageLog(cfg.MessageLogPath)
		if err != nil {
			return nil, err
		}
		c.msgLog = msgLog
	}

	c.metrics = newMetrics(c, log)
	return c, nil
}

// Connect opens the connection. It is a no-op when the connection is
// already open.
func (c *Connection) Connect(ctx context.Context) error {
	return c.connect(ctx, false, nil)
}

// Reconnect tears down any existing websocket and connects again, even when
// the connection is already open.
func (c *Connection) Reconnect(ctx context.Context) error {
	return c.connect(ctx, true, nil)
}

// connect runs one connection attempt. loopCtx is set when the keep-alive
// loop drives the attempt; a failed attempt then drops only the websocket
// and leaves the operational state open so the loop can retry.
func (c *Connection) connect(ctx context.Context, force bool, loopCtx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	fromLoop := loopCtx != nil
	if fromLoop {
		// Close may have run while this attempt waited for opMu.
		if loopCtx.Err() != nil || c.Operational() == model.OperationalClosed {
			return context.Canceled
		}
	}

	if c.Operational() == model.OperationalOpen && !force {
		c.log.Debug("Connection already open, connect has no effect")
		return nil
	}

	if c.currentSocket() != nil {
		c.log.Warn("Websocket already open, closing it before reconnecting")
		c.cleanup(fromLoop)
	}

	c.mu.Lock()
	c.lastKeepAlive = c.now()
	c.setStateLocked(model.ConnectionReady)
	c.setOperationalLocked(model.OperationalOpen)
	if !fromLoop {
		c.errorCount = 0
	}
	c.mu.Unlock()

	if err := c.open(ctx); err != nil {
		c.log.Warn("Failed to connect to hub, cleaning up", "error", err)
		c.cleanup(fromLoop)
		return err
	}
	return nil
}

// cleanup releases the websocket after a failed or replaced attempt.
func (c *Connection) cleanup(fromLoop bool) {
	if fromLoop {
		c.dropSocket()
		return
	}
	c.closeLocked()
}

// open negotiates, dials, waits for the init frame, starts the keep-alive
// loop and sends the subscribe call.
func (c *Connection) open(ctx context.Context) error {
	c.setState(model.ConnectionConnecting)

	neg, err := c.negotiate(ctx)
	if err != nil {
		c.setState(model.ConnectionReady)
		return err
	}

	c.mu.Lock()
	if neg.keepAlive != nil {
		c.keepAliveTimeout = *neg.keepAlive
		c.log.Debug("Keep-alive timeout from negotiation", "timeout", c.keepAliveTimeout)
	}
	c.mu.Unlock()

	s, err := c.dial(ctx, neg)
	if err != nil {
		c.setState(model.ConnectionReady)
		return err
	}

	c.mu.Lock()
	c.sock = s
	c.mu.Unlock()
	go c.readLoop(s)

	if err := c.awaitConnected(ctx, s); err != nil {
		return err
	}

	c.startLoop()

	text, err := signalr.SubscribeRequest(c.cfg.Streams).Encode()
	if err != nil {
		return err
	}
	if err := s.write(ctx, text); err != nil {
		return fmt.Errorf("sending subscribe request: %w", err)
	}
	c.log.Info("Subscribed to live timing streams", "streams", len(c.cfg.Streams))
	return nil
}

func (c *Connection) dial(ctx context.Context, neg negotiation) (*socket, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	u := connectURL(c.baseURL, neg.token)
	c.log.Info("Opening websocket connection", "host", u.Host)

	header := http.Header{}
	header.Set("User-Agent", constants.UserAgent)
	header.Set("Accept-Encoding", constants.AcceptEncoding)
	if neg.cookie != "" {
		header.Set("Cookie", neg.cookie)
	}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: c.client,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing hub websocket: %w", err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)
	return newSocket(conn), nil
}

// awaitConnected polls until the router has seen the init frame.
func (c *Connection) awaitConnected(ctx context.Context, s *socket) error {
	deadline := time.NewTimer(c.cfg.ConnectWait)
	defer deadline.Stop()
	poll := time.NewTicker(c.cfg.ConnectPollInterval)
	defer poll.Stop()

	for {
		if c.ConnectionState() == model.ConnectionConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return errors.New("websocket closed before hub init message")
		case <-deadline.C:
			if c.ConnectionState() == model.ConnectionConnected {
				return nil
			}
			return fmt.Errorf("%w after %s", ErrConnectTimeout, c.cfg.ConnectWait)
		case <-poll.C:
			c.log.Debug("Waiting for hub init message", "state", c.ConnectionState())
		}
	}
}

// Close stops the keep-alive loop, closes the websocket and resets the
// connection state. It is safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	cancel := c.loopCancel
	c.mu.Unlock()
	if cancel != nil {
		// Abort an in-flight loop attempt before waiting for opMu.
		cancel()
	}

	c.opMu.Lock()
	done := c.closeLocked()
	c.opMu.Unlock()

	if done != nil {
		<-done
	}
}

// closeLocked runs with opMu held. It returns the done channel of the
// stopped keep-alive loop, if one was running.
func (c *Connection) closeLocked() chan struct{} {
	c.mu.Lock()
	c.setOperationalLocked(model.OperationalClosed)
	cancel, done := c.loopCancel, c.loopDone
	c.loopCancel, c.loopDone = nil, nil
	c.errorCount = 0
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.dropSocket()
	return done
}

// dropSocket closes the current websocket, if any, and resets the state to
// Ready.
func (c *Connection) dropSocket() {
	c.mu.Lock()
	s := c.sock
	c.sock = nil
	c.mu.Unlock()

	if s != nil {
		s.close(websocket.StatusNormalClosure)
	}
	c.setState(model.ConnectionReady)
}

// IsConnected reports whether the connection is open and the handshake has
// completed.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operational == model.OperationalOpen && c.state == model.ConnectionConnected
}

// ConnectionState returns the current transport state.
func (c *Connection) ConnectionState() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Operational returns the caller's intent for the connection.
func (c *Connection) Operational() model.OperationalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operational
}

// LastKeepAlive returns the time the last keep-alive frame was seen.
func (c *Connection) LastKeepAlive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastKeepAlive
}

// KeepAliveTimeout returns the staleness window currently in effect.
func (c *Connection) KeepAliveTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAliveTimeout
}

// Shutdown closes the connection and the raw message log.
func (c *Connection) Shutdown() error {
	c.Close()
	if c.msgLog != nil {
		return c.msgLog.Close()
	}
	return nil
}

func (c *Connection) currentSocket() *socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock
}

func (c *Connection) setState(state model.ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(state)
}

func (c *Connection) setStateLocked(state model.ConnectionState) {
	if c.state == state {
		return
	}
	c.log.Info("Changing connection state", "from", c.state, "to", state)
	c.state = state
}

func (c *Connection) setOperationalLocked(state model.OperationalState) {
	if c.operational == state {
		return
	}
	c.log.Info("Changing operational state", "from", c.operational, "to", state)
	c.operational = state
}
