// Package mockhub serves a recorded live timing message log over the same
// negotiate/connect protocol the real hub speaks, for offline testing.
package mockhub

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/signalr"
)

// Config controls the replay.
type Config struct {
	// BasePath is where negotiate and connect are mounted. Default "/signalr/".
	BasePath string
	// ReplayInterval is the delay between replayed lines.
	ReplayInterval time.Duration
	// KeepAliveTimeout is announced during negotiation. A negative value
	// announces null.
	KeepAliveTimeout time.Duration
	// KeepAliveEvery sends {} at this interval while replaying. Zero
	// disables synthetic keep-alives.
	KeepAliveEvery time.Duration
	// FragmentSize splits outgoing frames into continuation frames of about
	// this many bytes. Zero sends whole frames.
	FragmentSize int
	// Loop restarts the replay at the end of the log.
	Loop bool
	// Token is the connection token issued by negotiate.
	Token string
}

func (cfg *Config) applyDefaults() {
	if cfg.BasePath == "" {
		cfg.BasePath = "/signalr/"
	}
	if !strings.HasSuffix(cfg.BasePath, "/") {
		cfg.BasePath += "/"
	}
	if cfg.ReplayInterval <= 0 {
		cfg.ReplayInterval = constants.DefaultReplayInterval
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = constants.DefaultMockKeepAliveTimeout
	}
	if cfg.Token == "" {
		cfg.Token = "mock-connection-token"
	}
}

// Server is a mock hub. Its handler can be mounted on an httptest server.
type Server struct {
	cfg   Config
	lines []string
	log   *logger.Logger
	mux   *http.ServeMux

	upgrader websocket.Upgrader

	unavailable  atomic.Bool
	negotiations atomic.Int64
	connects     atomic.Int64
	nextID       atomic.Int64

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a mock hub replaying lines.
func New(cfg Config, lines []string, log *logger.Logger) *Server {
	cfg.applyDefaults()

	s := &Server{
		cfg:   cfg,
		lines: lines,
		log:   log,
		mux:   http.NewServeMux(),
		conns: make(map[*websocket.Conn]struct{}),
	}

	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	if cfg.FragmentSize > 0 {
		// gorilla flushes a continuation frame whenever the write buffer fills.
		s.upgrader.WriteBufferSize = cfg.FragmentSize
		s.upgrader.WriteBufferPool = nil
	}

	s.mux.HandleFunc("GET "+cfg.BasePath+constants.NegotiatePath, s.handleNegotiate)
	s.mux.HandleFunc("GET "+cfg.BasePath+constants.ConnectPath, s.handleConnect)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return s
}

// LoadLog reads a message log written by the hub connection, one frame per
// line. Blank lines are skipped.
func LoadLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening message log %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), constants.DefaultReadLimit)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading message log %s: %w", path, err)
	}
	return lines, nil
}

// Handler returns the HTTP handler of the mock hub.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetAvailable toggles whether negotiate succeeds. An unavailable hub
// answers 503.
func (s *Server) SetAvailable(available bool) {
	s.unavailable.Store(!available)
}

// Negotiations returns the number of negotiate requests served.
func (s *Server) Negotiations() int {
	return int(s.negotiations.Load())
}

// Connects returns the number of websocket upgrades served.
func (s *Server) Connects() int {
	return int(s.connects.Load())
}

// DropConnections aborts every open websocket without a close frame.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	s.log.Info("Mock hub starting", "addr", addr, "lines", len(s.lines))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("mock hub: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Mock hub shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		s.DropConnections()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mock hub shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type negotiateResponse struct {
	URL                     string   `json:"Url"`
	ConnectionToken         string   `json:"ConnectionToken"`
	ConnectionID            string   `json:"ConnectionId"`
	KeepAliveTimeout        *float64 `json:"KeepAliveTimeout"`
	DisconnectTimeout       float64  `json:"DisconnectTimeout"`
	ConnectionTimeout       float64  `json:"ConnectionTimeout"`
	TryWebSockets           bool     `json:"TryWebSockets"`
	ProtocolVersion         string   `json:"ProtocolVersion"`
	TransportConnectTimeout float64  `json:"TransportConnectTimeout"`
	LongPollDelay           float64  `json:"LongPollDelay"`
}

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	s.negotiations.Add(1)

	if s.unavailable.Load() {
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("clientProtocol") != constants.ClientProtocol {
		http.Error(w, "unsupported protocol", http.StatusBadRequest)
		return
	}

	resp := negotiateResponse{
		URL:                     strings.TrimSuffix(s.cfg.BasePath, "/"),
		ConnectionToken:         s.cfg.Token,
		ConnectionID:            fmt.Sprintf("mock-%d", s.nextID.Add(1)),
		DisconnectTimeout:       30,
		ConnectionTimeout:       110,
		TryWebSockets:           true,
		ProtocolVersion:         constants.ClientProtocol,
		TransportConnectTimeout: 10,
		LongPollDelay:           1,
	}
	if s.cfg.KeepAliveTimeout > 0 {
		v := s.cfg.KeepAliveTimeout.Seconds()
		resp.KeepAliveTimeout = &v
	}

	http.SetCookie(w, &http.Cookie{Name: "mockhub", Value: resp.ConnectionID, Path: "/"})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("transport") != constants.TransportWebSockets || q.Get("connectionToken") != s.cfg.Token {
		http.Error(w, "invalid connect request", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	s.connects.Add(1)
	s.track(conn, true)
	defer s.track(conn, false)
	defer conn.Close()

	sess := &session{conn: conn, cfg: s.cfg, log: s.log}
	sess.run(r.Context(), s.lines)
}

func (s *Server) track(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// session is one replaying websocket.
type session struct {
	conn *websocket.Conn
	cfg  Config
	log  *logger.Logger
	wmu  sync.Mutex
}

func (ss *session) run(ctx context.Context, lines []string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frame, err := json.Marshal(signalr.NewInitFrame(fmt.Sprintf("d-mock,%d", time.Now().UnixNano())))
	if err != nil {
		return
	}
	if err := ss.send(string(frame)); err != nil {
		ss.log.Debug("Sending init frame failed", "error", err)
		return
	}

	subscribed := make(chan struct{})
	go ss.readLoop(cancel, subscribed)

	select {
	case <-ctx.Done():
		return
	case <-subscribed:
	}
	ss.log.Info("Client subscribed, starting replay", "lines", len(lines))

	if ss.cfg.KeepAliveEvery > 0 {
		go ss.keepAliveLoop(ctx)
	}

	ticker := time.NewTicker(ss.cfg.ReplayInterval)
	defer ticker.Stop()
	for {
		for _, line := range lines {
			if isInit(line) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := ss.send(line); err != nil {
				ss.log.Debug("Replay write failed", "error", err)
				return
			}
		}
		if !ss.cfg.Loop {
			break
		}
	}
	// Keep the socket open with keep-alives until the client leaves.
	<-ctx.Done()
}

// readLoop waits for the Subscribe call and then drains client frames.
func (ss *session) readLoop(cancel context.CancelFunc, subscribed chan struct{}) {
	defer cancel()
	var once sync.Once
	for {
		_, data, err := ss.conn.ReadMessage()
		if err != nil {
			return
		}
		var call signalr.Invocation
		if err := json.Unmarshal(data, &call); err != nil {
			continue
		}
		if call.Hub == constants.HubName && call.Method == constants.SubscribeMethod {
			once.Do(func() { close(subscribed) })
		}
	}
}

func (ss *session) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(ss.cfg.KeepAliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ss.send("{}"); err != nil {
				return
			}
		}
	}
}

// send writes one text message through NextWriter so that a small write
// buffer produces continuation frames.
func (ss *session) send(text string) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()

	w, err := ss.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(text)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func isInit(line string) bool {
	env, err := signalr.Decode(line)
	return err == nil && env.Kind() == signalr.KindInit
}
