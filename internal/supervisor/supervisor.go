// Package supervisor watches the session status carried by the live timing
// feed and opens or closes the hub connection to match it: connected while a
// session is live or data is flowing, idle between sessions with a periodic
// re-check, and restarted when the state stays unknown for too long.
package supervisor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

// Hub is the part of the hub connection the supervisor drives.
type Hub interface {
	Connect(ctx context.Context) error
	Close()
	IsConnected() bool
}

// Config holds the policy timings. Zero values take defaults.
type Config struct {
	Interval      time.Duration
	GracePeriod   time.Duration
	DataRecency   time.Duration
	IdleReconnect time.Duration
}

func (cfg *Config) applyDefaults() {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultSupervisorInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = constants.DefaultSessionGracePeriod
	}
	if cfg.DataRecency <= 0 {
		cfg.DataRecency = constants.DefaultDataRecency
	}
	if cfg.IdleReconnect <= 0 {
		cfg.IdleReconnect = constants.DefaultIdleReconnect
	}
}

// Action is the decision taken by one policy evaluation.
type Action int

const (
	ActionNone Action = iota
	ActionConnect
	ActionClose
	ActionRecheck
	ActionRestart
)

func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionClose:
		return "close"
	case ActionRecheck:
		return "recheck"
	case ActionRestart:
		return "restart"
	default:
		return "none"
	}
}

// Status is a point-in-time view of the supervisor for status reporting.
type Status struct {
	State            model.SessionState
	Info             model.SessionInfo
	HasInfo          bool
	LastSessionCheck time.Time
	LastMessage      time.Time
}

// Supervisor tracks session state from the message stream and applies the
// connection policy on a fixed interval.
type Supervisor struct {
	cfg Config
	hub Hub
	log *logger.Logger
	now func() time.Time

	mu          sync.Mutex
	info        model.SessionInfo
	hasInfo     bool
	state       model.SessionState
	lastCheck   time.Time
	lastMessage time.Time
	listeners   []func(model.SessionTransition)
}

// New creates a Supervisor in the Unknown state. The grace period starts
// now.
func New(cfg Config, hub Hub, log *logger.Logger) *Supervisor {
	cfg.applyDefaults()
	s := &Supervisor{
		cfg:  cfg,
		hub:  hub,
		log:  log,
		now:  time.Now,
		info: model.SessionInfo{ArchiveStatus: model.ArchiveStatusUnknown},
	}
	s.lastCheck = s.now()
	s.lastMessage = s.lastCheck
	s.registerMetrics()
	return s
}

// OnTransition registers fn to be called whenever the session state changes.
// fn runs on the goroutine that delivered the message.
func (s *Supervisor) OnTransition(fn func(model.SessionTransition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Consume observes one live timing message. It is meant to be chained into
// the hub consumer.
func (s *Supervisor) Consume(msg model.LiveTimingMessage) {
	now := s.now()

	var merge func(model.SessionInfo, string) (model.SessionInfo, error)
	switch {
	case strings.EqualFold(msg.Category, constants.CategorySessionInfo):
		merge = mergeSessionInfo
	case strings.EqualFold(msg.Category, constants.CategorySessionData):
		merge = mergeSessionData
	}

	s.mu.Lock()
	s.lastMessage = now
	if merge == nil {
		s.mu.Unlock()
		return
	}

	next, err := merge(s.info, msg.Payload)
	if err != nil {
		s.log.Warn("Failed to process session update", "category", msg.Category, "error", err)
	} else {
		next.UpdatedAt = now
		s.info = next
		s.hasInfo = true
	}
	s.lastCheck = now

	from := s.state
	s.state = s.info.State()
	transition := model.SessionTransition{From: from, To: s.state, Info: s.info, At: now}
	listeners := append([]func(model.SessionTransition){}, s.listeners...)
	s.mu.Unlock()

	s.log.Debug("Session status updated", "category", msg.Category, "status", transition.Info.Status,
		"archive", transition.Info.ArchiveStatus, "state", transition.To)

	if from == transition.To {
		return
	}
	s.announce(transition)
	for _, fn := range listeners {
		fn(transition)
	}
}

func (s *Supervisor) announce(t model.SessionTransition) {
	ctx := context.Background()
	s.log.Info("Session state changed", "from", t.From, "to", t.To)

	switch {
	case t.To == model.SessionLive:
		s.log.Event(ctx, model.EventSessionLive, "Live session started",
			"meeting", t.Info.MeetingName, "session", t.Info.Name, "type", t.Info.Type)
	case t.From == model.SessionLive && t.To == model.SessionNone:
		s.log.Event(ctx, model.EventSessionEnded, "Live session ended",
			"meeting", t.Info.MeetingName, "session", t.Info.Name, "status", t.Info.Status)
	}
}

// Status returns the current session view.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:            s.state,
		Info:             s.info,
		HasInfo:          s.hasInfo,
		LastSessionCheck: s.lastCheck,
		LastMessage:      s.lastMessage,
	}
}

// Run evaluates the policy every interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Evaluate(ctx)
		}
	}
}

// Evaluate applies the connection policy once and returns what it did. Hub
// calls are made without holding the supervisor lock.
func (s *Supervisor) Evaluate(ctx context.Context) Action {
	now := s.now()
	s.mu.Lock()
	state := s.state
	sinceCheck := now.Sub(s.lastCheck)
	sinceMessage := now.Sub(s.lastMessage)
	s.mu.Unlock()

	connected := s.hub.IsConnected()
	s.log.Debug("Supervisor loop", "state", state, "connected", connected,
		"since_check", sinceCheck.Round(time.Second), "since_message", sinceMessage.Round(time.Second))

	switch {
	case state == model.SessionUnknown && sinceCheck < s.cfg.GracePeriod:
		return ActionNone

	case state == model.SessionLive || sinceMessage < s.cfg.DataRecency:
		if connected {
			return ActionNone
		}
		s.log.Info("No hub connection while a session is running, reconnecting")
		s.connect(ctx)
		return ActionConnect

	case state == model.SessionNone:
		if connected {
			s.log.Info("No live session, closing the hub connection")
			s.hub.Close()
			return ActionClose
		}
		if sinceCheck > s.cfg.IdleReconnect {
			s.log.Info("Checking whether a session starts soon", "idle", sinceCheck.Round(time.Second))
			s.connect(ctx)
			return ActionRecheck
		}
		return ActionNone

	default:
		s.log.Info("Session state still unknown, restarting the hub connection", "since_check", sinceCheck.Round(time.Second))
		s.hub.Close()
		s.connect(ctx)
		s.mu.Lock()
		s.lastCheck = s.now()
		s.mu.Unlock()
		return ActionRestart
	}
}

func (s *Supervisor) connect(ctx context.Context) {
	if err := s.hub.Connect(ctx); err != nil {
		s.log.Warn("Error connecting to hub", "error", err)
	}
}

func (s *Supervisor) registerMetrics() {
	meter := otel.GetMeterProvider().Meter("livetiming.connector.supervisor")
	if _, err := meter.Int64ObservableGauge("livetiming.connector.session.state",
		metric.WithDescription("Session state (0 unknown, 1 no session, 2 live)"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.Status().State))
			return nil
		})); err != nil {
		s.log.Error("Failed to register metric", "metric", "session.state", "error", err)
	}
}
