// Package logger provides structured logging with colored console output,
// optional file output, and per-component logger prefixing using log/slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

var eventEmoji = map[string]string{
	"SESSION_LIVE":      "🟢",
	"SESSION_ENDED":     "🏁",
	"CONNECTOR_GAVE_UP": "🛑",
	"CONNECTOR_STARTED": "📡",
}

// ANSI color codes for terminal output.
const (
	colorReset         = "\033[0m"
	colorRed           = "\033[31m"
	colorGreen         = "\033[32m"
	colorYellow        = "\033[33m"
	colorBlue          = "\033[34m"
	colorLightBlue     = "\033[94m"
	colorMagenta       = "\033[35m"
	colorCyan          = "\033[36m"
	colorGray          = "\033[90m"
	colorBrightMagenta = "\033[95m"
)

// coloredAttrKeys maps slog attribute keys to ANSI color codes for value highlighting.
var coloredAttrKeys = map[string]string{
	"component": colorMagenta,
	"category":  colorLightBlue,
	"session":   colorBrightMagenta,
	"state":     colorBlue,
}

// NotifyFunc is a callback invoked when a log event matches notification criteria.
// Implementations should be non-blocking.
type NotifyFunc func(ctx context.Context, message string, event model.Event)

// Config holds logger configuration options.
type Config struct {
	Level     slog.Level
	FileLevel slog.Level
	Colored   bool
	// LogDir enables a plain-text log file named after FileName.
	LogDir   string
	FileName string
	// Component is printed as a prefix on console lines.
	Component string
	NotifyFn  NotifyFunc
	// Output defaults to os.Stdout.
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		FileLevel: slog.LevelDebug,
		Colored:   true,
		FileName:  "connector.log",
	}
}

// Logger wraps slog.Logger with component-scoped context and notification dispatch.
type Logger struct {
	*slog.Logger
	cfg      Config
	notifyFn *atomic.Value // stores NotifyFunc, shared with child loggers
}

// Setup creates a new Logger based on the provided configuration.
// It sets up console and optional file handlers.
func Setup(cfg Config) (*Logger, error) {
	var handlers []slog.Handler

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	consoleHandler := newColorHandler(out, cfg.Level, cfg.Colored, cfg.Component)
	handlers = append(handlers, consoleHandler)

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
		}

		filename := cfg.FileName
		if filename == "" {
			filename = "connector.log"
		}

		logFile, err := os.OpenFile(
			filepath.Join(cfg.LogDir, filename),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}

		fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: cfg.FileLevel,
		})
		handlers = append(handlers, fileHandler)
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}

	logger := &Logger{
		Logger:   slog.New(handler),
		cfg:      cfg,
		notifyFn: &atomic.Value{},
	}

	if cfg.NotifyFn != nil {
		logger.notifyFn.Store(cfg.NotifyFn)
	}

	return logger, nil
}

// WithComponent returns a child Logger tagged with the component name. The
// child shares handlers and the notification callback with its parent.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger:   l.Logger.With("component", name),
		cfg:      l.cfg,
		notifyFn: l.notifyFn,
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler), notifyFn: &atomic.Value{}}
}

// Event logs a message at INFO level and dispatches a notification if configured.
// If the event has a mapped emoji, it is prepended to the log message.
func (l *Logger) Event(ctx context.Context, event model.Event, msg string, args ...any) {
	if emoji, ok := eventEmoji[string(event)]; ok {
		msg = emoji + " " + msg
	}
	l.Logger.Info(msg, append(args, "event", string(event))...)

	if fn, ok := l.notifyFn.Load().(NotifyFunc); ok && fn != nil {
		fn(ctx, formatNotification(msg, args), event)
	}
}

// formatNotification renders key/value args as "msg (key: value, ...)".
func formatNotification(msg string, args []any) string {
	if len(args) < 2 {
		return msg
	}
	parts := make([]string, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		parts = append(parts, fmt.Sprintf("%v: %v", args[i], args[i+1]))
	}
	return msg + " (" + strings.Join(parts, ", ") + ")"
}

// SetNotifyFunc sets the notification callback function. Thread-safe.
func (l *Logger) SetNotifyFunc(fn NotifyFunc) {
	l.notifyFn.Store(fn)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// colorHandler writes one line per record. The component attribute is lifted
// out of the attribute list and printed as a prefix.
type colorHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Level
	colored   bool
	component string
	attrs     []slog.Attr
}

func newColorHandler(w io.Writer, level slog.Level, colored bool, component string) *colorHandler {
	return &colorHandler{
		mu:        &sync.Mutex{},
		writer:    w,
		level:     level,
		colored:   colored,
		component: component,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder

	timeStr := record.Time.Format("2006-01-02 15:04:05.000")
	prefix := ""
	if h.component != "" {
		prefix = "[" + h.component + "] "
	}

	if h.colored {
		fmt.Fprintf(&b, "%s%s%s %s%-5s%s %s%s",
			colorGray, timeStr, colorReset,
			h.levelColor(record.Level), record.Level.String(), colorReset,
			prefix, record.Message,
		)
	} else {
		fmt.Fprintf(&b, "%s %-5s %s%s", timeStr, record.Level.String(), prefix, record.Message)
	}

	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *colorHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	if h.colored {
		if color, ok := coloredAttrKeys[a.Key]; ok {
			fmt.Fprintf(b, " %s=%s%v%s", a.Key, color, a.Value, colorReset)
			return
		}
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := h.clone()
	for _, a := range attrs {
		if a.Key == "component" {
			child.component = a.Value.String()
			continue
		}
		child.attrs = append(child.attrs, a)
	}
	return child
}

func (h *colorHandler) WithGroup(string) slog.Handler {
	return h.clone()
}

func (h *colorHandler) clone() *colorHandler {
	return &colorHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		colored:   h.colored,
		component: h.component,
		attrs:     copyAttrs(h.attrs),
	}
}

func copyAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	cp := make([]slog.Attr, len(attrs))
	copy(cp, attrs)
	return cp
}

func (h *colorHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (handler *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handler *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handler *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (handler *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
