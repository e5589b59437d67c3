// Package notify delivers connector events (session start and end, giving up
// on the hub) to Telegram, Discord and generic webhooks.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Guliveer/livetiming-connector/internal/config"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	// Title prefixes every notification.
	Title = "Live Timing Connector"
)

// Notifier is the interface that all notification providers must implement.
type Notifier interface {
	Send(ctx context.Context, event model.Event, title, message string) error
	Name() string
	IsEnabled() bool
	ShouldNotify(event model.Event) bool
}

// Dispatcher fans events out to every enabled notifier whose filter matches.
type Dispatcher struct {
	notifiers []Notifier
	log       *logger.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from the notification configuration.
func NewDispatcher(cfg config.NotificationsConfig, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{log: log}

	httpClient := &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		d.notifiers = append(d.notifiers, &Telegram{
			baseNotifier:        baseNotifier{name: "Telegram", enabled: true, events: parseEvents(cfg.Telegram.Events)},
			apiBase:             telegramAPIBase,
			token:               cfg.Telegram.Token,
			chatID:              cfg.Telegram.ChatID,
			disableNotification: cfg.Telegram.DisableNotification,
			httpClient:          httpClient,
		})
	}

	if cfg.Discord != nil && cfg.Discord.Enabled {
		d.notifiers = append(d.notifiers, &Discord{
			baseNotifier: baseNotifier{name: "Discord", enabled: true, events: parseEvents(cfg.Discord.Events)},
			webhookURL:   cfg.Discord.WebhookURL,
			httpClient:   httpClient,
		})
	}

	if cfg.Webhook != nil && cfg.Webhook.Enabled {
		method := cfg.Webhook.Method
		if method == "" {
			method = http.MethodPost
		}
		d.notifiers = append(d.notifiers, &Webhook{
			baseNotifier: baseNotifier{name: "Webhook", enabled: true, events: parseEvents(cfg.Webhook.Events)},
			url:          cfg.Webhook.Endpoint,
			method:       method,
			httpClient:   httpClient,
		})
	}

	return d
}

// Dispatch sends a notification to every matching notifier. Each send runs
// in its own goroutine; Wait blocks until they finish.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.Event, title, message string) {
	for _, n := range d.notifiers {
		if !n.IsEnabled() || !n.ShouldNotify(event) {
			continue
		}
		d.wg.Add(1)
		go func(notifier Notifier) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultHTTPTimeout)
			defer cancel()
			if err := notifier.Send(sendCtx, event, title, message); err != nil {
				d.log.Warn("Notification send failed",
					"provider", notifier.Name(),
					"event", string(event),
					"error", err,
				)
			}
		}(n)
	}
}

// Wait blocks until in-flight sends finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyFunc returns a logger.NotifyFunc that dispatches through d.
func (d *Dispatcher) NotifyFunc() logger.NotifyFunc {
	return func(ctx context.Context, message string, event model.Event) {
		d.Dispatch(ctx, event, Title, message)
	}
}

// HasNotifiers reports whether any notifiers are configured.
func (d *Dispatcher) HasNotifiers() bool {
	return len(d.notifiers) > 0
}

// Names lists the configured providers.
func (d *Dispatcher) Names() []string {
	return lo.Map(d.notifiers, func(n Notifier, _ int) string { return n.Name() })
}

// parseEvents keeps the recognised event names and drops the rest.
func parseEvents(names []string) []model.Event {
	return lo.FilterMap(names, func(name string, _ int) (model.Event, bool) {
		e := model.ParseEvent(name)
		return e, e != ""
	})
}
