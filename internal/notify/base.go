package notify

import (
	"slices"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

// baseNotifier carries the name and event filter shared by every provider.
type baseNotifier struct {
	name    string
	enabled bool
	events  []model.Event
}

// Name returns the human-readable name of the notifier.
func (b *baseNotifier) Name() string { return b.name }

// IsEnabled reports whether this notifier is active.
func (b *baseNotifier) IsEnabled() bool { return b.enabled }

// ShouldNotify reports whether this notifier subscribed to event. An empty
// filter subscribes to every event.
func (b *baseNotifier) ShouldNotify(event model.Event) bool {
	return len(b.events) == 0 || slices.Contains(b.events, event)
}
