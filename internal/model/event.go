package model

// Event represents a connector event type for notification filtering and logging.
type Event string

// All supported connector events.
const (
	EventSessionLive      Event = "SESSION_LIVE"
	EventSessionEnded     Event = "SESSION_ENDED"
	EventConnectorGaveUp  Event = "CONNECTOR_GAVE_UP"
	EventConnectorStarted Event = "CONNECTOR_STARTED"
	EventTest             Event = "TEST"
)

// AllEvents returns a slice of all defined events.
func AllEvents() []Event {
	return []Event{
		EventSessionLive,
		EventSessionEnded,
		EventConnectorGaveUp,
		EventConnectorStarted,
		EventTest,
	}
}

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent converts a string to an Event. Returns empty string if invalid.
func ParseEvent(s string) Event {
	for _, e := range AllEvents() {
		if string(e) == s {
			return e
		}
	}
	return ""
}
