package signalr

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/jsonutil"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

// timestampLayouts are tried in order for feed and clock timestamps. The hub
// omits the zone on some categories; those values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// Extractor turns data-carrying envelopes into LiveTimingMessages.
type Extractor struct {
	log *slog.Logger
	now func() time.Time
}

// NewExtractor creates an Extractor. A nil logger discards skip reports.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{log: log, now: time.Now}
}

// Extract returns the messages carried by env in source order. Control
// envelopes yield nil. A field or item whose compressed payload cannot be
// inflated is logged and skipped.
func (e *Extractor) Extract(env Envelope) []model.LiveTimingMessage {
	switch v := env.(type) {
	case HubResponse:
		return e.ExtractSnapshot(v).Messages
	case ClientMethodInvocation:
		return e.extractFeed(v)
	default:
		return nil
	}
}

// ExtractSnapshot decomposes a hub response into one message per top-level
// field of its result, all sharing the ExtrapolatedClock time when present.
func (e *Extractor) ExtractSnapshot(resp HubResponse) model.HubResponseSnapshot {
	fields, ok := jsonutil.Fields(resp.Result)
	if !ok {
		return model.HubResponseSnapshot{Timestamp: e.now().UTC()}
	}

	ts := e.snapshotTime(fields)
	messages := make([]model.LiveTimingMessage, 0, len(fields))
	for _, f := range fields {
		payload, err := e.payload(f.Name, f.Value)
		if err != nil {
			e.log.Warn("Skipping snapshot category", "category", f.Name, "error", err)
			continue
		}
		messages = append(messages, model.LiveTimingMessage{
			Category:    f.Name,
			Payload:     payload,
			Timestamp:   ts,
			IsStreaming: false,
		})
	}
	return model.HubResponseSnapshot{Messages: messages, Timestamp: ts}
}

func (e *Extractor) extractFeed(inv ClientMethodInvocation) []model.LiveTimingMessage {
	var messages []model.LiveTimingMessage
	for _, item := range inv.Items {
		var call struct {
			H json.RawMessage `json:"H"`
			M json.RawMessage `json:"M"`
			A json.RawMessage `json:"A"`
		}
		if err := json.Unmarshal([]byte(item), &call); err != nil {
			continue
		}
		if jsonutil.Text(call.H, "") != constants.HubName || !jsonutil.IsTextual(call.H) {
			continue
		}
		if jsonutil.Text(call.M, "") != constants.FeedMethod || !jsonutil.IsTextual(call.M) {
			continue
		}
		args, ok := jsonutil.Elements(call.A)
		if !ok || len(args) != 3 || !jsonutil.IsTextual(args[0]) || !jsonutil.IsTextual(args[2]) {
			continue
		}

		category := jsonutil.Text(args[0], "")
		payload, err := e.payload(category, args[1])
		if err != nil {
			e.log.Warn("Skipping feed update", "category", category, "error", err)
			continue
		}
		messages = append(messages, model.LiveTimingMessage{
			Category:    category,
			Payload:     payload,
			Timestamp:   e.parseTime(jsonutil.Text(args[2], "")),
			IsStreaming: true,
		})
	}
	return messages
}

// payload returns the text of value, inflated for compressed categories.
func (e *Extractor) payload(category string, value json.RawMessage) (string, error) {
	if !model.IsCompressedCategory(category) {
		return string(value), nil
	}
	return Inflate(jsonutil.Text(value, string(value)))
}

func (e *Extractor) snapshotTime(fields []jsonutil.Field) time.Time {
	for _, f := range fields {
		if f.Name != constants.CategoryExtrapolatedClock {
			continue
		}
		clock, ok := jsonutil.Fields(f.Value)
		if !ok {
			break
		}
		for _, c := range clock {
			if c.Name == "Utc" && jsonutil.IsTextual(c.Value) {
				return e.parseTime(jsonutil.Text(c.Value, ""))
			}
		}
	}
	return e.now().UTC()
}

// parseTime parses a hub timestamp as UTC, falling back to the current time.
func (e *Extractor) parseTime(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return e.now().UTC()
}
