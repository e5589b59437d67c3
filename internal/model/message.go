package model

import (
	"strings"
	"time"
)

const compressedSuffix = ".z"

// LiveTimingMessage is one category update decoded from the hub.
type LiveTimingMessage struct {
	Category string `json:"category"`
	// Payload is the raw JSON text of the update. For compressed categories
	// it holds the inflated text.
	Payload   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	// IsStreaming is true for incremental feed updates and false for entries
	// of the subscribe snapshot.
	IsStreaming bool `json:"isStreaming"`
}

// Compressed reports whether the category carries base64 + raw DEFLATE data
// on the wire.
func (m LiveTimingMessage) Compressed() bool {
	return IsCompressedCategory(m.Category)
}

// Kind returns "streaming" or "snapshot" for sink headers and metrics.
func (m LiveTimingMessage) Kind() string {
	if m.IsStreaming {
		return "streaming"
	}
	return "snapshot"
}

// IsCompressedCategory reports whether a category name ends in ".z".
func IsCompressedCategory(category string) bool {
	return strings.HasSuffix(category, compressedSuffix)
}

// HubResponseSnapshot groups the messages decoded from one subscribe reply.
type HubResponseSnapshot struct {
	Messages  []LiveTimingMessage `json:"messages"`
	Timestamp time.Time           `json:"timestamp"`
}

// Categories returns the snapshot categories in source order.
func (s HubResponseSnapshot) Categories() []string {
	out := make([]string, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = m.Category
	}
	return out
}
