package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

// Publisher is the part of *nats.Conn the NATS sink uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes each message on <prefix>.<category>.
type NATS struct {
	conn   Publisher
	prefix string
}

// DialNATS connects to url and returns a NATS sink.
func DialNATS(url, prefix string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("livetiming-connector"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	return NewNATS(conn, prefix), nil
}

// NewNATS wraps an existing connection.
func NewNATS(conn Publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = constants.DefaultNATSSubjectPrefix
	}
	return &NATS{conn: conn, prefix: prefix}
}

func (n *NATS) Name() string { return "nats" }

// Subject returns the subject a message with category is published on.
func (n *NATS) Subject(category string) string {
	return n.prefix + "." + category
}

func (n *NATS) Write(ctx context.Context, batch []model.LiveTimingMessage) error {
	for _, m := range batch {
		msg := nats.NewMsg(n.Subject(m.Category))
		msg.Data = []byte(m.Payload)
		msg.Header.Set("timestamp", m.Timestamp.UTC().Format(time.RFC3339Nano))
		msg.Header.Set("messageType", m.Kind())
		msg.Header.Set("streaming", strconv.FormatBool(m.IsStreaming))
		if err := n.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publishing %s: %w", msg.Subject, err)
		}
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
