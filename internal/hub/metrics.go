package hub

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/signalr"
)

const meterName = "livetiming.connector.hub"

type metrics struct {
	received  metric.Int64Counter
	delivered metric.Int64Counter
	failures  metric.Int64Counter
}

// newMetrics registers the hub instruments on the global meter provider.
// Registration failures are logged and leave no-op instruments behind.
func newMetrics(c *Connection, log *logger.Logger) *metrics {
	meter := otel.GetMeterProvider().Meter(meterName)
	m := &metrics{}

	var err error
	if m.received, err = meter.Int64Counter("livetiming.connector.record.received",
		metric.WithDescription("Protocol messages received from the hub"),
		metric.WithUnit("{message}")); err != nil {
		log.Error("Failed to register metric", "metric", "record.received", "error", err)
	}
	if m.delivered, err = meter.Int64Counter("livetiming.connector.message.delivered",
		metric.WithDescription("Live timing messages delivered to the consumer"),
		metric.WithUnit("{message}")); err != nil {
		log.Error("Failed to register metric", "metric", "message.delivered", "error", err)
	}
	if m.failures, err = meter.Int64Counter("livetiming.connector.reconnect.failures",
		metric.WithDescription("Failed reconnect attempts of the keep-alive loop"),
		metric.WithUnit("{attempt}")); err != nil {
		log.Error("Failed to register metric", "metric", "reconnect.failures", "error", err)
	}

	type gauge struct {
		name  string
		desc  string
		value func() int64
	}
	for _, g := range []gauge{
		{
			"livetiming.connector.connection.state", "Hub connection state (0 ready, 1 connecting, 2 connected, 3 disconnected)",
			func() int64 { return int64(c.ConnectionState()) },
		},
		{
			"livetiming.connector.operational.state", "Hub operational state (0 closed, 1 open)",
			func() int64 { return int64(c.Operational()) },
		},
	} {
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(g.value())
				return nil
			})); err != nil {
			log.Error("Failed to register metric", "metric", g.name, "error", err)
		}
	}
	return m
}

func (m *metrics) recordReceived(ctx context.Context, kind signalr.Kind) {
	if m == nil || m.received == nil {
		return
	}
	m.received.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (m *metrics) recordDelivered(ctx context.Context, msg model.LiveTimingMessage) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", msg.Category),
		attribute.Bool("streaming", msg.IsStreaming),
	))
}

func (m *metrics) reconnectFailed(ctx context.Context) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.Add(ctx, 1)
}
