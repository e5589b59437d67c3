// Package sink fans decoded live timing messages out to external systems.
// Each sink is drained by its own goroutine from a bounded queue so a slow
// sink never blocks the hub reader.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/workerpool"
)

// Sink receives batches of messages in arrival order.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch []model.LiveTimingMessage) error
	Close() error
}

// maxBatch caps how many queued messages are handed to one Write.
const maxBatch = 256

type lane struct {
	sink    Sink
	queue   chan model.LiveTimingMessage
	dropped atomic.Int64
	log     *logger.Logger
}

// Fanout delivers every consumed message to all sinks.
type Fanout struct {
	lanes []*lane
	log   *logger.Logger

	sent    metric.Int64Counter
	drops   metric.Int64Counter
	failure metric.Int64Counter

	closeOnce sync.Once
}

// NewFanout creates a Fanout with a queue of buffer messages per sink.
func NewFanout(sinks []Sink, buffer int, log *logger.Logger) *Fanout {
	if buffer <= 0 {
		buffer = constants.DefaultSinkBuffer
	}
	f := &Fanout{log: log}
	for _, s := range sinks {
		f.lanes = append(f.lanes, &lane{
			sink:  s,
			queue: make(chan model.LiveTimingMessage, buffer),
			log:   log.WithComponent("sink:" + s.Name()),
		})
	}

	meter := otel.GetMeterProvider().Meter("livetiming.connector.sink")
	var err error
	if f.sent, err = meter.Int64Counter("livetiming.connector.message.sent",
		metric.WithDescription("Messages written to a sink"), metric.WithUnit("{message}")); err != nil {
		log.Error("Failed to register metric", "metric", "message.sent", "error", err)
	}
	if f.drops, err = meter.Int64Counter("livetiming.connector.message.dropped",
		metric.WithDescription("Messages dropped because a sink queue was full"), metric.WithUnit("{message}")); err != nil {
		log.Error("Failed to register metric", "metric", "message.dropped", "error", err)
	}
	if f.failure, err = meter.Int64Counter("livetiming.connector.sink.errors",
		metric.WithDescription("Failed sink writes"), metric.WithUnit("{batch}")); err != nil {
		log.Error("Failed to register metric", "metric", "sink.errors", "error", err)
	}
	return f
}

// Consume enqueues msg for every sink without blocking. A full queue drops
// the message for that sink only.
func (f *Fanout) Consume(msg model.LiveTimingMessage) {
	for _, l := range f.lanes {
		select {
		case l.queue <- msg:
		default:
			if l.dropped.Add(1) == 1 {
				l.log.Warn("Sink queue full, dropping messages", "category", msg.Category)
			}
			if f.drops != nil {
				f.drops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("sink", l.sink.Name())))
			}
		}
	}
}

// Dropped returns the number of messages dropped for the named sink.
func (f *Fanout) Dropped(name string) int64 {
	for _, l := range f.lanes {
		if l.sink.Name() == name {
			return l.dropped.Load()
		}
	}
	return 0
}

// Run drains every sink queue until ctx is cancelled, then writes whatever
// is still queued and closes the sinks.
func (f *Fanout) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range f.lanes {
		g.Go(func() error {
			f.drain(gctx, l)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(ctx.Err(), f.Close())
}

func (f *Fanout) drain(ctx context.Context, l *lane) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-l.queue:
			f.write(ctx, l, collect(l.queue, msg))
		}
	}
}

// collect takes first plus whatever else is already queued, up to maxBatch.
func collect(queue <-chan model.LiveTimingMessage, first model.LiveTimingMessage) []model.LiveTimingMessage {
	batch := []model.LiveTimingMessage{first}
	for len(batch) < maxBatch {
		select {
		case msg := <-queue:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (f *Fanout) write(ctx context.Context, l *lane, batch []model.LiveTimingMessage) {
	name := attribute.String("sink", l.sink.Name())
	if err := l.sink.Write(ctx, batch); err != nil {
		l.log.Warn("Sink write failed", "messages", len(batch), "error", err)
		if f.failure != nil {
			f.failure.Add(ctx, 1, metric.WithAttributes(name))
		}
		return
	}
	if f.sent != nil {
		f.sent.Add(ctx, int64(len(batch)), metric.WithAttributes(name))
	}
}

func (f *Fanout) flush(ctx context.Context, l *lane) {
	for {
		select {
		case msg := <-l.queue:
			f.write(ctx, l, collect(l.queue, msg))
		default:
			return
		}
	}
}

// Close flushes the queues and closes all sinks concurrently. It is safe to
// call more than once.
func (f *Fanout) Close() error {
	var err error
	f.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()

		err = workerpool.Run(ctx, f.lanes, len(f.lanes), func(ctx context.Context, l *lane) error {
			f.flush(ctx, l)
			if err := l.sink.Close(); err != nil {
				return fmt.Errorf("closing %s sink: %w", l.sink.Name(), err)
			}
			return nil
		})
	})
	return err
}
