// Package telemetry installs the global OpenTelemetry meter provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc flushes pending exports and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// Setup registers a meter provider that writes every interval to w. The
// instruments created by the hub, the supervisor and the sinks report
// through it.
func Setup(w io.Writer, interval time.Duration) (ShutdownFunc, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
