// Package telemetry sets up logging and OpenTelemetry metrics for agentdesk.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const meterName = "github.com/user/agentdesk"

// MetricsOptions configures the metrics exporter.
type MetricsOptions struct {
	Enabled  bool
	File     string
	Interval time.Duration
	Version  string
}

// Metrics records registry activity. It satisfies registry.Recorder.
type Metrics struct {
	mutations        metric.Int64Counter
	listenerFailures metric.Int64Counter
	sessions         metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	mutations, err := meter.Int64Counter("agentdesk.registry.mutations",
		metric.WithDescription("Session registry mutations by operation"))
	if err != nil {
		return nil, fmt.Errorf("create mutations counter: %w", err)
	}
	failures, err := meter.Int64Counter("agentdesk.registry.listener_failures",
		metric.WithDescription("Registry listeners that panicked"))
	if err != nil {
		return nil, fmt.Errorf("create listener failures counter: %w", err)
	}
	sessions, err := meter.Int64UpDownCounter("agentdesk.registry.sessions",
		metric.WithDescription("Live sessions in the registry"))
	if err != nil {
		return nil, fmt.Errorf("create sessions gauge: %w", err)
	}
	return &Metrics{mutations: mutations, listenerFailures: failures, sessions: sessions}, nil
}

// Mutated counts a mutation and applies its change to the live session
// count.
func (m *Metrics) Mutated(op string, delta int) {
	ctx := context.Background()
	m.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	if delta != 0 {
		m.sessions.Add(ctx, int64(delta))
	}
}

// ListenerFailed counts a panicking listener.
func (m *Metrics) ListenerFailed(op string) {
	m.listenerFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}

// SetupMetrics returns Metrics backed by a periodic stdout exporter writing to
// a rotated file when enabled, or by the global (no-op by default) meter
// provider otherwise. shutdown flushes and closes the exporter.
func SetupMetrics(ctx context.Context, opts MetricsOptions) (m *Metrics, shutdown func(), err error) {
	if !opts.Enabled {
		m, err := NewMetrics(otel.GetMeterProvider().Meter(meterName))
		return m, func() {}, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("agentdesk"),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(file))
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	m, err = NewMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, nil, err
	}

	shutdown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown meter provider", "error", err)
		}
		if err := file.Close(); err != nil {
			slog.Error("failed to close metrics file", "error", err)
		}
	}
	return m, shutdown, nil
}
