// Package telemetry wires OpenTelemetry for a calcsnap run.
//
// It is off unless telemetry.enabled is set (CALCSNAP_TELEMETRY_ENABLED=true).
// When on, spans go to stdout if telemetry.stdout is set, and metrics go to
// stdout and/or an OTLP/HTTP collector at telemetry.otlp-endpoint (falling
// back to OTEL_EXPORTER_OTLP_ENDPOINT).
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/calcsnap"

// Settings selects the exporters for Init.
type Settings struct {
	Enabled      bool
	Stdout       bool
	OTLPEndpoint string

	ServiceName string
	Version     string
}

var (
	enabled     bool
	shutdownFns []func(context.Context) error
)

// Enabled reports whether the last Init installed real providers.
func Enabled() bool {
	return enabled
}

// Init installs global providers for s. A disabled Settings installs no-ops.
func Init(ctx context.Context, s Settings) error {
	enabled = false
	if !s.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.ServiceName),
			semconv.ServiceVersionKey.String(s.Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if s.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("telemetry: stdout spans: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)

	readers, err := metricReaders(ctx, s)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		metricOpts = append(metricOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(metricOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, tp.Shutdown, mp.Shutdown)
	enabled = true
	return nil
}

// metricReaders builds one periodic reader per configured metric exporter.
// A run rarely outlives the interval, so most exports happen on Shutdown.
func metricReaders(ctx context.Context, s Settings) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if s.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metrics: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)))
	}
	if s.OTLPEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, s.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metrics: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)))
	}
	return readers, nil
}

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter from the global provider.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops the providers installed by Init. It is safe to
// call more than once.
func Shutdown(ctx context.Context) error {
	var err error
	for _, fn := range shutdownFns {
		err = errors.Join(err, fn(ctx))
	}
	shutdownFns = nil
	enabled = false
	return err
}
