// Package telemetry sets up OpenTelemetry tracing, metrics and log export and
// the Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ScopeName = "github.com/freekieb7/kiln"

type Options struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector as host:port. Empty disables export.
	Endpoint string
	Insecure bool
}

type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	// Logger is nil unless an endpoint is configured.
	Logger   *sdklog.LoggerProvider
	Registry *prometheus.Registry

	shutdown []func(context.Context) error
}

// Setup builds the providers and installs the tracer and meter providers
// globally. A Prometheus reader is always attached; OTLP exporters only when
// an endpoint is configured.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "kiln"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	p := &Providers{Registry: prometheus.NewRegistry()}

	promExporter, err := otelprometheus.New(otelprometheus.WithRegisterer(p.Registry))
	if err != nil {
		return nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
	}

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(promExporter)}
	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if opts.Endpoint != "" {
		traceExporter, err := otlptracegrpc.New(ctx, traceOptions(opts)...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter))

		metricExporter, err := otlpmetricgrpc.New(ctx, metricOptions(opts)...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

		logExporter, err := otlploggrpc.New(ctx, logOptions(opts)...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: log exporter: %w", err)
		}
		p.Logger = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		)
		p.shutdown = append(p.shutdown, p.Logger.Shutdown)
	}

	p.Tracer = sdktrace.NewTracerProvider(traceOpts...)
	p.Meter = sdkmetric.NewMeterProvider(meterOpts...)
	p.shutdown = append(p.shutdown, p.Tracer.Shutdown, p.Meter.Shutdown)

	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)

	return p, nil
}

// Shutdown flushes and stops every provider, joining their errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	p.shutdown = nil

	return errors.Join(errs...)
}

func traceOptions(opts Options) []otlptracegrpc.Option {
	o := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		o = append(o, otlptracegrpc.WithInsecure())
	}
	return o
}

func metricOptions(opts Options) []otlpmetricgrpc.Option {
	o := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		o = append(o, otlpmetricgrpc.WithInsecure())
	}
	return o
}

func logOptions(opts Options) []otlploggrpc.Option {
	o := []otlploggrpc.Option{otlploggrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		o = append(o, otlploggrpc.WithInsecure())
	}
	return o
}
