package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/Sumatoshi-tech/defectscope"

// Providers holds the initialized observability providers.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes pending telemetry. Must be called before process exit.
	Shutdown func(ctx context.Context) error
}

// Option adjusts Init.
type Option func(*initOptions)

type initOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider makes Init use mp instead of building one, so that a
// Prometheus scrape endpoint and the run share instruments.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *initOptions) { o.meterProvider = mp }
}

type shutdownFunc func(ctx context.Context) error

// telemetry collects the providers Init builds along with their flush hooks.
type telemetry struct {
	tracer   trace.TracerProvider
	meter    metric.MeterProvider
	shutdown []shutdownFunc
}

func (t *telemetry) close(ctx context.Context) error {
	var errs []error

	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}

	return errors.Join(errs...)
}

// Init initializes tracing, metrics and structured logging. When
// OTLPEndpoint is empty the tracer and meter are no-ops.
func Init(cfg Config, opts ...Option) (Providers, error) {
	ctx := context.Background()

	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	tel, err := newTelemetry(ctx, cfg, o.meterProvider)
	if err != nil {
		return Providers{}, err
	}

	otel.SetTracerProvider(tel.tracer)
	otel.SetMeterProvider(tel.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeoutSec * time.Second
	}

	return Providers{
		Tracer: tel.tracer.Tracer(instrumentationName),
		Meter:  tel.meter.Meter(instrumentationName),
		Logger: buildLogger(cfg),
		Shutdown: func(shutdownCtx context.Context) error {
			deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeout)
			defer cancel()

			return tel.close(deadlineCtx)
		},
	}, nil
}

func newTelemetry(ctx context.Context, cfg Config, mp metric.MeterProvider) (*telemetry, error) {
	tel := &telemetry{
		tracer: nooptrace.NewTracerProvider(),
		meter:  mp,
	}

	if tel.meter == nil {
		tel.meter = noopmetric.NewMeterProvider()
	}

	if cfg.OTLPEndpoint == "" {
		return tel, nil
	}

	res, err := buildResource(cfg)
	if err != nil {
		return nil, err
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	tel.tracer = tp
	tel.shutdown = append(tel.shutdown, tp.Shutdown)

	if mp != nil {
		return tel, nil
	}

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create metric exporter: %w", err), tel.close(ctx))
	}

	smp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	tel.meter = smp
	tel.shutdown = append(tel.shutdown, smp.Shutdown)

	return tel, nil
}

func buildResource(cfg Config) (*resource.Resource, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.RunID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, cfg.RunID))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

// selectSampler samples root spans at SampleRatio and follows the parent
// decision otherwise. A ratio outside (0, 1) samples everything.
func selectSampler(cfg Config) sdktrace.Sampler {
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}
