// Package observability provides OpenTelemetry tracing and RED metrics for the
// turn pipeline.
//
// A disabled Provider is fully usable: spans and instruments come from the
// global (no-op unless configured) providers, so callers never branch on
// whether telemetry is on.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

const instrumentationName = "github.com/Mindburn-Labs/turnkernel"

// Attribute keys recorded on turn spans and metrics.
const (
	AttrMove       = attribute.Key("turnkernel.move")
	AttrReasonCode = attribute.Key("turnkernel.reason_code")
	AttrFamily     = attribute.Key("turnkernel.reason_family")
	AttrFailClosed = attribute.Key("turnkernel.fail_closed")
	AttrCapability = attribute.Key("turnkernel.capability")
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // host:port of an OTLP gRPC collector
	SampleRate     float64 // 0.0 to 1.0
	BatchTimeout   time.Duration
	ExportInterval time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns disabled-by-default settings pointed at a local collector.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "turnkernel",
		ServiceVersion: contracts.SchemaVersion,
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		ExportInterval: 15 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider owns the SDK providers (when exporting) and the turn instruments.
type Provider struct {
	cfg    *Config
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer
	meter  metric.Meter
	logger *slog.Logger

	turns     metric.Int64Counter
	failures  metric.Int64Counter
	latency   metric.Float64Histogram
	inFlight  metric.Int64UpDownCounter
	decisions metric.Int64Counter
	refusals  metric.Int64Counter
}

// New creates a provider. A nil config uses DefaultConfig. When telemetry is
// disabled no exporter is created but instruments are still registered on
// the global meter so that recording calls stay valid.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Provider{cfg: cfg, logger: slog.Default().With("component", "observability")}

	if cfg.Enabled {
		if err := p.export(ctx); err != nil {
			return nil, fmt.Errorf("observability: %w", err)
		}
		p.logger.InfoContext(ctx, "exporting telemetry",
			"service", cfg.ServiceName,
			"endpoint", cfg.OTLPEndpoint,
			"sample_rate", cfg.SampleRate,
		)
	}

	p.tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	p.meter = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	if err := p.instruments(); err != nil {
		return nil, fmt.Errorf("observability: instruments: %w", err)
	}
	return p, nil
}

// export installs OTLP gRPC trace and metric pipelines as the global providers.
func (p *Provider) export(ctx context.Context) error {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.cfg.ServiceName),
		semconv.ServiceVersion(p.cfg.ServiceVersion),
		semconv.DeploymentEnvironment(p.cfg.Environment),
	))
	if err != nil {
		return fmt.Errorf("resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.cfg.OTLPEndpoint)}
	if p.cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}
	points, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return fmt.Errorf("metric exporter: %w", err)
	}

	interval := p.cfg.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spans, sdktrace.WithBatchTimeout(p.cfg.BatchTimeout)),
		sdktrace.WithSampler(sampler(p.cfg.SampleRate)),
	)
	p.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points, sdkmetric.WithInterval(interval))),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func (p *Provider) instruments() error {
	var err error
	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = p.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return c
	}

	p.turns = counter("turnkernel.turns.total", "Total number of turns processed", "{turn}")
	p.failures = counter("turnkernel.errors.total", "Turns that ended in an internal error", "{error}")
	p.decisions = counter("turnkernel.decisions.total", "Resolved next moves by move and reason code", "{decision}")
	p.refusals = counter("turnkernel.refusals.total", "Capability refusals by reason family", "{refusal}")
	if err != nil {
		return err
	}

	if p.latency, err = p.meter.Float64Histogram("turnkernel.turn.duration",
		metric.WithDescription("Turn processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	); err != nil {
		return err
	}
	p.inFlight, err = p.meter.Int64UpDownCounter("turnkernel.turns.active",
		metric.WithDescription("Turns currently in flight"),
		metric.WithUnit("{turn}"),
	)
	return err
}

// Shutdown flushes and stops the exporting providers, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.logger.ErrorContext(ctx, "telemetry shutdown", "error", err)
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// Tracer returns the turn tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Meter returns the turn meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// StartSpan starts a new span with the given name.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, opts...)
}

// RecordDecision counts a resolved move and tags the current span with it.
func (p *Provider) RecordDecision(ctx context.Context, move contracts.Move, code reasoncode.Code, failClosed bool) {
	attrs := []attribute.KeyValue{
		AttrMove.String(string(move)),
		AttrReasonCode.String(code.Name()),
		AttrFailClosed.Bool(failClosed),
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
	p.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRefusal counts a refusal by capability and reason family.
func (p *Provider) RecordRefusal(ctx context.Context, r *contracts.Refusal) {
	if r == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrCapability.String(string(r.Capability)),
		AttrReasonCode.String(r.ReasonCode.Name()),
		AttrFamily.String(r.ReasonCode.Family().String()),
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
	p.refusals.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// TrackOperation opens a span and the turn counters for one operation. The
// returned func must be called exactly once with the operation's error.
// Refusals are counted as refusals; only other errors mark the span.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	set := metric.WithAttributes(attrs...)

	ctx, span := p.StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
	p.inFlight.Add(ctx, 1, set)
	p.turns.Add(ctx, 1, set)

	return ctx, func(err error) {
		defer span.End()
		p.inFlight.Add(ctx, -1, set)
		p.latency.Record(ctx, time.Since(start).Seconds(), set)
		if err == nil {
			return
		}
		if r, ok := contracts.AsRefusal(err); ok {
			p.RecordRefusal(ctx, r)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		failed := append(append([]attribute.KeyValue(nil), attrs...), attribute.String("error.type", fmt.Sprintf("%T", err)))
		p.failures.Add(ctx, 1, metric.WithAttributes(failed...))
	}
}
