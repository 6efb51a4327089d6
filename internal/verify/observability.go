package verify

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider    *sdktrace.TracerProvider
	ProbeCounter     metric.Int64Counter
	ProbeDuration    metric.Int64Histogram
	ProvisionCounter metric.Int64Counter
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "agentsh-verify"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Debug("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	probeCounter, _ := meter.Int64Counter("verify_probe_total")
	probeDuration, _ := meter.Int64Histogram("verify_probe_duration_ms")
	provisionCounter, _ := meter.Int64Counter("verify_provision_total")
	return &Observability{
		Tracer:           tracer,
		Meter:            meter,
		traceProvider:    tp,
		ProbeCounter:     probeCounter,
		ProbeDuration:    probeDuration,
		ProvisionCounter: provisionCounter,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

func (o *Observability) MarkProbe(ctx context.Context, category string, verdict Verdict, durationMS int64) {
	if o == nil {
		return
	}
	o.ProbeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("verdict", string(verdict)),
	))
	o.ProbeDuration.Record(ctx, durationMS, metric.WithAttributes(
		attribute.String("category", category),
	))
}

func (o *Observability) MarkProvision(ctx context.Context, resourceKind, outcome string) {
	if o == nil {
		return
	}
	o.ProvisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resourceKind),
		attribute.String("outcome", outcome),
	))
}

// StartSpan opens a span on the configured tracer, falling back to the
// global (no-op by default) tracer so callers never see a nil span.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	tracer := otel.Tracer("agentsh-verify")
	if o != nil && o.Tracer != nil {
		tracer = o.Tracer
	}
	return tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}
