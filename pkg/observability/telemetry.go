package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Resource attribute keys describing the ledger deployment.
const (
	AttrLedgerStore    = attribute.Key("ledger.store")
	AttrLedgerCurrency = attribute.Key("ledger.currency")
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Store is the persistence backend ("postgres" or "memory").
	Store string
	// Currency is the ledger's default currency code.
	Currency string

	OTLPEndpoint string // host:port of an OTLP/HTTP collector; empty disables export
	OTLPInsecure bool
	SamplingRate float64 // 0 means sample everything
}

// Provider owns the SDK providers and the ledger instruments built on them.
type Provider struct {
	TracerProvider     *trace.TracerProvider
	MeterProvider      *metric.MeterProvider
	PrometheusExporter *prometheus.Exporter
	Ledger             *LedgerMetrics
}

// InitTelemetry installs the tracer and meter providers globally and
// registers the ledger instruments against them.
func InitTelemetry(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := ledgerResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp, err := initTracing(ctx, res, cfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p := NewProvider(tp, mp)
	p.PrometheusExporter = promExporter
	return p, nil
}

// NewProvider wraps already-built SDK providers. Tests use it with a manual
// metric reader.
func NewProvider(tp *trace.TracerProvider, mp *metric.MeterProvider) *Provider {
	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		Ledger:         newLedgerMetrics(tp, mp),
	}
}

func ledgerResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	}
	if cfg.Store != "" {
		attrs = append(attrs, AttrLedgerStore.String(cfg.Store))
	}
	if cfg.Currency != "" {
		attrs = append(attrs, AttrLedgerCurrency.String(cfg.Currency))
	}
	// Empty schema URL inherits the default resource's.
	return resource.Merge(resource.Default(), resource.NewWithAttributes("", attrs...))
}

func initTracing(ctx context.Context, res *resource.Resource, cfg Config) (*trace.TracerProvider, error) {
	rate := cfg.SamplingRate
	if rate == 0 {
		rate = 1.0
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(rate))),
	)
	if cfg.OTLPEndpoint == "" {
		return tp, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}
	tp.RegisterSpanProcessor(trace.NewBatchSpanProcessor(exporter))
	return tp, nil
}

// Shutdown flushes pending spans and metrics, giving up after five seconds.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
