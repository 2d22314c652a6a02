package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metrics
type Metrics struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	// Routing API metrics
	QuoteRequests    metric.Int64Counter
	QuoteDuration    metric.Float64Histogram
	QuotesSuperseded metric.Int64Counter
	PriceImpactBPS   metric.Int64Histogram

	// Chain read metrics
	RPCCalls          metric.Int64Counter
	RPCDuration       metric.Float64Histogram
	RPCEndpointHealth metric.Int64Gauge

	// Calldata built per kind (remove, increase, swap)
	CalldataBuilt metric.Int64Counter

	CacheRequests       metric.Int64Counter
	CircuitBreakerState metric.Int64Gauge
	Errors              metric.Int64Counter
}

// MetricsOption configures optional exporters
type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	otlpEndpoint string
}

// WithOTLPEndpoint pushes metrics to an OTLP gRPC collector in addition to
// the Prometheus pull endpoint. Empty disables the push exporter.
func WithOTLPEndpoint(endpoint string) MetricsOption {
	return func(o *metricsOptions) { o.otlpEndpoint = endpoint }
}

// NewMetrics creates a new Metrics instance. When disabled every instrument
// is a no-op so callers never need nil checks.
func NewMetrics(serviceName string, enabled bool, opts ...MetricsOption) (*Metrics, error) {
	if !enabled {
		m := &Metrics{meter: noop.NewMeterProvider().Meter(serviceName)}
		if err := m.initMetrics(); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		return m, nil
	}

	var o metricsOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// registers with the default Prometheus registry served by Handler
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	}
	if o.otlpEndpoint != "" {
		otlpExp, err := otlpmetricgrpc.New(
			context.Background(),
			otlpmetricgrpc.WithEndpoint(o.otlpEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlpExp)))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)

	m := &Metrics{
		meter:    provider.Meter(serviceName),
		provider: provider,
	}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// NewNopMetrics returns metrics that record nothing.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics("nop", false)
	return m
}

// initMetrics initializes all metric instruments
func (m *Metrics) initMetrics() error {
	var err error

	m.QuoteRequests, err = m.meter.Int64Counter(
		"clmm.quote.requests",
		metric.WithDescription("Routing API quote requests by status"),
	)
	if err != nil {
		return err
	}

	m.QuoteDuration, err = m.meter.Float64Histogram(
		"clmm.quote.duration",
		metric.WithDescription("Routing API quote latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.QuotesSuperseded, err = m.meter.Int64Counter(
		"clmm.quote.superseded",
		metric.WithDescription("Quote fetches cancelled or dropped because newer input arrived"),
	)
	if err != nil {
		return err
	}

	m.PriceImpactBPS, err = m.meter.Int64Histogram(
		"clmm.quote.price_impact",
		metric.WithDescription("Absolute price impact of analyzed quotes in basis points"),
		metric.WithUnit("bp"),
	)
	if err != nil {
		return err
	}

	m.RPCCalls, err = m.meter.Int64Counter(
		"clmm.rpc.calls",
		metric.WithDescription("Contract reads by method and status"),
	)
	if err != nil {
		return err
	}

	m.RPCDuration, err = m.meter.Float64Histogram(
		"clmm.rpc.duration",
		metric.WithDescription("Contract read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.RPCEndpointHealth, err = m.meter.Int64Gauge(
		"clmm.rpc.endpoint.health",
		metric.WithDescription("RPC endpoint health status (1=healthy, 0=unhealthy)"),
	)
	if err != nil {
		return err
	}

	m.CalldataBuilt, err = m.meter.Int64Counter(
		"clmm.calldata.built",
		metric.WithDescription("Unsigned transactions encoded"),
	)
	if err != nil {
		return err
	}

	m.CacheRequests, err = m.meter.Int64Counter(
		"clmm.cache.requests",
		metric.WithDescription("Token metadata cache requests (hit/miss) per layer"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"clmm.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"clmm.errors",
		metric.WithDescription("Total errors encountered"),
	)
	return err
}

// RecordQuote records a routing API call
func (m *Metrics) RecordQuote(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.QuoteRequests.Add(ctx, 1, attrs)
	m.QuoteDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordQuoteSuperseded records a quote result that was never delivered
func (m *Metrics) RecordQuoteSuperseded(ctx context.Context) {
	m.QuotesSuperseded.Add(ctx, 1)
}

// RecordPriceImpact records the absolute impact of an analyzed quote
func (m *Metrics) RecordPriceImpact(ctx context.Context, bps int64, severity string) {
	if bps < 0 {
		bps = -bps
	}
	m.PriceImpactBPS.Record(ctx, bps, metric.WithAttributes(attribute.String("severity", severity)))
}

// RecordRPCCall records a contract read
func (m *Metrics) RecordRPCCall(ctx context.Context, method, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	)
	m.RPCCalls.Add(ctx, 1, attrs)
	m.RPCDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordRPCEndpointHealth records RPC endpoint health status
func (m *Metrics) RecordRPCEndpointHealth(ctx context.Context, url string, healthy bool) {
	val := int64(0)
	if healthy {
		val = 1
	}
	m.RPCEndpointHealth.Record(ctx, val, metric.WithAttributes(attribute.String("url", url)))
}

// RecordCalldata records an encoded transaction
func (m *Metrics) RecordCalldata(ctx context.Context, kind string, chainID uint64) {
	m.CalldataBuilt.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int64("chain_id", int64(chainID)),
	))
}

// RecordCacheRequest records a cache lookup on one layer
func (m *Metrics) RecordCacheRequest(ctx context.Context, layer string, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.CacheRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("status", status),
	))
}

// SetCircuitBreakerState sets circuit breaker state
// 0 = closed, 1 = open, 2 = half-open
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, service string, state int64) {
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("service", service)))
}

// RecordError records an error
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", errorType)))
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// Handler returns the HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
