// Package metrics exposes engine counters through the OpenTelemetry metric
// API with a Prometheus exporter. A zero-value Collector is a no-op, so
// callers never nil-check before recording.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Collector manages all engine metrics.
type Collector struct {
	provider *sdkmetric.MeterProvider

	requests       metric.Int64Counter
	errors         metric.Int64Counter
	requestLatency metric.Float64Histogram

	llmRequests metric.Int64Counter
	llmLatency  metric.Float64Histogram

	toolExecutions metric.Int64Counter
	toolDuration   metric.Float64Histogram

	cacheLookups metric.Int64Counter
}

// Nop returns a collector that records nothing.
func Nop() *Collector { return &Collector{} }

// NewCollector builds the collector and registers the Prometheus exporter.
func NewCollector() (*Collector, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("reagent")

	c := &Collector{provider: provider}

	if c.requests, err = meter.Int64Counter(
		"reagent.requests.total",
		metric.WithDescription("Total predict requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}

	if c.errors, err = meter.Int64Counter(
		"reagent.errors.total",
		metric.WithDescription("Total request errors by kind"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}

	if c.requestLatency, err = meter.Float64Histogram(
		"reagent.request.latency",
		metric.WithDescription("End-to-end request latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create request latency histogram: %w", err)
	}

	if c.llmRequests, err = meter.Int64Counter(
		"reagent.llm.requests.total",
		metric.WithDescription("Total LLM calls by status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create llm requests counter: %w", err)
	}

	if c.llmLatency, err = meter.Float64Histogram(
		"reagent.llm.latency",
		metric.WithDescription("LLM call latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create llm latency histogram: %w", err)
	}

	if c.toolExecutions, err = meter.Int64Counter(
		"reagent.tool.executions.total",
		metric.WithDescription("Total tool executions by tool, source and status"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return nil, fmt.Errorf("create tool executions counter: %w", err)
	}

	if c.toolDuration, err = meter.Float64Histogram(
		"reagent.tool.duration",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create tool duration histogram: %w", err)
	}

	if c.cacheLookups, err = meter.Int64Counter(
		"reagent.cache.lookups.total",
		metric.WithDescription("Request cache lookups by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, fmt.Errorf("create cache lookups counter: %w", err)
	}

	return c, nil
}

// Handler returns the Prometheus scrape handler for mounting at /metrics.
func (c *Collector) Handler() http.Handler {
	return promclient.Handler()
}

// Shutdown flushes the meter provider.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}
	return c.provider.Shutdown(ctx)
}

// RecordRequest records a completed predict request.
func (c *Collector) RecordRequest(ctx context.Context, outcome string, latency time.Duration) {
	if c.requests == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	c.requests.Add(ctx, 1, attrs)
	c.requestLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordError counts a request error by kind.
func (c *Collector) RecordError(ctx context.Context, kind string) {
	if c.errors == nil {
		return
	}
	c.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordLLMCall records one model invocation.
func (c *Collector) RecordLLMCall(ctx context.Context, model, status string, latency time.Duration) {
	if c.llmRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	c.llmRequests.Add(ctx, 1, attrs)
	c.llmLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordToolExecution records one tool run.
func (c *Collector) RecordToolExecution(ctx context.Context, tool, source, status string, duration time.Duration) {
	if c.toolExecutions == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("source", source),
		attribute.String("status", status),
	)
	c.toolExecutions.Add(ctx, 1, attrs)
	c.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheLookup counts a request cache hit or miss.
func (c *Collector) RecordCacheLookup(ctx context.Context, hit bool) {
	if c.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
