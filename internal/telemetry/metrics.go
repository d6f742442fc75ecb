// Package telemetry provides the bridge's OpenTelemetry metrics: call
// counts, latencies, and connection gauges for both the Service and
// Endpoint layers, exported via a Prometheus exporter bridge so they can be
// scraped over /metrics. Grounded on
// MrWong99-glyphoxa/internal/observe/metrics.go, renamed to this domain's
// instruments.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/nextlevelbuilder/mcpbridge"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds every OpenTelemetry instrument the bridge records against.
// All fields are safe for concurrent use.
type Metrics struct {
	ToolCallDuration metric.Float64Histogram
	ToolCalls        metric.Int64Counter
	ToolCallErrors   metric.Int64Counter

	ServiceReconnects metric.Int64Counter
	ServicePingFails  metric.Int64Counter
	ConnectedServices metric.Int64UpDownCounter

	EndpointReconnects metric.Int64Counter
	EndpointHeartbeatMisses metric.Int64Counter
	ConnectedEndpoints metric.Int64UpDownCounter
}

// NewMetrics creates every instrument against mp. Returns an error if any
// instrument fails to register.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ToolCallDuration, err = m.Float64Histogram("mcpbridge.tool_call.duration",
		metric.WithDescription("Latency of a downstream tool call, end to end."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("mcpbridge.tool.calls",
		metric.WithDescription("Total tool invocations by tool and service."),
	); err != nil {
		return nil, err
	}
	if met.ToolCallErrors, err = m.Int64Counter("mcpbridge.tool.errors",
		metric.WithDescription("Total tool invocation failures by error code."),
	); err != nil {
		return nil, err
	}
	if met.ServiceReconnects, err = m.Int64Counter("mcpbridge.service.reconnects",
		metric.WithDescription("Total reconnect attempts by downstream service."),
	); err != nil {
		return nil, err
	}
	if met.ServicePingFails, err = m.Int64Counter("mcpbridge.service.ping_failures",
		metric.WithDescription("Total liveness ping failures by downstream service."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedServices, err = m.Int64UpDownCounter("mcpbridge.services.connected",
		metric.WithDescription("Number of downstream services currently in the Connected state."),
	); err != nil {
		return nil, err
	}
	if met.EndpointReconnects, err = m.Int64Counter("mcpbridge.endpoint.reconnects",
		metric.WithDescription("Total reconnect attempts by upstream endpoint."),
	); err != nil {
		return nil, err
	}
	if met.EndpointHeartbeatMisses, err = m.Int64Counter("mcpbridge.endpoint.heartbeat_misses",
		metric.WithDescription("Total missed heartbeat pongs by upstream endpoint."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedEndpoints, err = m.Int64UpDownCounter("mcpbridge.endpoints.connected",
		metric.WithDescription("Number of upstream endpoints currently in the Connected state."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics instance, creating it
// against otel.GetMeterProvider() on first use. Panics if instrument
// creation fails, which should not happen against the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("telemetry: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordToolCall records one completed tool call's latency, outcome, and
// per-error-code counter.
func (m *Metrics) RecordToolCall(ctx context.Context, service, tool string, seconds float64, errCode string) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("tool", tool),
	)
	m.ToolCallDuration.Record(ctx, seconds, attrs)
	m.ToolCalls.Add(ctx, 1, attrs)
	if errCode != "" {
		m.ToolCallErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("tool", tool),
			attribute.String("code", errCode),
		))
	}
}

// RecordServiceReconnect records one reconnect attempt for a downstream service.
func (m *Metrics) RecordServiceReconnect(ctx context.Context, service string) {
	m.ServiceReconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
}

// RecordServicePingFailure records one failed liveness ping.
func (m *Metrics) RecordServicePingFailure(ctx context.Context, service string) {
	m.ServicePingFails.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
}

// SetServiceConnected adjusts the connected-service gauge by delta (+1 on
// connect, -1 on disconnect/fail).
func (m *Metrics) SetServiceConnected(ctx context.Context, delta int64) {
	m.ConnectedServices.Add(ctx, delta)
}

// RecordEndpointReconnect records one reconnect attempt for an upstream endpoint.
func (m *Metrics) RecordEndpointReconnect(ctx context.Context, url string) {
	m.EndpointReconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", url)))
}

// RecordEndpointHeartbeatMiss records one missed heartbeat pong.
func (m *Metrics) RecordEndpointHeartbeatMiss(ctx context.Context, url string) {
	m.EndpointHeartbeatMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", url)))
}

// SetEndpointConnected adjusts the connected-endpoint gauge by delta.
func (m *Metrics) SetEndpointConnected(ctx context.Context, delta int64) {
	m.ConnectedEndpoints.Add(ctx, delta)
}
