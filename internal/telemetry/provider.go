package telemetry

import (
	"context"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitProvider wires a Prometheus exporter into an OTel MeterProvider and
// registers it as the global provider, so DefaultMetrics() and any other
// package calling otel.GetMeterProvider() picks it up. Trimmed to metrics
// only: the bridge has no tracing spans to export.
//
// Returns a shutdown function to call from main() on graceful exit.
func InitProvider(ctx context.Context) (shutdown func(context.Context) error, err error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
