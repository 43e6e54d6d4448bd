package narrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	synthesized metric.Int64Counter
	failed      metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	synthesized, err := meter.Int64Counter("narrator.chunks.synthesized", metric.WithDescription("Chunks synthesized successfully"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("narrator.chunks.failed", metric.WithDescription("Chunks whose synthesis failed"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("narrator.chunk.duration",
		metric.WithDescription("Wall time spent synthesizing one chunk"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &metrics{synthesized: synthesized, failed: failed, duration: duration}, nil
}

func noopMetrics() *metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

func (m *metrics) observe(ctx context.Context, mode string, seconds float64, ok bool) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.duration.Record(ctx, seconds, attrs)
	if ok {
		m.synthesized.Add(ctx, 1, attrs)
	} else {
		m.failed.Add(ctx, 1, attrs)
	}
}
