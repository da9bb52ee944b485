package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	Deliveries       metric.Int64Counter
	DeliveryDuration metric.Float64Histogram
	RecordsWritten   metric.Int64Counter
	Published        metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	deliveries, err := meter.Int64Counter(
		"pipeline.deliveries.total",
		metric.WithDescription("Queue deliveries by topic and outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"pipeline.delivery.duration",
		metric.WithDescription("Time from receipt to ack or requeue"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	written, err := meter.Int64Counter(
		"pipeline.records.written",
		metric.WithDescription("Records committed per sink"),
	)
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter(
		"pipeline.messages.published",
		metric.WithDescription("Messages published per topic"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Deliveries:       deliveries,
		DeliveryDuration: duration,
		RecordsWritten:   written,
		Published:        published,
	}, nil
}

// InitMetrics builds the instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(ServiceName))
}

func (m *Metrics) RecordDelivery(ctx context.Context, topic, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	)
	m.Deliveries.Add(ctx, 1, attrs)
	m.DeliveryDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordWritten(ctx context.Context, sink, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsWritten.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) RecordPublished(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.Published.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}
