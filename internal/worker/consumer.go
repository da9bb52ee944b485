package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/job"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/logger"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/middleware"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
)

// Outcome is the terminal state of one delivery.
type Outcome string

const (
	// OutcomeAcked: built, written and finished.
	OutcomeAcked Outcome = "acked"
	// OutcomePoison: undecodable, finished without processing.
	OutcomePoison Outcome = "poison"
	// OutcomeRequeued: build or write failed, left for redelivery.
	OutcomeRequeued Outcome = "requeued"
)

var tracer = otel.Tracer("worker")

type processFunc func(ctx context.Context, body []byte) (Outcome, error)

// delivery adapts a processFunc to nsq's handler contract with manual
// acknowledgment: FIN only on success or poison, REQ on every other failure.
type delivery struct {
	topic   string
	handler string
	process processFunc
	jobs    JobRepository
	metrics *telemetry.Metrics
}

func (d *delivery) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()

	ctx := middleware.WithCorrelationID(context.Background(), string(m.ID[:]))
	ctx = logger.WithAttrs(ctx,
		slog.String("topic", d.topic),
		slog.Int("attempt", int(m.Attempts)),
	)
	ctx, span := tracer.Start(ctx, d.handler)
	defer span.End()
	span.SetAttributes(attribute.String("topic", d.topic), attribute.Int("attempt", int(m.Attempts)))

	start := time.Now()
	outcome, err := d.process(ctx, m.Body)

	switch outcome {
	case OutcomeAcked:
		m.Finish()
		slog.InfoContext(ctx, "message acknowledged", "duration", time.Since(start))
	case OutcomePoison:
		slog.ErrorContext(ctx, "poison message: acknowledging without processing", "error", err)
		d.deadLetter(ctx, m, err)
		m.Finish()
	default:
		outcome = OutcomeRequeued
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Kind(err))
		slog.ErrorContext(ctx, "message failed: leaving for redelivery", "error", err, "kind", apperr.Kind(err))
		m.Requeue(-1)
	}

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	d.metrics.RecordDelivery(ctx, d.topic, string(outcome), time.Since(start))
	return nil
}

// LogFailedMessage is called by nsq instead of HandleMessage once a message
// exceeds the consumer's MaxAttempts. nsq finishes the message afterwards.
func (d *delivery) LogFailedMessage(m *nsq.Message) {
	ctx := middleware.WithCorrelationID(context.Background(), string(m.ID[:]))
	slog.ErrorContext(ctx, "message exceeded max attempts", "topic", d.topic, "attempts", m.Attempts)
	d.deadLetter(ctx, m, errors.New("max attempts exceeded"))
	d.metrics.RecordDelivery(ctx, d.topic, "dead_lettered", 0)
}

func (d *delivery) deadLetter(ctx context.Context, m *nsq.Message, cause error) {
	if d.jobs == nil {
		return
	}
	j := &job.Job{
		Topic:    d.topic,
		Handler:  d.handler,
		Payload:  m.Body,
		Error:    errorString(cause),
		Attempts: int(m.Attempts),
	}
	if err := d.jobs.Save(ctx, j); err != nil {
		slog.ErrorContext(ctx, "failed to save dead letter", "error", err)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
