package worker

import (
	"context"
	"log/slog"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/logger"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
)

// DrawingConsumer indexes DrawingMessages, one record per message.
type DrawingConsumer struct {
	delivery
	builder *Builder
	writer  RecordWriter
}

func NewDrawingConsumer(b *Builder, w RecordWriter, jobs JobRepository, m *telemetry.Metrics) *DrawingConsumer {
	c := &DrawingConsumer{builder: b, writer: w}
	c.delivery = delivery{
		topic:   config.TopicDrawingMetadata,
		handler: "drawing-indexer",
		process: c.Process,
		jobs:    jobs,
		metrics: m,
	}
	return c
}

func (c *DrawingConsumer) Process(ctx context.Context, body []byte) (Outcome, error) {
	var msg DrawingMessage
	if err := decode(body, &msg); err != nil {
		return OutcomePoison, err
	}
	ctx = logger.WithAttrs(ctx, slog.String("drawing_id", msg.DrawingID))

	record, err := c.builder.BuildDrawing(ctx, msg)
	if err != nil {
		return OutcomeRequeued, err
	}

	if err := c.writer.WriteDrawing(ctx, record); err != nil {
		return OutcomeRequeued, err
	}

	slog.InfoContext(ctx, "drawing indexed", "object_id", record.ObjectID.String())
	return OutcomeAcked, nil
}
