package worker

import (
	"context"
	"log/slog"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/logger"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
)

// PageConsumer indexes PageMessages: Received, Built, Written, Acknowledged.
type PageConsumer struct {
	delivery
	builder *Builder
	writer  RecordWriter
}

func NewPageConsumer(b *Builder, w RecordWriter, jobs JobRepository, m *telemetry.Metrics) *PageConsumer {
	c := &PageConsumer{builder: b, writer: w}
	c.delivery = delivery{
		topic:   config.TopicPageMetadata,
		handler: "page-indexer",
		process: c.Process,
		jobs:    jobs,
		metrics: m,
	}
	return c
}

func (c *PageConsumer) Process(ctx context.Context, body []byte) (Outcome, error) {
	var msg PageMessage
	if err := decode(body, &msg); err != nil {
		return OutcomePoison, err
	}
	ctx = logger.WithAttrs(ctx,
		slog.String("origin_path", msg.OriginPath),
		slog.Int("page_number", msg.PageNumber),
	)

	records, err := c.builder.BuildPage(ctx, msg)
	if err != nil {
		return OutcomeRequeued, err
	}

	if err := c.writer.WriteChunks(ctx, records); err != nil {
		return OutcomeRequeued, err
	}

	slog.InfoContext(ctx, "page indexed", "chunks", len(records))
	return OutcomeAcked, nil
}
