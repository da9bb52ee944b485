package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/embedding"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

// Index is the search-index sink.
type Index interface {
	EnsureSchema(ctx context.Context) error
	IndexChunks(ctx context.Context, records []worker.ChunkRecord) error
	IndexDrawing(ctx context.Context, record worker.DrawingRecord) error
}

// Table is the relational sink.
type Table interface {
	EnsureSchema(ctx context.Context) error
	InsertChunks(ctx context.Context, records []worker.ChunkRecord) error
	InsertDrawing(ctx context.Context, record worker.DrawingRecord) error
}

// Writer commits records to the search index and/or the relational table.
// Each sink's schema is provisioned on its first write; a failed provisioning
// is attempted again on the next write. Writer never retries a write.
type Writer struct {
	index   Index
	table   Table
	metrics *telemetry.Metrics

	indexSchema schemaGate
	tableSchema schemaGate
}

// New returns a Writer. A nil sink is skipped.
func New(index Index, table Table, metrics *telemetry.Metrics) *Writer {
	return &Writer{index: index, table: table, metrics: metrics}
}

func (w *Writer) WriteChunks(ctx context.Context, records []worker.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := finite(r.ChunkEmbedding, r.ChunkEmbeddingReduced, r.ImageDescriptionEmbedding, r.ImageDescriptionEmbeddingReduced); err != nil {
			return fmt.Errorf("%w: chunk %d: %v", apperr.ErrSinkWrite, r.ChunkID, err)
		}
	}

	if w.index != nil {
		if err := w.indexSchema.ensure(ctx, w.index.EnsureSchema); err != nil {
			return fmt.Errorf("%w: provision index: %v", apperr.ErrSinkWrite, err)
		}
		if err := w.index.IndexChunks(ctx, records); err != nil {
			return fmt.Errorf("%w: index: %v", apperr.ErrSinkWrite, err)
		}
		w.metrics.RecordWritten(ctx, "index", "chunk", len(records))
	}

	if w.table != nil {
		if err := w.tableSchema.ensure(ctx, w.table.EnsureSchema); err != nil {
			return fmt.Errorf("%w: provision table: %v", apperr.ErrSinkWrite, err)
		}
		if err := w.table.InsertChunks(ctx, records); err != nil {
			return fmt.Errorf("%w: table: %v", apperr.ErrSinkWrite, err)
		}
		w.metrics.RecordWritten(ctx, "table", "chunk", len(records))
	}

	slog.DebugContext(ctx, "chunks written", "count", len(records))
	return nil
}

func (w *Writer) WriteDrawing(ctx context.Context, r worker.DrawingRecord) error {
	if err := finite(r.TextualInfoEmbedding, r.TextualInfoEmbeddingReduced, r.ImageDescriptionEmbedding, r.ImageDescriptionEmbeddingReduced); err != nil {
		return fmt.Errorf("%w: drawing %s: %v", apperr.ErrSinkWrite, r.DrawingID, err)
	}

	if w.index != nil {
		if err := w.indexSchema.ensure(ctx, w.index.EnsureSchema); err != nil {
			return fmt.Errorf("%w: provision index: %v", apperr.ErrSinkWrite, err)
		}
		if err := w.index.IndexDrawing(ctx, r); err != nil {
			return fmt.Errorf("%w: index: %v", apperr.ErrSinkWrite, err)
		}
		w.metrics.RecordWritten(ctx, "index", "drawing", 1)
	}

	if w.table != nil {
		if err := w.tableSchema.ensure(ctx, w.table.EnsureSchema); err != nil {
			return fmt.Errorf("%w: provision table: %v", apperr.ErrSinkWrite, err)
		}
		if err := w.table.InsertDrawing(ctx, r); err != nil {
			return fmt.Errorf("%w: table: %v", apperr.ErrSinkWrite, err)
		}
		w.metrics.RecordWritten(ctx, "table", "drawing", 1)
	}
	return nil
}

var errNonFinite = errors.New("embedding contains a non-finite value")

// finite rejects NaN and Inf, which neither sink can serialize.
func finite(vectors ...[]float32) error {
	for _, v := range vectors {
		if !embedding.Finite(v) {
			return errNonFinite
		}
	}
	return nil
}

// schemaGate runs a provisioning func until it first succeeds.
type schemaGate struct {
	mu   sync.Mutex
	done bool
}

func (g *schemaGate) ensure(ctx context.Context, provision func(context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return nil
	}
	if err := provision(ctx); err != nil {
		return err
	}
	g.done = true
	return nil
}
