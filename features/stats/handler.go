package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/middleware"
)

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type IndexCounter interface {
	Count(ctx context.Context, class string) (int, error)
	PageClass() string
	DrawingClass() string
}

type TableCounter interface {
	CountChunks(ctx context.Context) (int, error)
	CountDrawings(ctx context.Context) (int, error)
}

type Handler struct {
	jobRepo JobRepo
	index   IndexCounter
	table   TableCounter
}

// NewHandler accepts a nil index or table when that sink is disabled; its
// counts are then omitted.
func NewHandler(j JobRepo, index IndexCounter, table TableCounter) *Handler {
	return &Handler{jobRepo: j, index: index, table: table}
}

type SinkCounts struct {
	Chunks   int `json:"chunks"`
	Drawings int `json:"drawings"`
}

type StatsResponse struct {
	Index      *SinkCounts `json:"index,omitempty"`
	Table      *SinkCounts `json:"table,omitempty"`
	FailedJobs int         `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	var resp StatsResponse

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}
	resp.FailedJobs = jCount

	if h.index != nil {
		c, err := h.indexCounts(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count indexed objects", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count indexed objects", http.StatusInternalServerError)
			return
		}
		resp.Index = c
	}

	if h.table != nil {
		c, err := h.tableCounts(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count table rows", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count table rows", http.StatusInternalServerError)
			return
		}
		resp.Table = c
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) indexCounts(ctx context.Context) (*SinkCounts, error) {
	chunks, err := h.index.Count(ctx, h.index.PageClass())
	if err != nil {
		return nil, err
	}
	drawings, err := h.index.Count(ctx, h.index.DrawingClass())
	if err != nil {
		return nil, err
	}
	return &SinkCounts{Chunks: chunks, Drawings: drawings}, nil
}

func (h *Handler) tableCounts(ctx context.Context) (*SinkCounts, error) {
	chunks, err := h.table.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	drawings, err := h.table.CountDrawings(ctx)
	if err != nil {
		return nil, err
	}
	return &SinkCounts{Chunks: chunks, Drawings: drawings}, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
