package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/middleware"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type processRequest struct {
	FilePath   string `json:"file_path"`
	OriginPath string `json:"origin_path"`
}

func (h *Handler) ProcessPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "processing pdf", "file_path", req.FilePath, "origin_path", req.OriginPath)

	res, err := h.service.ProcessPDF(ctx, req.FilePath, req.OriginPath)
	if err != nil {
		h.handleServiceError(ctx, w, "failed to process pdf", err)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{"data": res})
}

func (h *Handler) PublishPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var msg worker.PageMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.service.PublishPage(ctx, msg); err != nil {
		h.handleServiceError(ctx, w, "failed to publish page", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{"data": "page queued"})
}

func (h *Handler) PublishDrawing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var msg worker.DrawingMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.service.PublishDrawing(ctx, msg); err != nil {
		h.handleServiceError(ctx, w, "failed to publish drawing", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{"data": "drawing queued"})
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	slog.ErrorContext(ctx, msg, "error", err)
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrBrokerUnavailable):
		h.writeError(ctx, w, "BROKER_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
