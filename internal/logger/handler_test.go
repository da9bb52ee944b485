package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/middleware"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logMap map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logMap))
	return logMap
}

func TestContextHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	ctx := middleware.WithCorrelationID(context.Background(), "test-correlation-id")
	logger.InfoContext(ctx, "test message")

	assert.Equal(t, "test-correlation-id", decode(t, &buf)["correlation_id"])
}

func TestContextHandler_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	ctx := WithAttrs(context.Background(), slog.String("topic", "pdf_metadata"))
	ctx = WithAttrs(ctx, slog.String("origin_id", "o-1"))
	logger.InfoContext(ctx, "built")

	logMap := decode(t, &buf)
	assert.Equal(t, "pdf_metadata", logMap["topic"])
	assert.Equal(t, "o-1", logMap["origin_id"])
}

func TestContextHandler_SurvivesWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo).With("component", "worker")

	ctx := middleware.WithCorrelationID(context.Background(), "cid")
	logger.InfoContext(ctx, "hello")

	logMap := decode(t, &buf)
	assert.Equal(t, "worker", logMap["component"])
	assert.Equal(t, "cid", logMap["correlation_id"])
}

func TestContextHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)
	logger.Info("dropped")
	assert.Zero(t, buf.Len())
}
