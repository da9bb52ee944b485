package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/postgres"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	c, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("preprocessing_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Terminate(ctx) })

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := startPostgres(t)
	ctx := context.Background()
	sink := postgres.NewSink(db)

	require.NoError(t, sink.EnsureSchema(ctx))
	require.NoError(t, sink.EnsureSchema(ctx), "second provisioning is a no-op")
	require.NoError(t, db.PingContext(ctx), "provisioning must not close the pool")

	origin := uuid.New()
	records := []worker.ChunkRecord{
		{ObjectID: worker.ChunkObjectID(origin, 0), OriginID: origin, ChunkID: 0, ChunkContent: "first", ChunkEmbedding: []float32{0.25, 0.5}, PageNumber: 1, TotalPage: 1},
		{ObjectID: worker.ChunkObjectID(origin, 1), OriginID: origin, ChunkID: 1, ChunkContent: "second", PageNumber: 1, TotalPage: 1},
	}
	require.NoError(t, sink.InsertChunks(ctx, records))
	require.NoError(t, sink.InsertChunks(ctx, records), "replay is absorbed")

	n, err := sink.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var embedding pq.Float32Array
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT chunk_embedding FROM preprocessing.manual_chunks WHERE origin_id = $1 AND chunk_id = 0`, origin.String()).Scan(&embedding))
	assert.Equal(t, pq.Float32Array{0.25, 0.5}, embedding)

	parts := json.RawMessage(`[{"no":"1","name":"pump","qty":2}]`)
	rec := worker.DrawingRecord{ObjectID: uuid.New(), DrawingID: "DWG-001", Parts: parts}
	require.NoError(t, sink.InsertDrawing(ctx, rec))

	var stored string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT parts::text FROM preprocessing.drawings WHERE object_id = $1`, rec.ObjectID.String()).Scan(&stored))
	assert.JSONEq(t, string(parts), stored)

	var touched bool
	_, err = db.ExecContext(ctx, `UPDATE preprocessing.drawings SET summary = 'x' WHERE object_id = $1`, rec.ObjectID.String())
	require.NoError(t, err)
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT updated_at > created_at FROM preprocessing.drawings WHERE object_id = $1`, rec.ObjectID.String()).Scan(&touched))
	assert.True(t, touched)
}
