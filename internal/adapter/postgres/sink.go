package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

var chunkColumns = []string{
	"object_id", "origin_id", "chunk_id", "chunk_content",
	"chunk_embedding", "chunk_embedding_reduced",
	"image_description", "image_description_embedding", "image_description_embedding_reduced",
	"page_number", "total_page", "origin_file_name", "origin_file_path", "page_image_path",
}

var drawingColumns = []string{
	"object_id", "drawing_id",
	"textual_info", "textual_info_embedding", "textual_info_embedding_reduced",
	"image_description", "image_description_embedding", "image_description_embedding_reduced",
	"summary", "image_path", "image_type", "image_url",
	"info_project", "info_title", "info_dwg_no", "info_rev", "info_scale",
	"parts", "dwg_filename", "dwg_filepath", "source_drawing_id", "num_images",
}

// Sink is the relational mirror of the search index.
type Sink struct {
	db *sql.DB
}

func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) EnsureSchema(ctx context.Context) error {
	return Migrate(ctx, s.db)
}

// InsertChunks writes one page's chunks in a single statement. Rows already
// present for (origin_id, chunk_id) are left as they are.
func (s *Sink) InsertChunks(ctx context.Context, records []worker.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(records)*len(chunkColumns))
	for _, r := range records {
		args = append(args,
			r.ObjectID.String(), r.OriginID.String(), r.ChunkID, r.ChunkContent,
			pq.Array(r.ChunkEmbedding), pq.Array(r.ChunkEmbeddingReduced),
			r.ImageDescription, pq.Array(r.ImageDescriptionEmbedding), pq.Array(r.ImageDescriptionEmbeddingReduced),
			r.PageNumber, r.TotalPage, r.OriginFileName, r.OriginFilePath, r.PageImagePath,
		)
	}

	query := insertQuery("preprocessing.manual_chunks", chunkColumns, len(records)) + " ON CONFLICT DO NOTHING"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %d chunks: %w", len(records), err)
	}
	return nil
}

func (s *Sink) InsertDrawing(ctx context.Context, r worker.DrawingRecord) error {
	// JSONB takes text; a []byte argument would be sent as bytea.
	var parts interface{}
	if len(r.Parts) > 0 {
		parts = string(r.Parts)
	}

	query := insertQuery("preprocessing.drawings", drawingColumns, 1) + " ON CONFLICT (object_id) DO NOTHING"
	_, err := s.db.ExecContext(ctx, query,
		r.ObjectID.String(), r.DrawingID,
		r.TextualInfo, pq.Array(r.TextualInfoEmbedding), pq.Array(r.TextualInfoEmbeddingReduced),
		r.ImageDescription, pq.Array(r.ImageDescriptionEmbedding), pq.Array(r.ImageDescriptionEmbeddingReduced),
		r.Summary, r.ImagePath, r.ImageType, r.ImageURL,
		r.InfoProject, r.InfoTitle, r.InfoDwgNo, r.InfoRev, r.InfoScale,
		parts, r.DwgFilename, r.DwgFilepath, r.SourceDrawID, r.NumImages,
	)
	if err != nil {
		return fmt.Errorf("insert drawing %s: %w", r.DrawingID, err)
	}
	return nil
}

func (s *Sink) CountChunks(ctx context.Context) (int, error) {
	return s.count(ctx, "preprocessing.manual_chunks")
}

func (s *Sink) CountDrawings(ctx context.Context) (int, error) {
	return s.count(ctx, "preprocessing.drawings")
}

func (s *Sink) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// insertQuery builds INSERT INTO table (cols) VALUES ($1, ...), (...) for rows rows.
func insertQuery(table string, columns []string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	n := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
