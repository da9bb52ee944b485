package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/vector"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

type Config struct {
	PageClass    string
	DrawingClass string
	Tokenization string
}

// Store is the search-index sink. Object ids are derived from the record, so
// a replayed write lands on the same object.
type Store struct {
	client *weaviate.Client
	cfg    Config
}

func NewStore(client *weaviate.Client, cfg Config) *Store {
	return &Store{client: client, cfg: cfg}
}

func (s *Store) PageClass() string    { return s.cfg.PageClass }
func (s *Store) DrawingClass() string { return s.cfg.DrawingClass }

// EnsureSchema provisions both classes. Safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := vector.NewSchema(s.client)
	if err := vector.EnsureClass(ctx, schema, vector.PageClass(s.cfg.PageClass, s.cfg.Tokenization)); err != nil {
		return err
	}
	return vector.EnsureClass(ctx, schema, vector.DrawingClass(s.cfg.DrawingClass, s.cfg.Tokenization))
}

// IndexChunks writes all chunks of one page in a single batch. Batch import
// replaces objects with the same id.
func (s *Store) IndexChunks(ctx context.Context, records []worker.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		objects = append(objects, &models.Object{
			Class:      s.cfg.PageClass,
			ID:         strfmt.UUID(r.ObjectID.String()),
			Properties: chunkProperties(r),
			Vectors: vectors(map[string][]float32{
				vector.VectorChunk:                   r.ChunkEmbedding,
				vector.VectorChunkReduced:            r.ChunkEmbeddingReduced,
				vector.VectorImageDescription:        r.ImageDescriptionEmbedding,
				vector.VectorImageDescriptionReduced: r.ImageDescriptionEmbeddingReduced,
			}),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch index %d chunks: %w", len(objects), err)
	}

	var msgs []string
	for _, o := range resp {
		if o.Result == nil || o.Result.Errors == nil {
			continue
		}
		for _, e := range o.Result.Errors.Error {
			msgs = append(msgs, fmt.Sprintf("%s: %s", o.ID, e.Message))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("batch index: %d object errors: %s", len(msgs), strings.Join(msgs, "; "))
	}
	return nil
}

// IndexDrawing creates one drawing object. An object that already exists
// under the same id counts as written.
func (s *Store) IndexDrawing(ctx context.Context, r worker.DrawingRecord) error {
	props, err := drawingProperties(r)
	if err != nil {
		return err
	}

	_, err = s.client.Data().Creator().
		WithClassName(s.cfg.DrawingClass).
		WithID(r.ObjectID.String()).
		WithProperties(props).
		WithVectors(vectors(map[string][]float32{
			vector.VectorTextualInfo:             r.TextualInfoEmbedding,
			vector.VectorTextualInfoReduced:      r.TextualInfoEmbeddingReduced,
			vector.VectorImageDescription:        r.ImageDescriptionEmbedding,
			vector.VectorImageDescriptionReduced: r.ImageDescriptionEmbeddingReduced,
		})).
		Do(ctx)
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("index drawing %s: %w", r.DrawingID, err)
	}
	return nil
}

// Ping reports whether the instance is ready to serve requests.
func (s *Store) Ping(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return errors.New("weaviate is not ready")
	}
	return nil
}

// Count returns the number of objects in class.
func (s *Store) Count(ctx context.Context, class string) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %s", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[class].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func chunkProperties(r worker.ChunkRecord) map[string]interface{} {
	return map[string]interface{}{
		"originId":         r.OriginID.String(),
		"chunkId":          r.ChunkID,
		"chunkContent":     r.ChunkContent,
		"imageDescription": r.ImageDescription,
		"pageNumber":       r.PageNumber,
		"totalPage":        r.TotalPage,
		"originFileName":   r.OriginFileName,
		"originFilePath":   r.OriginFilePath,
		"pageImagePath":    r.PageImagePath,
	}
}

func drawingProperties(r worker.DrawingRecord) (map[string]interface{}, error) {
	parts := ""
	if len(r.Parts) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, r.Parts); err != nil {
			return nil, fmt.Errorf("drawing %s parts: %w", r.DrawingID, err)
		}
		parts = buf.String()
	}
	return map[string]interface{}{
		"drawingId":        r.DrawingID,
		"textualInfo":      r.TextualInfo,
		"imageDescription": r.ImageDescription,
		"summary":          r.Summary,
		"imagePath":        r.ImagePath,
		"imageType":        r.ImageType,
		"imageUrl":         r.ImageURL,
		"infoProject":      r.InfoProject,
		"infoTitle":        r.InfoTitle,
		"infoDwgNo":        r.InfoDwgNo,
		"infoRev":          r.InfoRev,
		"infoScale":        r.InfoScale,
		"parts":            parts,
		"dwgFilename":      r.DwgFilename,
		"dwgFilepath":      r.DwgFilepath,
		"sourceDrawingId":  r.SourceDrawID,
		"numImages":        r.NumImages,
	}, nil
}

// vectors drops absent embeddings; blank inputs are not embedded.
func vectors(in map[string][]float32) models.Vectors {
	out := make(models.Vectors, len(in))
	for name, v := range in {
		if len(v) > 0 {
			out[name] = v
		}
	}
	return out
}

func alreadyExists(err error) bool {
	var clientErr *fault.WeaviateClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	return clientErr.StatusCode == http.StatusUnprocessableEntity && strings.Contains(clientErr.Msg, "already exists")
}
