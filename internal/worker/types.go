package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/job"
)

// ChunkRecord is one chunk of a page with its embeddings and provenance.
// All records built from one PageMessage share OriginID.
type ChunkRecord struct {
	ObjectID uuid.UUID
	OriginID uuid.UUID
	ChunkID  int

	ChunkContent          string
	ChunkEmbedding        []float32
	ChunkEmbeddingReduced []float32

	ImageDescription                 string
	ImageDescriptionEmbedding        []float32
	ImageDescriptionEmbeddingReduced []float32

	PageNumber     int
	TotalPage      int
	OriginFileName string
	OriginFilePath string
	PageImagePath  string
}

// DrawingRecord is the single record built from one DrawingMessage.
type DrawingRecord struct {
	ObjectID  uuid.UUID
	DrawingID string

	TextualInfo                 string
	TextualInfoEmbedding        []float32
	TextualInfoEmbeddingReduced []float32

	ImageDescription                 string
	ImageDescriptionEmbedding        []float32
	ImageDescriptionEmbeddingReduced []float32

	Summary      string
	ImagePath    string
	ImageType    string
	ImageURL     string
	InfoProject  string
	InfoTitle    string
	InfoDwgNo    string
	InfoRev      string
	InfoScale    string
	Parts        json.RawMessage
	DwgFilename  string
	DwgFilepath  string
	SourceDrawID string
	NumImages    int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RecordWriter commits built records. It reports failure without retrying;
// redelivery is the retry mechanism.
type RecordWriter interface {
	WriteChunks(ctx context.Context, records []ChunkRecord) error
	WriteDrawing(ctx context.Context, record DrawingRecord) error
}

// JobRepository receives deliveries that will never be processed.
type JobRepository interface {
	Save(ctx context.Context, job *job.Job) error
}
