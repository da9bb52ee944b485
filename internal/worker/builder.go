package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/embedding"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/text"
)

var originNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("multimodal-preprocessing-api/origin"))

// OriginID returns a fresh random id, or a name-based one when the producer
// supplied a dedup key.
func OriginID(dedupKey string) uuid.UUID {
	if dedupKey == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(originNamespace, []byte(dedupKey))
}

// ChunkObjectID derives the search-index object id of one chunk.
func ChunkObjectID(originID uuid.UUID, chunkID int) uuid.UUID {
	return uuid.NewSHA1(originID, []byte(strconv.Itoa(chunkID)))
}

// Builder turns queue messages into persistable records.
type Builder struct {
	embedder Embedder
	splitter *text.Splitter
	originID func(dedupKey string) uuid.UUID
}

func NewBuilder(e Embedder, s *text.Splitter) *Builder {
	return &Builder{embedder: e, splitter: s, originID: OriginID}
}

// BuildPage chunks the page text and embeds every chunk together with the
// page's image description. Any failure aborts the whole build and no
// records are returned.
func (b *Builder) BuildPage(ctx context.Context, msg PageMessage) ([]ChunkRecord, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	chunks, err := b.splitter.Split(msg.PageText)
	if err != nil {
		return nil, fmt.Errorf("chunk page %d: %w", msg.PageNumber, err)
	}

	originID := b.originID(msg.DedupKey)
	records := make([]ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		full, reduced, err := b.embed(ctx, c.Content)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", c.Index, err)
		}

		descFull, descReduced, err := b.embed(ctx, msg.ImageDescription)
		if err != nil {
			return nil, fmt.Errorf("embed image description for chunk %d: %w", c.Index, err)
		}

		records = append(records, ChunkRecord{
			ObjectID:                         ChunkObjectID(originID, c.Index),
			OriginID:                         originID,
			ChunkID:                          c.Index,
			ChunkContent:                     c.Content,
			ChunkEmbedding:                   full,
			ChunkEmbeddingReduced:            reduced,
			ImageDescription:                 msg.ImageDescription,
			ImageDescriptionEmbedding:        descFull,
			ImageDescriptionEmbeddingReduced: descReduced,
			PageNumber:                       msg.PageNumber,
			TotalPage:                        msg.TotalPage,
			OriginFileName:                   msg.OriginFileName(),
			OriginFilePath:                   msg.OriginPath,
			PageImagePath:                    msg.PageImagePath,
		})
	}

	slog.DebugContext(ctx, "page built", "origin_id", originID.String(), "chunks", len(records))
	return records, nil
}

// BuildDrawing embeds the drawing's textual info and image description into
// one record. Drawings are not chunked.
func (b *Builder) BuildDrawing(ctx context.Context, msg DrawingMessage) (DrawingRecord, error) {
	if err := msg.Validate(); err != nil {
		return DrawingRecord{}, err
	}
	infoFull, infoReduced, err := b.embed(ctx, msg.PageText)
	if err != nil {
		return DrawingRecord{}, fmt.Errorf("embed textual info: %w", err)
	}

	descFull, descReduced, err := b.embed(ctx, msg.PageSummary)
	if err != nil {
		return DrawingRecord{}, fmt.Errorf("embed image description: %w", err)
	}

	return DrawingRecord{
		ObjectID:                         b.originID(msg.DedupKey),
		DrawingID:                        msg.DrawingID,
		TextualInfo:                      msg.PageText,
		TextualInfoEmbedding:             infoFull,
		TextualInfoEmbeddingReduced:      infoReduced,
		ImageDescription:                 msg.PageSummary,
		ImageDescriptionEmbedding:        descFull,
		ImageDescriptionEmbeddingReduced: descReduced,
		Summary:                          msg.PageSummary,
		ImagePath:                        msg.ImagePath,
		ImageType:                        msg.ImageType,
		ImageURL:                         msg.ImageURL,
		InfoProject:                      msg.InfoProject,
		InfoTitle:                        msg.InfoTitle,
		InfoDwgNo:                        msg.InfoDwgNo,
		InfoRev:                          msg.InfoRev,
		InfoScale:                        msg.InfoScale,
		Parts:                            msg.Parts,
		DwgFilename:                      msg.DwgFilename,
		DwgFilepath:                      msg.DwgFilepath,
		SourceDrawID:                     msg.SourceDrawID,
		NumImages:                        msg.NumImages,
	}, nil
}

// embed returns the full vector and its reduced prefix. Blank text has
// nothing to embed and yields nil vectors.
func (b *Builder) embed(ctx context.Context, s string) ([]float32, []float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil, nil
	}
	full, err := b.embedder.Embed(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	reduced, err := embedding.Reduce(full)
	if err != nil {
		return nil, nil, err
	}
	return full, reduced, nil
}
