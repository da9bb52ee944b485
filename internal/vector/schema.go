package vector

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// Named vectors carried by the page class.
const (
	VectorChunk                   = "chunkEmbedding"
	VectorChunkReduced            = "chunkEmbeddingReduced"
	VectorImageDescription        = "imageDescriptionEmbedding"
	VectorImageDescriptionReduced = "imageDescriptionEmbeddingReduced"
)

// Named vectors carried by the drawing class.
const (
	VectorTextualInfo        = "textualInfoEmbedding"
	VectorTextualInfoReduced = "textualInfoEmbeddingReduced"
)

// SchemaClient defines the Weaviate schema operations provisioning needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// PageClass describes the index of page chunks. Analyzed text uses the given
// tokenization ("word" by default, "kagome_kr" for Korean when the server has
// it enabled); identifiers and paths are exact-match keywords.
func PageClass(name, tokenization string) *models.Class {
	return &models.Class{
		Class:       name,
		Description: "A chunk of one page of a PDF manual",
		Properties: []*models.Property{
			keyword("originId"),
			integer("chunkId"),
			analyzed("chunkContent", tokenization),
			analyzed("imageDescription", tokenization),
			integer("pageNumber"),
			integer("totalPage"),
			keyword("originFileName"),
			keyword("originFilePath"),
			keyword("pageImagePath"),
		},
		VectorConfig: namedVectors(
			VectorChunk, VectorChunkReduced,
			VectorImageDescription, VectorImageDescriptionReduced,
		),
	}
}

// DrawingClass describes the index of engineering drawings.
func DrawingClass(name, tokenization string) *models.Class {
	return &models.Class{
		Class:       name,
		Description: "An engineering drawing with its title block",
		Properties: []*models.Property{
			keyword("drawingId"),
			analyzed("textualInfo", tokenization),
			analyzed("imageDescription", tokenization),
			analyzed("summary", tokenization),
			keyword("imagePath"),
			keyword("imageType"),
			keyword("imageUrl"),
			analyzed("infoProject", tokenization),
			analyzed("infoTitle", tokenization),
			keyword("infoDwgNo"),
			keyword("infoRev"),
			keyword("infoScale"),
			stored("parts"),
			keyword("dwgFilename"),
			keyword("dwgFilepath"),
			keyword("sourceDrawingId"),
			integer("numImages"),
		},
		VectorConfig: namedVectors(
			VectorTextualInfo, VectorTextualInfoReduced,
			VectorImageDescription, VectorImageDescriptionReduced,
		),
	}
}

// EnsureClass creates the class if it is missing and otherwise adds any
// properties the live class lacks. Existing properties are never altered.
func EnsureClass(ctx context.Context, client SchemaClient, want *models.Class) error {
	exists, err := client.ClassExists(ctx, want.Class)
	if err != nil {
		return fmt.Errorf("check class %s: %w", want.Class, err)
	}

	if !exists {
		if err := client.CreateClass(ctx, want); err != nil {
			return fmt.Errorf("create class %s: %w", want.Class, err)
		}
		return nil
	}

	class, err := client.GetClass(ctx, want.Class)
	if err != nil {
		return fmt.Errorf("get class %s: %w", want.Class, err)
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range want.Properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, want.Class, p); err != nil {
				return fmt.Errorf("add property %s.%s: %w", want.Class, p.Name, err)
			}
		}
	}
	return nil
}

func keyword(name string) *models.Property {
	return &models.Property{
		Name:         name,
		DataType:     []string{"text"},
		Tokenization: models.PropertyTokenizationField,
	}
}

func analyzed(name, tokenization string) *models.Property {
	if tokenization == "" {
		tokenization = models.PropertyTokenizationWord
	}
	return &models.Property{
		Name:         name,
		DataType:     []string{"text"},
		Tokenization: tokenization,
	}
}

func integer(name string) *models.Property {
	return &models.Property{Name: name, DataType: []string{"int"}}
}

// stored is kept on the object but neither searchable nor filterable.
func stored(name string) *models.Property {
	off := false
	return &models.Property{
		Name:            name,
		DataType:        []string{"text"},
		IndexFilterable: &off,
		IndexSearchable: &off,
	}
}

func namedVectors(names ...string) map[string]models.VectorConfig {
	out := make(map[string]models.VectorConfig, len(names))
	for _, n := range names {
		out[n] = models.VectorConfig{
			Vectorizer:      map[string]interface{}{"none": map[string]interface{}{}},
			VectorIndexType: "hnsw",
			VectorIndexConfig: map[string]interface{}{
				"distance":       "cosine",
				"efConstruction": 128,
				"maxConnections": 24,
			},
		}
	}
	return out
}
