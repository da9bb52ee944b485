package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/pdf"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/telemetry"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

type Publisher interface {
	PublishJSON(topic string, v interface{}) error
}

type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Extractor returns the pages of the PDF at path.
type Extractor func(path string) ([]pdf.Page, error)

// Result summarizes one processed PDF.
type Result struct {
	TotalPages     int    `json:"total_pages"`
	PublishedPages int    `json:"published_pages"`
	SkippedPages   []int  `json:"skipped_pages"`
	SourceURL      string `json:"source_url,omitempty"`
}

type Service struct {
	pub      Publisher
	uploader Uploader
	extract  Extractor
	metrics  *telemetry.Metrics
}

// NewService wires the producer. uploader may be nil, in which case page
// image references are left empty.
func NewService(pub Publisher, uploader Uploader, metrics *telemetry.Metrics) *Service {
	return &Service{pub: pub, uploader: uploader, extract: pdf.ExtractFile, metrics: metrics}
}

// ProcessPDF publishes one PageMessage per page of the file at filePath.
// originPath is recorded as the document's provenance. Pages without
// extractable text are skipped: they cannot be chunked.
func (s *Service) ProcessPDF(ctx context.Context, filePath, originPath string) (*Result, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("%w: file_path is required", apperr.ErrInvalidInput)
	}
	if originPath == "" {
		originPath = filePath
	}

	pages, err := s.extract(filePath)
	if err != nil {
		return nil, err
	}

	res := &Result{TotalPages: len(pages), SkippedPages: []int{}}
	if s.uploader != nil {
		res.SourceURL, err = s.uploadSource(ctx, filePath)
		if err != nil {
			return nil, err
		}
	}

	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			slog.WarnContext(ctx, "page has no extractable text, skipping", "origin_path", originPath, "page_number", p.Number)
			res.SkippedPages = append(res.SkippedPages, p.Number)
			continue
		}

		msg := worker.PageMessage{
			OriginPath: originPath,
			PageNumber: p.Number,
			TotalPage:  len(pages),
			PageText:   p.Text,
			HasImage:   p.HasImage,
			DedupKey:   fmt.Sprintf("%s#%d", originPath, p.Number),
		}
		if res.SourceURL != "" {
			msg.PageImagePath = fmt.Sprintf("%s#page=%d", res.SourceURL, p.Number)
		}

		if err := s.publish(ctx, config.TopicPageMetadata, msg); err != nil {
			return res, fmt.Errorf("publish page %d: %w", p.Number, err)
		}
		res.PublishedPages++
	}

	slog.InfoContext(ctx, "pdf processed", "origin_path", originPath, "pages", res.TotalPages, "published", res.PublishedPages)
	return res, nil
}

// PublishPage validates and enqueues a page produced upstream.
func (s *Service) PublishPage(ctx context.Context, msg worker.PageMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.PageText) == "" {
		return fmt.Errorf("%w: page_text is required", apperr.ErrInvalidInput)
	}
	return s.publish(ctx, config.TopicPageMetadata, msg)
}

// PublishDrawing validates and enqueues a drawing produced upstream.
func (s *Service) PublishDrawing(ctx context.Context, msg worker.DrawingMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return s.publish(ctx, config.TopicDrawingMetadata, msg)
}

func (s *Service) publish(ctx context.Context, topic string, v interface{}) error {
	if err := s.pub.PublishJSON(topic, v); err != nil {
		return err
	}
	s.metrics.RecordPublished(ctx, topic)
	return nil
}

func (s *Service) uploadSource(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	base := filepath.Base(filePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return s.uploader.Upload(ctx, stem+"/"+base, f, "application/pdf")
}
