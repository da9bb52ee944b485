package document

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/pdf"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(topic string, v interface{}) error {
	args := m.Called(topic, v)
	return args.Error(0)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

func staticPages(pages ...pdf.Page) Extractor {
	return func(string) ([]pdf.Page, error) { return pages, nil }
}

func TestProcessPDF_PublishesPagesWithText(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicPageMetadata, mock.AnythingOfType("worker.PageMessage")).Return(nil)

	svc := NewService(pub, nil, nil)
	svc.extract = staticPages(
		pdf.Page{Number: 1, Text: "Torque the bolts to 40 Nm."},
		pdf.Page{Number: 2, Text: "   ", HasImage: true},
		pdf.Page{Number: 3, Text: "Check the seal.", HasImage: true},
	)

	res, err := svc.ProcessPDF(context.Background(), "/data/manual.pdf", "manuals/manual.pdf")
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 2, res.PublishedPages)
	assert.Equal(t, []int{2}, res.SkippedPages)
	assert.Empty(t, res.SourceURL)

	pub.AssertNumberOfCalls(t, "PublishJSON", 2)
	last := pub.Calls[1].Arguments.Get(1).(worker.PageMessage)
	assert.Equal(t, "manuals/manual.pdf", last.OriginPath)
	assert.Equal(t, 3, last.PageNumber)
	assert.Equal(t, 3, last.TotalPage)
	assert.True(t, last.HasImage)
	assert.Equal(t, "manuals/manual.pdf#3", last.DedupKey)
	assert.Empty(t, last.PageImagePath)
}

func TestProcessPDF_DefaultsOriginToFilePath(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicPageMetadata, mock.Anything).Return(nil)

	svc := NewService(pub, nil, nil)
	svc.extract = staticPages(pdf.Page{Number: 1, Text: "only page"})

	_, err := svc.ProcessPDF(context.Background(), "/data/a.pdf", "")
	require.NoError(t, err)

	msg := pub.Calls[0].Arguments.Get(1).(worker.PageMessage)
	assert.Equal(t, "/data/a.pdf", msg.OriginPath)
}

func TestProcessPDF_UploadsSourceOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pump-manual.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicPageMetadata, mock.Anything).Return(nil)
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "pump-manual/pump-manual.pdf", mock.Anything, "application/pdf").
		Return("https://bucket.s3.ap-northeast-2.amazonaws.com/pump-manual/pump-manual.pdf", nil).Once()

	svc := NewService(pub, up, nil)
	svc.extract = staticPages(
		pdf.Page{Number: 1, Text: "one"},
		pdf.Page{Number: 2, Text: "two"},
	)

	res, err := svc.ProcessPDF(context.Background(), path, "pump-manual.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, res.PublishedPages)
	up.AssertExpectations(t)

	msg := pub.Calls[1].Arguments.Get(1).(worker.PageMessage)
	assert.Equal(t, "https://bucket.s3.ap-northeast-2.amazonaws.com/pump-manual/pump-manual.pdf#page=2", msg.PageImagePath)
}

func TestProcessPDF_UploadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	pub := new(MockPublisher)
	up := new(MockUploader)
	up.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("denied"))

	svc := NewService(pub, up, nil)
	svc.extract = staticPages(pdf.Page{Number: 1, Text: "one"})

	_, err := svc.ProcessPDF(context.Background(), path, "")
	require.Error(t, err)
	pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
}

func TestProcessPDF_PublishFailureStops(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(apperr.ErrBrokerUnavailable)

	svc := NewService(pub, nil, nil)
	svc.extract = staticPages(pdf.Page{Number: 1, Text: "one"}, pdf.Page{Number: 2, Text: "two"})

	res, err := svc.ProcessPDF(context.Background(), "/m.pdf", "")
	require.ErrorIs(t, err, apperr.ErrBrokerUnavailable)
	assert.Equal(t, 0, res.PublishedPages)
	pub.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestProcessPDF_Invalid(t *testing.T) {
	svc := NewService(new(MockPublisher), nil, nil)

	_, err := svc.ProcessPDF(context.Background(), " ", "x")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	svc.extract = func(string) ([]pdf.Page, error) { return nil, apperr.ErrInvalidInput }
	_, err = svc.ProcessPDF(context.Background(), "/missing.pdf", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPublishPage(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicPageMetadata, mock.Anything).Return(nil)
	svc := NewService(pub, nil, nil)

	err := svc.PublishPage(context.Background(), worker.PageMessage{OriginPath: "a.pdf", PageNumber: 1, TotalPage: 1, PageText: "text"})
	require.NoError(t, err)

	err = svc.PublishPage(context.Background(), worker.PageMessage{OriginPath: "a.pdf", PageNumber: 1, TotalPage: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	err = svc.PublishPage(context.Background(), worker.PageMessage{PageNumber: 1, TotalPage: 1, PageText: "text"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	pub.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestPublishDrawing(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicDrawingMetadata, mock.Anything).Return(nil)
	svc := NewService(pub, nil, nil)

	err := svc.PublishDrawing(context.Background(), worker.DrawingMessage{DrawingID: "D-1", PageText: "GENERAL ARRANGEMENT"})
	require.NoError(t, err)

	err = svc.PublishDrawing(context.Background(), worker.DrawingMessage{PageText: "no id"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	pub.AssertNumberOfCalls(t, "PublishJSON", 1)
}
