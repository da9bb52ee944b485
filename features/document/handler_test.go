package document

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/config"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/pdf"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandler_ProcessPDF(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicPageMetadata, mock.Anything).Return(nil)
	svc := NewService(pub, nil, nil)
	svc.extract = staticPages(pdf.Page{Number: 1, Text: "hello"})
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pdf/process",
		bytes.NewBufferString(`{"file_path":"/data/a.pdf","origin_path":"a.pdf"}`))
	rec := httptest.NewRecorder()
	h.ProcessPDF(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.PublishedPages)
}

func TestHandler_ProcessPDF_BadJSON(t *testing.T) {
	h := NewHandler(NewService(new(MockPublisher), nil, nil))

	rec := httptest.NewRecorder()
	h.ProcessPDF(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pdf/process", bytes.NewBufferString("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec))
}

func TestHandler_PublishPage_BrokerDown(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(apperr.ErrBrokerUnavailable)
	h := NewHandler(NewService(pub, nil, nil))

	rec := httptest.NewRecorder()
	h.PublishPage(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pages",
		bytes.NewBufferString(`{"origin_path":"a.pdf","page_number":1,"total_page":1,"page_text":"x"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "BROKER_UNAVAILABLE", decodeError(t, rec))
}

func TestHandler_PublishDrawing(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", config.TopicDrawingMetadata, mock.Anything).Return(nil)
	h := NewHandler(NewService(pub, nil, nil))

	rec := httptest.NewRecorder()
	h.PublishDrawing(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drawings",
		bytes.NewBufferString(`{"drawing_id":"D-7","page_text":"PLAN","parts":[{"no":1}]}`)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.PublishDrawing(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drawings",
		bytes.NewBufferString(`{"page_text":"PLAN"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec))
}
