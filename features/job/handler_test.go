package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/job"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
func (m *MockRepo) List(ctx context.Context) ([]job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
func (m *MockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestHandler_List(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	mockRepo.On("List", mock.Anything).Return(nil, nil)

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []job.Job      `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotNil(t, body.Data)
	assert.Equal(t, 0, body.Meta["count"])
}

func TestHandler_Get(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	mockRepo.On("Get", mock.Anything, "7").Return(&job.Job{ID: "7", Topic: "pdf_metadata", Payload: []byte(`{"page_number":1}`)}, nil)
	mockRepo.On("Get", mock.Anything, "8").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/jobs/failed/7", nil)
	req.SetPathValue("id", "7")
	w := httptest.NewRecorder()
	handler.Get(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"page_number":1`)

	req = httptest.NewRequest("GET", "/jobs/failed/8", nil)
	req.SetPathValue("id", "8")
	w = httptest.NewRecorder()
	handler.Get(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Retry_NotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub, slog.Default()))

	mockRepo.On("Get", mock.Anything, "99").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("POST", "/jobs/failed/99/retry", nil)
	req.SetPathValue("id", "99")
	w := httptest.NewRecorder()

	handler.Retry(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandler_Retry(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	handler := job.NewHandler(job.NewService(mockRepo, mockPub, slog.Default()))

	jobID := "job-123"
	payload := []byte(`{"origin_path":"/docs/manual.pdf","page_number":3}`)
	mockRepo.On("Get", mock.Anything, jobID).Return(&job.Job{ID: jobID, Topic: "pdf_metadata", Payload: payload}, nil)
	mockPub.On("Publish", "pdf_metadata", mock.MatchedBy(func(b []byte) bool { return string(b) == string(payload) })).Return(nil)
	mockRepo.On("Delete", mock.Anything, jobID).Return(nil)

	req := httptest.NewRequest("POST", "/jobs/failed/"+jobID+"/retry", nil)
	req.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

func TestHandler_Delete(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := job.NewHandler(job.NewService(mockRepo, nil, slog.Default()))

	mockRepo.On("Delete", mock.Anything, "1").Return(nil)
	mockRepo.On("Delete", mock.Anything, "2").Return(sql.ErrNoRows)

	req := httptest.NewRequest("DELETE", "/jobs/failed/1", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	handler.Delete(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("DELETE", "/jobs/failed/2", nil)
	req.SetPathValue("id", "2")
	w = httptest.NewRecorder()
	handler.Delete(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
