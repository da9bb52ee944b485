package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockIndex struct{ mock.Mock }

func (m *MockIndex) Count(ctx context.Context, class string) (int, error) {
	args := m.Called(ctx, class)
	return args.Int(0), args.Error(1)
}
func (m *MockIndex) PageClass() string    { return "ManualChunk" }
func (m *MockIndex) DrawingClass() string { return "Drawing" }

type MockTable struct{ mock.Mock }

func (m *MockTable) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *MockTable) CountDrawings(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockJobRepo, *MockIndex, *MockTable)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(j *MockJobRepo, i *MockIndex, tb *MockTable) {
				j.On("Count", mock.Anything).Return(5, nil)
				i.On("Count", mock.Anything, "ManualChunk").Return(120, nil)
				i.On("Count", mock.Anything, "Drawing").Return(7, nil)
				tb.On("CountChunks", mock.Anything).Return(118, nil)
				tb.On("CountDrawings", mock.Anything).Return(7, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 5, data["failed_jobs"])
				index := data["index"].(map[string]interface{})
				assert.EqualValues(t, 120, index["chunks"])
				assert.EqualValues(t, 7, index["drawings"])
				table := data["table"].(map[string]interface{})
				assert.EqualValues(t, 118, table["chunks"])
			},
		},
		{
			name: "JobRepo Error",
			setupMocks: func(j *MockJobRepo, i *MockIndex, tb *MockTable) {
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "Index Error",
			setupMocks: func(j *MockJobRepo, i *MockIndex, tb *MockTable) {
				j.On("Count", mock.Anything).Return(5, nil)
				i.On("Count", mock.Anything, "ManualChunk").Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "Table Error",
			setupMocks: func(j *MockJobRepo, i *MockIndex, tb *MockTable) {
				j.On("Count", mock.Anything).Return(5, nil)
				i.On("Count", mock.Anything, mock.Anything).Return(1, nil)
				tb.On("CountChunks", mock.Anything).Return(1, nil)
				tb.On("CountDrawings", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mJob := new(MockJobRepo)
			mIndex := new(MockIndex)
			mTable := new(MockTable)

			tt.setupMocks(mJob, mIndex, mTable)

			h := NewHandler(mJob, mIndex, mTable)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

			if tt.wantError {
				assert.Contains(t, body, "error")
				assert.Contains(t, body, "correlationId")
				return
			}
			if tt.checkBody != nil {
				tt.checkBody(t, body)
			}
		})
	}
}

func TestHandler_GetStats_DisabledSinks(t *testing.T) {
	mJob := new(MockJobRepo)
	mJob.On("Count", mock.Anything).Return(0, nil)

	h := NewHandler(mJob, nil, nil)
	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest("GET", "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body["data"], "index")
	assert.NotContains(t, body["data"], "table")
}
