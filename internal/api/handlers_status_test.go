// handlers_status_test.go - Tests for lifecycle status handlers
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func getStatus(t *testing.T, handler StatusHandler, target, accept string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	return rec, handler.HandleStatus(echo.New().NewContext(req, rec))
}

func TestStatusHandler_Idle(t *testing.T) {
	rec, err := getStatus(t, NewStatusHandler(status.NewStore()), "/status", "")
	require.NoError(t, err)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Idle", resp.Status)
	assert.Equal(t, models.PhaseIdle, resp.Phase)
	assert.Empty(t, resp.JobID)
}

func TestStatusHandler_Renderings(t *testing.T) {
	tests := []struct {
		name   string
		status models.LifecycleStatus
		want   string
	}{
		{"uploading", models.StatusUploading, "Uploading..."},
		{"parsing", models.StatusParsingStarted, "Parsing started..."},
		{"completed", models.StatusParsingCompleted, "Parsing completed!"},
		{"error", models.StatusError("engine down"), "Error: engine down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := status.NewStore()
			job := jobs.Create()
			require.NoError(t, jobs.Set(job.ID, tt.status))

			rec, err := getStatus(t, NewStatusHandler(jobs), "/status?jobId="+job.ID, "")
			require.NoError(t, err)

			var resp statusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, job.ID, resp.JobID)
		})
	}
}

func TestStatusHandler_PerJob(t *testing.T) {
	jobs := status.NewStore()
	a := jobs.Create()
	b := jobs.Create()
	require.NoError(t, jobs.Set(a.ID, models.StatusParsingCompleted))
	require.NoError(t, jobs.Set(b.ID, models.StatusUploading))
	handler := NewStatusHandler(jobs)

	rec, err := getStatus(t, handler, "/status?jobId="+a.ID, "")
	require.NoError(t, err)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Parsing completed!", resp.Status)

	// without a token the latest job answers
	rec, err = getStatus(t, handler, "/status", "")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, b.ID, resp.JobID)
	assert.Equal(t, "Uploading...", resp.Status)
}

func TestStatusHandler_UnknownJob(t *testing.T) {
	jobs := status.NewStore()
	jobs.Create()

	_, err := getStatus(t, NewStatusHandler(jobs), "/status?jobId=missing", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestStatusHandler_Msgpack(t *testing.T) {
	jobs := status.NewStore()
	job := jobs.Create()
	require.NoError(t, jobs.Set(job.ID, models.StatusParsingStarted))

	rec, err := getStatus(t, NewStatusHandler(jobs), "/status", mimeMsgpack)
	require.NoError(t, err)
	assert.Equal(t, mimeMsgpack, rec.Header().Get(echo.HeaderContentType))

	var resp statusResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Parsing started...", resp.Status)
	assert.Equal(t, job.ID, resp.JobID)
}

func TestStatusHandler_HandleGetJob(t *testing.T) {
	jobs := status.NewStore()
	job := jobs.Create()
	require.NoError(t, jobs.AddFile(job.ID, models.StoredFile{GeneratedName: "file-1.pdf", OriginalName: "brief.pdf"}))
	require.NoError(t, jobs.Complete(job.ID, json.RawMessage(`{"pages":3}`), models.StatusParsingCompleted))
	handler := NewStatusHandler(jobs)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(job.ID)
	require.NoError(t, handler.HandleGetJob(c))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Parsing completed!", got["display"])
	assert.Equal(t, map[string]interface{}{"pages": float64(3)}, got["result"])

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/jobs/x", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("x")
	err := handler.HandleGetJob(c)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
