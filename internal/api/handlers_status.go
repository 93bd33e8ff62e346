// handlers_status.go - Lifecycle status handlers
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/status"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgpack = "application/msgpack"

// StatusHandlerImpl implements the StatusHandler interface
type StatusHandlerImpl struct {
	jobs *status.Store
}

// NewStatusHandler creates a new status handler instance
func NewStatusHandler(jobs *status.Store) StatusHandler {
	return &StatusHandlerImpl{jobs: jobs}
}

// HandleStatus returns the status of ?jobId=, or of the latest job.
// Before any upload it reports Idle.
func (h *StatusHandlerImpl) HandleStatus(c echo.Context) error {
	jobID := c.QueryParam("jobId")

	job, err := h.jobs.Resolve(jobID)
	if err != nil {
		if errors.Is(err, status.ErrNoJobs) {
			return respond(c, http.StatusOK, newStatusResponse(nil))
		}
		return NewNotFoundError("job", jobID)
	}

	return respond(c, http.StatusOK, newStatusResponse(&job))
}

// HandleGetJob returns the full job record including the engine result
func (h *StatusHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewBadRequestError("job id is required", nil)
	}

	job, ok := h.jobs.Get(id)
	if !ok {
		return NewNotFoundError("job", id)
	}

	return respond(c, http.StatusOK, newJobResponse(job))
}

// respond encodes v as msgpack when the client asks for it, JSON otherwise
func respond(c echo.Context, code int, v interface{}) error {
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), mimeMsgpack) {
		data, err := msgpack.Marshal(v)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(code, mimeMsgpack, data)
	}
	return c.JSON(code, v)
}

// Response types

type statusResponse struct {
	Status    string       `json:"status" msgpack:"status"`
	Phase     models.Phase `json:"phase" msgpack:"phase"`
	Detail    string       `json:"detail,omitempty" msgpack:"detail,omitempty"`
	JobID     string       `json:"jobId,omitempty" msgpack:"jobId,omitempty"`
	Files     int          `json:"files" msgpack:"files"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty" msgpack:"updatedAt,omitempty"`
}

func newStatusResponse(job *models.Job) statusResponse {
	if job == nil {
		return statusResponse{
			Status: models.StatusIdle.String(),
			Phase:  models.PhaseIdle,
		}
	}
	updated := job.UpdatedAt
	return statusResponse{
		Status:    job.Status.String(),
		Phase:     job.Status.Phase,
		Detail:    job.Status.Detail,
		JobID:     job.ID,
		Files:     len(job.Files),
		UpdatedAt: &updated,
	}
}

type jobResponse struct {
	models.Job `msgpack:",inline"`
	Display    string `json:"display" msgpack:"display"`
	// msgpack has no raw-JSON type; the result travels as its JSON text
	ResultJSON string `json:"-" msgpack:"result,omitempty"`
}

func newJobResponse(job models.Job) jobResponse {
	resp := jobResponse{Job: job, Display: job.Status.String()}
	if job.Result != nil {
		resp.ResultJSON = string(job.Result)
	}
	return resp
}
