// handlers_parse.go - Processing trigger handlers
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/processing"
	"github.com/legal-insight/docintake/internal/status"
)

// ParseHandlerImpl implements the ParseHandler interface
type ParseHandlerImpl struct {
	trigger *processing.Trigger
}

// NewParseHandler creates a new parse handler instance
func NewParseHandler(trigger *processing.Trigger) ParseHandler {
	return &ParseHandlerImpl{trigger: trigger}
}

// HandleStartParse runs the engine for a job and answers once it has a
// terminal status. Pollers of /status see ParsingStarted meanwhile.
func (h *ParseHandlerImpl) HandleStartParse(c echo.Context) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return err
	}

	job, err := h.trigger.Run(c.Request().Context(), jobID)
	switch {
	case err == nil:
	case errors.Is(err, status.ErrNoJobs), errors.Is(err, status.ErrNoFiles):
		return NewConflictError("No uploads to parse.")
	case errors.Is(err, status.ErrJobNotFound):
		return NewNotFoundError("job", jobID)
	case errors.Is(err, status.ErrJobBusy):
		return NewConflictError("Parsing already in progress for job " + job.ID)
	case errors.Is(err, processing.ErrProcessing):
		return NewProcessingError(err)
	default:
		return NewInternalError("failed to start parsing", err)
	}

	return c.JSON(http.StatusOK, parseResponse{
		Message: "Parsing completed.",
		JobID:   job.ID,
		Status:  job.Status.String(),
		Result:  job.Result,
	})
}

// parseJobID accepts the token as a query parameter or in a JSON/form body.
// An empty token is allowed and means the latest job.
func parseJobID(c echo.Context) (string, error) {
	if id := c.QueryParam("jobId"); id != "" {
		return id, nil
	}
	if c.Request().ContentLength == 0 {
		return "", nil
	}

	var req parseRequest
	if err := c.Bind(&req); err != nil {
		return "", NewBadRequestError("invalid request body", err)
	}
	return req.JobID, nil
}

// Request/Response types

type parseRequest struct {
	JobID string `json:"jobId" form:"jobId"`
}

type parseResponse struct {
	Message string          `json:"message"`
	JobID   string          `json:"jobId"`
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
}
