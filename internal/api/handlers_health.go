// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/status"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	jobs    *status.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, jobs *status.Store) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		jobs:    jobs,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.jobs != nil {
		resp["jobs"] = h.jobs.Len()
	}
	return c.JSON(http.StatusOK, resp)
}
