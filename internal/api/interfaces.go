// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
}

// ParseHandler handles processing trigger operations
type ParseHandler interface {
	HandleStartParse(c echo.Context) error
}

// StatusHandler serves lifecycle status to polling clients
type StatusHandler interface {
	HandleStatus(c echo.Context) error
	HandleGetJob(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
