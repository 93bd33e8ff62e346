// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/processing"
	"github.com/legal-insight/docintake/internal/status"
	"github.com/legal-insight/docintake/internal/storage"
	"github.com/legal-insight/docintake/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	Jobs       *status.Store
	Trigger    *processing.Trigger
	Policy     upload.Policy
	NamePrefix string
	Logger     *slog.Logger
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Upload UploadHandler
	Parse  ParseHandler
	Status StatusHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Jobs),
		Upload: NewUploadHandler(deps.Store, deps.Jobs, deps.Policy, deps.NamePrefix, deps.Logger),
		Parse:  NewParseHandler(deps.Trigger),
		Status: NewStatusHandler(deps.Jobs),
	}
}

// RegisterRoutes mounts the API at the root, where the browser form posts,
// and again under /api.
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	mount(e.Group(""), handlers)
	mount(e.Group("/api"), handlers)
}

func mount(g *echo.Group, handlers *Handlers) {
	g.GET("/health", handlers.Health.HandleHealth)

	g.POST("/upload", handlers.Upload.HandleUploadFile)
	g.GET("/files", handlers.Upload.HandleGetRecentFiles)

	g.POST("/parse", handlers.Parse.HandleStartParse)

	g.GET("/status", handlers.Status.HandleStatus)
	g.GET("/jobs/:id", handlers.Status.HandleGetJob)
}
