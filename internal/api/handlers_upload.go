// handlers_upload.go - File upload operation handlers
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/status"
	"github.com/legal-insight/docintake/internal/storage"
	"github.com/legal-insight/docintake/internal/upload"
)

const uploadSuccessMessage = "File uploaded successfully."

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store  storage.Store
	jobs   *status.Store
	policy upload.Policy
	prefix string
	logger *slog.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, jobs *status.Store, policy upload.Policy, prefix string, logger *slog.Logger) UploadHandler {
	if prefix == "" {
		prefix = storage.DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandlerImpl{
		store:  store,
		jobs:   jobs,
		policy: policy,
		prefix: prefix,
		logger: logger,
	}
}

// HandleUploadFile accepts one multipart field "file", validates it against
// the upload policy and stores it. An upload naming a jobId joins that job.
// Without one it joins the latest job while that job is still open, or
// starts a new job when the latest has been parsed; newJob=true always starts
// a new one. No job is created or changed until the file is on disk.
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return NewUploadValidationError(h.policy.Validate(upload.Request{}))
		}
		return NewBadRequestError("invalid multipart form", err)
	}

	req := upload.Request{
		OriginalName: file.Filename,
		MimeType:     file.Header.Get(echo.HeaderContentType),
		SizeBytes:    file.Size,
	}
	// validation short-circuits before storage or job state is touched
	if err := h.policy.Validate(req); err != nil {
		h.logger.Warn("upload rejected", "file", req.OriginalName, "size", req.SizeBytes, "error", err)
		return NewUploadValidationError(err)
	}

	jobID := c.FormValue("jobId")
	if jobID != "" {
		job, ok := h.jobs.Get(jobID)
		if !ok {
			return NewNotFoundError("job", jobID)
		}
		if job.Status.Phase == models.PhaseParsingStarted {
			return NewConflictError("Parsing already in progress for job " + jobID)
		}
	}
	newJob, _ := strconv.ParseBool(c.FormValue("newJob"))

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	stored, err := h.store.Save(h.prefix, file.Filename, src)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			// the declared size lied; the sink's cap caught it
			return NewUploadValidationError(h.policy.TooLarge(req.OriginalName))
		}
		h.logger.Error("storing upload failed", "job_id", jobID, "file", req.OriginalName, "error", err)
		if jobID != "" {
			h.jobs.Set(jobID, models.StatusError("upload failed: "+err.Error()))
		}
		return NewWriteError(err)
	}

	job, apiErr := h.attach(jobID, newJob, *stored)
	if apiErr != nil {
		return apiErr
	}
	h.logger.Info("file stored",
		"job_id", job.ID, "file", req.OriginalName,
		"stored_name", stored.GeneratedName, "size", stored.Size)

	return c.JSON(http.StatusOK, uploadResponse{
		Message:      uploadSuccessMessage,
		StoredName:   stored.GeneratedName,
		OriginalName: stored.OriginalName,
		JobID:        job.ID,
	})
}

// HandleGetRecentFiles lists stored files, newest first
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewBadRequestError("limit must be a non-negative integer", err)
		}
		limit = n
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, files)
}

// attach records a stored file on its job, picking the job the same way
// HandleUploadFile documents.
func (h *UploadHandlerImpl) attach(jobID string, newJob bool, file models.StoredFile) (models.Job, *APIError) {
	if jobID != "" {
		err := h.jobs.AddFile(jobID, file)
		switch {
		case err == nil:
			job, _ := h.jobs.Get(jobID)
			return job, nil
		case errors.Is(err, status.ErrJobNotFound):
			return models.Job{}, NewNotFoundError("job", jobID)
		case errors.Is(err, status.ErrJobBusy):
			return models.Job{}, NewConflictError("Parsing already in progress for job " + jobID)
		default:
			return models.Job{}, NewInternalError("failed to record upload", err)
		}
	}

	var job models.Job
	if newJob {
		job = h.jobs.Create()
	} else {
		job = h.jobs.OpenOrCreate()
	}
	err := h.jobs.AddFile(job.ID, file)
	if errors.Is(err, status.ErrJobBusy) {
		// parsing started between picking the job and recording the file
		job = h.jobs.Create()
		err = h.jobs.AddFile(job.ID, file)
	}
	if err != nil {
		return models.Job{}, NewInternalError("failed to record upload", err)
	}
	return job, nil
}

// Request/Response types

type uploadResponse struct {
	Message      string `json:"message"`
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName"`
	JobID        string `json:"jobId"`
}
