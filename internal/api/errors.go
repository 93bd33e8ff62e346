// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/legal-insight/docintake/internal/upload"
)

// APIError represents a structured API error response.
// Message goes out as "error" because clients render that field as-is.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewUploadValidationError maps an upload policy failure to a 400 with a
// specific code. The message is the policy's user-facing text.
func NewUploadValidationError(err error) *APIError {
	code := "VALIDATION_ERROR"
	switch {
	case errors.Is(err, upload.ErrMissingFile):
		code = "MISSING_FILE"
	case errors.Is(err, upload.ErrInvalidFileType):
		code = "INVALID_FILE_TYPE"
	case errors.Is(err, upload.ErrFileTooLarge):
		code = "FILE_TOO_LARGE"
	}
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: err.Error(),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewWriteError creates a 500 for storage failures
func NewWriteError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "WRITE_ERROR",
		Message: "failed to save file",
		Details: cause.Error(),
	}
}

// NewProcessingError creates a 502 for engine failures
func NewProcessingError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusBadGateway,
		Code:    "PROCESSING_ERROR",
		Message: cause.Error(),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// ErrorHandler renders every handler error as {error, code, details}.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		// server errors are surfaced verbatim
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}
