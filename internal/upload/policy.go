// Package upload holds the validation rules an upload must pass before it is stored.
// The same Policy runs on the server and in the client coordinator.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMaxSize is the per-file upload limit (50 MiB).
const DefaultMaxSize int64 = 50 << 20

var (
	ErrMissingFile     = errors.New("no file uploaded")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// DefaultAllowedTypes is the MIME allow-list, keyed by media type.
var DefaultAllowedTypes = map[string]bool{
	"image/png":          true,
	"image/jpeg":         true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
}

// extensionTypes maps lower-case extensions to the media type assumed when the
// client declares nothing useful.
var extensionTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// Request describes an upload candidate without its content.
type Request struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
}

// ValidationError carries the user-facing reason along with the sentinel cause.
type ValidationError struct {
	Name  string
	Cause error
	msg   string
}

func (e *ValidationError) Error() string { return e.msg }
func (e *ValidationError) Unwrap() error { return e.Cause }

// Policy is the set of checks applied to every upload.
type Policy struct {
	MaxSize      int64
	AllowedTypes map[string]bool
}

// DefaultPolicy returns the 50 MiB / document-and-image policy.
func DefaultPolicy() Policy {
	return Policy{MaxSize: DefaultMaxSize, AllowedTypes: DefaultAllowedTypes}
}

// Validate checks type first, then size. It never touches content.
func (p Policy) Validate(req Request) error {
	if req.OriginalName == "" {
		return &ValidationError{Cause: ErrMissingFile, msg: "No file uploaded."}
	}

	allowed := p.AllowedTypes
	if allowed == nil {
		allowed = DefaultAllowedTypes
	}
	if mt := ResolveType(req.OriginalName, req.MimeType); !allowed[mt] {
		return &ValidationError{
			Name:  req.OriginalName,
			Cause: ErrInvalidFileType,
			msg:   fmt.Sprintf("Invalid file type: %s", req.OriginalName),
		}
	}

	if p.MaxSize > 0 && req.SizeBytes > p.MaxSize {
		return p.TooLarge(req.OriginalName)
	}

	return nil
}

// TooLarge builds the FileTooLarge error for name. It is also used when the
// storage cap trips on a file whose declared size was under the limit.
func (p Policy) TooLarge(name string) error {
	return &ValidationError{
		Name:  name,
		Cause: ErrFileTooLarge,
		msg:   fmt.Sprintf("File too large: %s (Max %s)", name, formatLimit(p.MaxSize)),
	}
}

// ResolveType normalises a declared content type, falling back to the
// extension when the declaration is empty or generic.
func ResolveType(name, declared string) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			declared = strings.ToLower(mt)
		} else {
			declared = ""
		}
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return TypeByExtension(name)
}

// TypeByExtension returns the media type for a known extension, or "".
func TypeByExtension(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// formatLimit renders whole mebibyte limits as "50MB", the way users see them.
func formatLimit(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
