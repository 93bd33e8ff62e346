package client

import "github.com/legal-insight/docintake/internal/models"

// FileState is where one file is in its upload lifecycle.
type FileState int

const (
	StateSelected FileState = iota
	StateValidating
	StateUploading
	StateUploaded
	StateFailed
)

func (s FileState) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateValidating:
		return "validating"
	case StateUploading:
		return "uploading"
	case StateUploaded:
		return "uploaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileResult is the coordinator's view of one file.
type FileResult struct {
	Path       string
	Name       string
	Size       int64
	State      FileState
	StoredName string
	Err        error
}

// Reporter receives presentation updates. Calls are serialized by the
// coordinator, so implementations need no locking of their own.
type Reporter interface {
	FileChanged(f FileResult, uploaded int)
	Progress(name string, sent, total int64)
	StatusChanged(st models.LifecycleStatus)
}

// NopReporter discards every update.
type NopReporter struct{}

func (NopReporter) FileChanged(FileResult, int)          {}
func (NopReporter) Progress(string, int64, int64)        {}
func (NopReporter) StatusChanged(models.LifecycleStatus) {}
