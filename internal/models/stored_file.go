package models

import "time"

// StoredFile represents an accepted upload written to the content directory.
type StoredFile struct {
	GeneratedName string    `json:"storedName" msgpack:"storedName"`
	Path          string    `json:"path" msgpack:"path"`
	OriginalName  string    `json:"originalName" msgpack:"originalName"`
	Size          int64     `json:"size" msgpack:"size"`
	StoredAt      time.Time `json:"storedAt" msgpack:"storedAt"`
}
