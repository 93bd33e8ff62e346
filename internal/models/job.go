package models

import (
	"encoding/json"
	"time"
)

// Job is the server-side record of one upload batch and its processing run.
type Job struct {
	ID        string          `json:"id" msgpack:"id"`
	Status    LifecycleStatus `json:"status" msgpack:"status"`
	Files     []StoredFile    `json:"files" msgpack:"files"`
	Result    json.RawMessage `json:"result,omitempty" msgpack:"-"`
	CreatedAt time.Time       `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt" msgpack:"updatedAt"`
}

// NewJob creates a job in Idle status.
func NewJob(id string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusIdle,
		Files:     make([]StoredFile, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no mutable state with j.
func (j *Job) Clone() Job {
	c := *j
	c.Files = append([]StoredFile(nil), j.Files...)
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	return c
}
