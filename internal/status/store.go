// Package status keeps the per-job lifecycle records that polling clients read.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/legal-insight/docintake/internal/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrNoJobs      = errors.New("no jobs have been created")
	ErrJobBusy     = errors.New("job is already being processed")
	ErrNoFiles     = errors.New("job has no files")
)

// Store holds one record per batch. Each record is last-write-wins.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	latest string
	now    func() time.Time
}

// NewStore creates an empty status store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

// Create issues a new job token in Idle status and makes it the latest job.
func (s *Store) Create() models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked().Clone()
}

// OpenOrCreate returns the latest job while it still accepts files (Idle or
// Uploading), and otherwise starts a new one. Uploads without a token land
// in the same batch until that batch is parsed.
func (s *Store) OpenOrCreate() models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[s.latest]; ok {
		switch job.Status.Phase {
		case models.PhaseIdle, models.PhaseUploading:
			return job.Clone()
		}
	}
	return s.createLocked().Clone()
}

func (s *Store) createLocked() *models.Job {
	job := models.NewJob(uuid.New().String())
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = job
	s.latest = job.ID
	return job
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return job.Clone(), true
}

// Resolve looks up id, or the most recently created job when id is empty.
func (s *Store) Resolve(id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "" {
		if s.latest == "" {
			return models.Job{}, ErrNoJobs
		}
		id = s.latest
	}
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

// Set replaces the job's status.
func (s *Store) Set(id string, st models.LifecycleStatus) error {
	return s.update(id, func(job *models.Job) error {
		job.Status = st
		return nil
	})
}

// StartProcessing moves a job to ParsingStarted unless a run is already in
// flight or nothing was uploaded to it.
func (s *Store) StartProcessing(id string) error {
	return s.update(id, func(job *models.Job) error {
		if job.Status.Phase == models.PhaseParsingStarted {
			return fmt.Errorf("%w: %s", ErrJobBusy, id)
		}
		if len(job.Files) == 0 {
			return fmt.Errorf("%w: %s", ErrNoFiles, id)
		}
		job.Status = models.StatusParsingStarted
		job.Result = nil
		return nil
	})
}

// AddFile records a stored file on the job and marks it Uploading. A job
// whose run is in flight takes no more files.
func (s *Store) AddFile(id string, file models.StoredFile) error {
	return s.update(id, func(job *models.Job) error {
		if job.Status.Phase == models.PhaseParsingStarted {
			return fmt.Errorf("%w: %s", ErrJobBusy, id)
		}
		job.Files = append(job.Files, file)
		job.Status = models.StatusUploading
		return nil
	})
}

// Complete stores the engine result and sets the terminal status in one step.
func (s *Store) Complete(id string, result json.RawMessage, st models.LifecycleStatus) error {
	return s.update(id, func(job *models.Job) error {
		job.Result = result
		job.Status = st
		return nil
	})
}

func (s *Store) update(id string, fn func(job *models.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err := fn(job); err != nil {
		return err
	}
	job.UpdatedAt = s.now()
	return nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// CleanupOldJobs removes jobs not updated within maxAge, except runs still in
// flight. The latest job is kept so polling without a token still answers.
func (s *Store) CleanupOldJobs(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if id == s.latest || job.Status.Phase == models.PhaseParsingStarted {
			continue
		}
		if job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
