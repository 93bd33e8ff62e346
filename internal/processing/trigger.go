package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/status"
)

// DefaultTimeout bounds one engine run.
const DefaultTimeout = 5 * time.Minute

// ErrProcessing wraps every engine failure.
var ErrProcessing = errors.New("processing failed")

// Trigger runs the engine for a job and drives the job's lifecycle status.
type Trigger struct {
	store   *status.Store
	engine  Engine
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewTrigger creates a trigger. A zero timeout uses DefaultTimeout.
func NewTrigger(store *status.Store, engine Engine, uploadDir string, timeout time.Duration, logger *slog.Logger) *Trigger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		store:   store,
		engine:  engine,
		dir:     uploadDir,
		timeout: timeout,
		logger:  logger.With("component", "processing", "engine", engine.Name()),
	}
}

// Run processes the job (or the latest job when jobID is empty) and blocks
// until the engine answers. The engine call is detached from ctx's
// cancellation so a departing caller cannot strand the job in ParsingStarted;
// only the trigger's own timeout stops it.
func (t *Trigger) Run(ctx context.Context, jobID string) (job models.Job, err error) {
	job, err = t.store.Resolve(jobID)
	if err != nil {
		return job, err
	}
	if err = t.store.StartProcessing(job.ID); err != nil {
		return job, err
	}
	// The file list is frozen from here on.
	job, _ = t.store.Get(job.ID)

	log := t.logger.With("job_id", job.ID)
	log.Info("parsing started", "files", len(job.Files))
	start := time.Now()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("engine panicked", "panic", r)
			err = fmt.Errorf("%w: engine panicked: %v", ErrProcessing, r)
			t.store.Complete(job.ID, nil, models.StatusError(err.Error()))
			job, _ = t.store.Get(job.ID)
		}
	}()

	result, engineErr := t.engine.Process(runCtx, Batch{
		JobID:     job.ID,
		Directory: t.dir,
		Files:     job.Files,
	})
	if engineErr != nil {
		detail := engineErr.Error()
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			detail = fmt.Sprintf("engine did not answer within %s", t.timeout)
		}
		log.Error("parsing failed", "error", engineErr, "elapsed", time.Since(start))
		t.store.Complete(job.ID, nil, models.StatusError(detail))
		job, _ = t.store.Get(job.ID)
		return job, fmt.Errorf("%w: %s", ErrProcessing, detail)
	}

	t.store.Complete(job.ID, result, models.StatusParsingCompleted)
	log.Info("parsing completed", "elapsed", time.Since(start))

	job, _ = t.store.Get(job.ID)
	return job, nil
}
