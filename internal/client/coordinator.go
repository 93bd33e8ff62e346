package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/upload"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

// Options tunes a Coordinator. Zero values pick the defaults.
type Options struct {
	// PollInterval is the period between /status polls
	PollInterval time.Duration
	// PollTimeout bounds the whole polling phase; negative disables it
	PollTimeout time.Duration
	// MaxPolls gives up after this many polls; 0 means no count limit
	MaxPolls int
	// Stagger is the minimum gap between upload starts
	Stagger time.Duration
	// Concurrency caps in-flight uploads once the job is open
	Concurrency int
	Policy      upload.Policy
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PollTimeout == 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Policy.MaxSize == 0 && o.Policy.AllowedTypes == nil {
		o.Policy = upload.DefaultPolicy()
	}
	return o
}

// Summary is the outcome of one batch.
type Summary struct {
	JobID    string
	Files    []FileResult
	Uploaded int
	Failed   int
	Status   models.LifecycleStatus
	// Result is the engine's answer when /parse succeeded
	Result json.RawMessage
}

// Coordinator uploads a batch, triggers processing once and polls until the
// batch reaches a terminal status.
type Coordinator struct {
	client   *Client
	opts     Options
	reporter Reporter

	mu       sync.Mutex
	uploaded int
	status   models.LifecycleStatus
}

// NewCoordinator creates a coordinator for one batch. A nil reporter
// discards updates.
func NewCoordinator(c *Client, opts Options, reporter Reporter) *Coordinator {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Coordinator{
		client:   c,
		opts:     opts.withDefaults(),
		reporter: reporter,
		status:   models.StatusIdle,
	}
}

// Run drives the batch. Per-file failures are recorded in the summary, not
// returned; the error is non-nil only when ctx ends the run.
func (c *Coordinator) Run(ctx context.Context, paths []string) (*Summary, error) {
	summary := &Summary{Files: make([]FileResult, len(paths)), Status: models.StatusIdle}
	for i, p := range paths {
		summary.Files[i] = FileResult{Path: p, Name: filepath.Base(p), State: StateSelected}
		c.emitFile(summary.Files[i])
	}

	jobID, err := c.uploadAll(ctx, summary.Files)
	summary.JobID = jobID
	for _, f := range summary.Files {
		switch f.State {
		case StateUploaded:
			summary.Uploaded++
		case StateFailed:
			summary.Failed++
		}
	}
	if err != nil {
		return summary, err
	}

	if jobID == "" {
		return summary, nil
	}

	st, result, err := c.process(ctx, jobID)
	summary.Status = st
	summary.Result = result
	return summary, err
}

// uploadAll sends the first acceptable file alone to open a fresh job, then the
// rest concurrently under the stagger and concurrency limits.
func (c *Coordinator) uploadAll(ctx context.Context, files []FileResult) (string, error) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.opts.Stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(c.opts.Stagger), 1)
	}

	var jobID string
	next := 0
	for ; next < len(files) && jobID == ""; next++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}
		jobID = c.uploadOne(ctx, &files[next], "")
	}

	g := new(errgroup.Group)
	g.SetLimit(c.opts.Concurrency)
	var waitErr error
	for i := next; i < len(files); i++ {
		if waitErr = limiter.Wait(ctx); waitErr != nil {
			break
		}
		f := &files[i]
		g.Go(func() error {
			c.uploadOne(ctx, f, jobID)
			return nil
		})
	}
	g.Wait()

	if waitErr != nil {
		return jobID, waitErr
	}
	return jobID, ctx.Err()
}

// uploadOne walks a file through Validating and Uploading. It returns the
// job token on success.
func (c *Coordinator) uploadOne(ctx context.Context, f *FileResult, jobID string) string {
	c.setState(f, StateValidating, nil)

	info, err := os.Stat(f.Path)
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", f.Path)
	}
	if err != nil {
		c.setState(f, StateFailed, err)
		return ""
	}
	f.Size = info.Size()

	mimeType := upload.TypeByExtension(f.Name)
	req := upload.Request{OriginalName: f.Name, MimeType: mimeType, SizeBytes: f.Size}
	if err := c.opts.Policy.Validate(req); err != nil {
		c.setState(f, StateFailed, err)
		return ""
	}

	src, err := os.Open(f.Path)
	if err != nil {
		c.setState(f, StateFailed, err)
		return ""
	}
	defer src.Close()

	c.setState(f, StateUploading, nil)
	c.setStatus(models.StatusUploading)

	resp, err := c.client.Upload(ctx, Upload{
		Name:     f.Name,
		MimeType: mimeType,
		Size:     f.Size,
		Body:     src,
		JobID:    jobID,
		NewJob:   jobID == "",
		Progress: func(sent, total int64) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.reporter.Progress(f.Name, sent, total)
		},
	})
	if err != nil {
		c.setState(f, StateFailed, err)
		return ""
	}

	f.StoredName = resp.StoredName
	c.setState(f, StateUploaded, nil)
	return resp.JobID
}

// process triggers /parse once in the background and polls /status until the
// job is terminal, the poll budget runs out, or ctx ends.
func (c *Coordinator) process(ctx context.Context, jobID string) (models.LifecycleStatus, json.RawMessage, error) {
	parseCtx, cancelParse := context.WithCancel(ctx)
	defer cancelParse()

	type parseOutcome struct {
		resp *ParseResponse
		err  error
	}
	parseDone := make(chan parseOutcome, 1)
	go func() {
		resp, err := c.client.Parse(parseCtx, jobID)
		parseDone <- parseOutcome{resp, err}
	}()

	var deadline <-chan time.Time
	if c.opts.PollTimeout > 0 {
		timer := time.NewTimer(c.opts.PollTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var result json.RawMessage
	polls := 0
	poll := func() (models.LifecycleStatus, bool) {
		polls++
		report, err := c.client.Status(ctx, jobID)
		if err != nil {
			// a failed poll is retried on the next tick
			return models.LifecycleStatus{}, false
		}
		st := report.Lifecycle()
		c.setStatus(st)
		return st, st.Terminal()
	}

	for {
		select {
		case <-ctx.Done():
			return c.current(), result, ctx.Err()

		case <-deadline:
			return c.finish(models.StatusTimeout(fmt.Sprintf("no terminal status after %s", c.opts.PollTimeout))), result, nil

		case out := <-parseDone:
			parseDone = nil
			if out.err != nil && !isEngineFailure(out.err) {
				return c.finish(models.StatusError(out.err.Error())), result, nil
			}
			if out.resp != nil {
				result = out.resp.Result
			}
			if st, done := poll(); done {
				return st, result, nil
			}

		case <-ticker.C:
			if st, done := poll(); done {
				return st, result, nil
			}
		}

		if c.opts.MaxPolls > 0 && polls >= c.opts.MaxPolls {
			return c.finish(models.StatusTimeout(fmt.Sprintf("no terminal status after %d polls", polls))), result, nil
		}
	}
}

// isEngineFailure reports whether the server already recorded the failure on
// the job, so polling will observe it.
func isEngineFailure(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusBadGateway
}

func (c *Coordinator) emitFile(f FileResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reporter.FileChanged(f, c.uploaded)
}

func (c *Coordinator) setState(f *FileResult, state FileState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.State = state
	f.Err = err
	if state == StateUploaded {
		c.uploaded++
	}
	c.reporter.FileChanged(*f, c.uploaded)
}

func (c *Coordinator) setStatus(st models.LifecycleStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st == c.status {
		return
	}
	c.status = st
	c.reporter.StatusChanged(st)
}

func (c *Coordinator) finish(st models.LifecycleStatus) models.LifecycleStatus {
	c.setStatus(st)
	return st
}

func (c *Coordinator) current() models.LifecycleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
