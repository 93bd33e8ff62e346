// Package processing triggers the external document engine for a batch and
// records the outcome on the batch's status.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/legal-insight/docintake/internal/models"
)

// maxDetail bounds how much of an engine's error output ends up in a status.
const maxDetail = 512

// Batch is what the engine is asked to process.
type Batch struct {
	JobID     string              `json:"jobId"`
	Directory string              `json:"directory"`
	Files     []models.StoredFile `json:"files"`
}

// Engine is the opaque document processor.
type Engine interface {
	Name() string
	Process(ctx context.Context, batch Batch) (json.RawMessage, error)
}

// HTTPEngine posts the batch to a remote processing endpoint.
type HTTPEngine struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPEngine creates an engine that calls endpoint. Deadlines come from the
// caller's context, so the client itself has no timeout.
func NewHTTPEngine(endpoint string) *HTTPEngine {
	return &HTTPEngine{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

func (e *HTTPEngine) Name() string { return "http" }

// Process sends the batch as JSON and returns the response body.
func (e *HTTPEngine) Process(ctx context.Context, batch Batch) (json.RawMessage, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach engine: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("engine returned %d: %s", resp.StatusCode, truncate(string(body)))
	}

	return asJSON(body), nil
}

// CommandEngine runs a local parser program over the batch.
type CommandEngine struct {
	command string
	args    []string
}

// NewCommandEngine creates an engine that runs command with args followed by
// the paths of the batch's files.
func NewCommandEngine(command string, args ...string) *CommandEngine {
	return &CommandEngine{command: command, args: args}
}

func (e *CommandEngine) Name() string { return "command" }

// Process runs the command and returns its stdout.
func (e *CommandEngine) Process(ctx context.Context, batch Batch) (json.RawMessage, error) {
	args := append([]string(nil), e.args...)
	for _, f := range batch.Files {
		args = append(args, f.Path)
	}

	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Dir = batch.Directory
	cmd.Env = append(os.Environ(),
		"DOCINTAKE_JOB_ID="+batch.JobID,
		"DOCINTAKE_UPLOAD_DIR="+batch.Directory,
	)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", e.command, err, truncate(msg))
		}
		return nil, fmt.Errorf("%s failed: %w", e.command, err)
	}

	return asJSON(stdout.Bytes()), nil
}

// asJSON passes JSON bodies through and wraps anything else as {"output": ...}.
func asJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"output": string(trimmed)})
	return wrapped
}

// truncate caps s at maxDetail bytes without splitting a multi-byte rune.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDetail {
		return s
	}
	cut := maxDetail
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
