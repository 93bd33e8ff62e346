// Package client talks to the docintake server and coordinates upload batches.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/legal-insight/docintake/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgpack = "application/msgpack"

// ErrNetwork marks transport failures: the server was not reached or the
// connection broke before a response arrived.
var ErrNetwork = errors.New("network error")

// ServerError is a non-2xx answer. Message is the server's error text.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// UploadResponse is the server's answer to a successful upload
type UploadResponse struct {
	Message      string `json:"message"`
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName"`
	JobID        string `json:"jobId"`
}

// ParseResponse is the server's answer to a finished parse run
type ParseResponse struct {
	Message string          `json:"message"`
	JobID   string          `json:"jobId"`
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// StatusReport is one poll of /status
type StatusReport struct {
	Status    string       `msgpack:"status"`
	Phase     models.Phase `msgpack:"phase"`
	Detail    string       `msgpack:"detail,omitempty"`
	JobID     string       `msgpack:"jobId,omitempty"`
	Files     int          `msgpack:"files"`
	UpdatedAt *time.Time   `msgpack:"updatedAt,omitempty"`
}

// Lifecycle returns the report as a status value
func (r *StatusReport) Lifecycle() models.LifecycleStatus {
	return models.LifecycleStatus{Phase: r.Phase, Detail: r.Detail}
}

// Upload describes one file to send
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
	// JobID joins an existing batch. Empty joins the server's open batch,
	// or starts a new one when NewJob is set.
	JobID  string
	NewJob bool
	// Progress, when set, is called as bytes leave the client
	Progress func(sent, total int64)
}

// Client is a thin HTTP client for the upload API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL. A nil httpClient uses one without a
// global timeout; calls are bounded by their context.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Upload streams u as multipart field "file" to POST /upload.
func (c *Client) Upload(ctx context.Context, u Upload) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, u))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var resp UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(mw *multipart.Writer, u Upload) error {
	if u.JobID != "" {
		if err := mw.WriteField("jobId", u.JobID); err != nil {
			return err
		}
	} else if u.NewJob {
		if err := mw.WriteField("newJob", "true"); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(u.Name)))
	if u.MimeType != "" {
		h.Set("Content-Type", u.MimeType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	src := u.Body
	if u.Progress != nil {
		src = &progressReader{r: u.Body, total: u.Size, report: u.Progress}
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// Parse calls POST /parse for jobID and waits for the engine to finish.
func (c *Client) Parse(ctx context.Context, jobID string) (*ParseResponse, error) {
	target := c.baseURL + "/parse"
	if jobID != "" {
		target += "?jobId=" + url.QueryEscape(jobID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var resp ParseResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status polls GET /status for jobID, or for the latest job when empty.
func (c *Client) Status(ctx context.Context, jobID string) (*StatusReport, error) {
	target := c.baseURL + "/status"
	if jobID != "" {
		target += "?jobId=" + url.QueryEscape(jobID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", mimeMsgpack)

	var resp StatusReport
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends req and decodes a 2xx body into out by content type.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := &ServerError{StatusCode: resp.StatusCode}
		var wire struct {
			Error   string `json:"error"`
			Code    string `json:"code"`
			Details string `json:"details"`
		}
		if json.Unmarshal(body, &wire) == nil {
			serverErr.Message = wire.Error
			serverErr.Code = wire.Code
			serverErr.Details = wire.Details
		}
		return serverErr
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), mimeMsgpack) {
		if err := msgpack.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding msgpack response: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
