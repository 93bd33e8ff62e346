package processing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/legal-insight/docintake/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEngine_Process(t *testing.T) {
	var received Batch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Parsing completed"}`))
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL)
	result, err := e.Process(context.Background(), Batch{
		JobID:     "job-1",
		Directory: "/up",
		Files:     []models.StoredFile{{GeneratedName: "file-1.pdf"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Parsing completed"}`, string(result))
	assert.Equal(t, "job-1", received.JobID)
	assert.Equal(t, "file-1.pdf", received.Files[0].GeneratedName)
}

func TestHTTPEngine_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Error during parsing.", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPEngine(srv.URL).Process(context.Background(), Batch{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine returned 500: Error during parsing.")
}

func TestHTTPEngine_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPEngine(url).Process(context.Background(), Batch{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach engine")
}

func TestCommandEngine_Process(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	e := NewCommandEngine("sh", "-c", `echo "job=$DOCINTAKE_JOB_ID files=$#"`, "parser")
	result, err := e.Process(context.Background(), Batch{
		JobID:     "job-7",
		Directory: dir,
		Files:     []models.StoredFile{{Path: dir + "/a.txt"}, {Path: dir + "/b.txt"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"job=job-7 files=2"}`, string(result))
}

func TestCommandEngine_Failure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	e := NewCommandEngine("sh", "-c", `echo "cannot open docx" >&2; exit 3`)
	_, err := e.Process(context.Background(), Batch{Directory: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open docx")
}

func TestAsJSON(t *testing.T) {
	assert.JSONEq(t, `{}`, string(asJSON(nil)))
	assert.JSONEq(t, `[1,2]`, string(asJSON([]byte(" [1,2]\n"))))
	assert.JSONEq(t, `{"output":"done"}`, string(asJSON([]byte("done\n"))))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		cut     bool
	}{
		{"short text kept", "  engine down \n", len("engine down"), false},
		{"ascii cut at limit", strings.Repeat("x", maxDetail+10), maxDetail, true},
		// 'é' is two bytes, so byte maxDetail-1 starts a rune that would be split
		{"multi-byte rune not split", "x" + strings.Repeat("é", maxDetail), maxDetail - 1, true},
		{"four-byte runes", strings.Repeat("😀", maxDetail), maxDetail, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in)

			assert.True(t, utf8.ValidString(got), "truncated detail is not valid UTF-8: %q", got)
			if tt.cut {
				require.True(t, strings.HasSuffix(got, "..."))
				assert.Len(t, strings.TrimSuffix(got, "..."), tt.wantLen)
			} else {
				assert.Len(t, got, tt.wantLen)
			}
		})
	}
}
