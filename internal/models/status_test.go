package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleStatus_String(t *testing.T) {
	tests := []struct {
		status LifecycleStatus
		want   string
	}{
		{StatusIdle, "Idle"},
		{LifecycleStatus{}, "Idle"},
		{StatusUploading, "Uploading..."},
		{StatusParsingStarted, "Parsing started..."},
		{StatusParsingCompleted, "Parsing completed!"},
		{StatusError("engine returned 500"), "Error: engine returned 500"},
		{StatusTimeout("gave up after 3 polls"), "Timeout: gave up after 3 polls"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestLifecycleStatus_Terminal(t *testing.T) {
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusUploading.Terminal())
	assert.False(t, StatusParsingStarted.Terminal())
	assert.True(t, StatusParsingCompleted.Terminal())
	assert.True(t, StatusError("x").Terminal())
	assert.True(t, StatusTimeout("x").Terminal())
}

func TestJob_Clone(t *testing.T) {
	j := NewJob("job-1")
	j.Files = append(j.Files, StoredFile{GeneratedName: "file-1.txt"})
	j.Result = []byte(`{"ok":true}`)

	c := j.Clone()
	c.Files[0].GeneratedName = "changed"
	c.Result[0] = '['

	assert.Equal(t, "file-1.txt", j.Files[0].GeneratedName)
	assert.Equal(t, `{"ok":true}`, string(j.Result))
}
