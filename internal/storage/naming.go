package storage

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPrefix matches the multipart field name uploads arrive under.
const DefaultPrefix = "file"

// nameClock hands out strictly increasing millisecond stamps so that two
// saves within the same millisecond still get distinct names.
type nameClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func newNameClock(now func() time.Time) *nameClock {
	return &nameClock{now: now}
}

// Next returns the wall-clock millisecond, bumped past the previous value if needed.
func (c *nameClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// GenerateName builds "<prefix>-<millis><ext>" keeping the original extension.
func GenerateName(prefix string, millis int64, originalName string) string {
	prefix = sanitize(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}

	name := prefix + "-" + strconv.FormatInt(millis, 10)

	ext := strings.TrimPrefix(filepath.Ext(filepath.Base(originalName)), ".")
	if ext = sanitize(ext); ext != "" {
		name += "." + ext
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, s)
}
