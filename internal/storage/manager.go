package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/legal-insight/docintake/internal/models"
)

var (
	// ErrWrite wraps any disk or permission failure while storing a file.
	ErrWrite = errors.New("write error")
	// ErrTooLarge is returned when the stream exceeds the store's byte cap.
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrNotFound is returned for names that are not in the content directory.
	ErrNotFound = errors.New("file not found")
)

const partSuffix = ".part"

// Store defines the interface for the upload storage sink.
type Store interface {
	Save(prefix, originalName string, r io.Reader) (*models.StoredFile, error)
	Get(name string) (*models.StoredFile, error)
	List(limit int) ([]*models.StoredFile, error)
	Dir() string
}

// LocalStore implements Store on a single flat directory.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	maxBytes  int64
	clock     *nameClock
	// original names are only known for files stored by this process
	originals map[string]string
}

// NewLocalStore creates a new LocalStore. A maxBytes of zero disables the cap.
func NewLocalStore(uploadDir string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		clock:     newNameClock(time.Now),
		originals: make(map[string]string),
	}, nil
}

// Dir returns the content directory.
func (s *LocalStore) Dir() string {
	return s.uploadDir
}

// Save streams r into the content directory under a generated name.
// Bytes go to a hidden temp file first and are renamed into place only after
// a successful sync, so a crash never leaves a partial file under a final name.
func (s *LocalStore) Save(prefix, originalName string, r io.Reader) (*models.StoredFile, error) {
	name := GenerateName(prefix, s.clock.Next(), originalName)
	finalPath := filepath.Join(s.uploadDir, name)
	tmpPath := filepath.Join(s.uploadDir, "."+name+partSuffix)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating file: %v", ErrWrite, err)
	}

	src := r
	if s.maxBytes > 0 {
		// one extra byte tells an exact-limit file apart from an oversize one
		src = io.LimitReader(r, s.maxBytes+1)
	}

	size, err := io.Copy(f, src)
	if err == nil && s.maxBytes > 0 && size > s.maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: writing file: %v", ErrWrite, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: finalizing file: %v", ErrWrite, err)
	}

	s.mu.Lock()
	s.originals[name] = originalName
	s.mu.Unlock()

	return &models.StoredFile{
		GeneratedName: name,
		Path:          finalPath,
		OriginalName:  originalName,
		Size:          size,
		StoredAt:      time.Now(),
	}, nil
}

// Get returns metadata for a stored file by its generated name.
func (s *LocalStore) Get(name string) (*models.StoredFile, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	path := filepath.Join(s.uploadDir, name)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return s.describe(name, st), nil
}

// List returns the most recently stored files, newest first.
// Temp files from in-flight or crashed writes are skipped.
func (s *LocalStore) List(limit int) ([]*models.StoredFile, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}

	list := make([]*models.StoredFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, s.describe(e.Name(), st))
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].StoredAt.After(list[j].StoredAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

func (s *LocalStore) describe(name string, st os.FileInfo) *models.StoredFile {
	s.mu.RLock()
	original, ok := s.originals[name]
	s.mu.RUnlock()
	if !ok {
		original = name
	}

	return &models.StoredFile{
		GeneratedName: name,
		Path:          filepath.Join(s.uploadDir, name),
		OriginalName:  original,
		Size:          st.Size(),
		StoredAt:      st.ModTime(),
	}
}
