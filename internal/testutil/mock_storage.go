// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/storage"
)

// MockStorage implements storage.Store in memory for testing
type MockStorage struct {
	files    map[string]*models.StoredFile
	fileData map[string][]byte
	saves    int
	// SaveErr, when set, is returned by every Save call
	SaveErr error
	mu      sync.RWMutex
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.StoredFile),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(prefix, originalName string, r io.Reader) (*models.StoredFile, error) {
	m.mu.Lock()
	m.saves++
	saveErr := m.SaveErr
	m.mu.Unlock()

	if saveErr != nil {
		return nil, saveErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrWrite, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := storage.GenerateName(prefix, nextTestStamp(), originalName)
	file := &models.StoredFile{
		GeneratedName: name,
		Path:          "/mock/uploads/" + name,
		OriginalName:  originalName,
		Size:          int64(len(data)),
		StoredAt:      time.Now(),
	}
	m.files[name] = file
	m.fileData[name] = data
	return file, nil
}

func (m *MockStorage) Get(name string) (*models.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return file, nil
}

func (m *MockStorage) List(limit int) ([]*models.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.StoredFile, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].GeneratedName > files[j].GeneratedName })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *MockStorage) Dir() string {
	return "/mock/uploads"
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// GetFileData returns the stored content
func (m *MockStorage) GetFileData(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[name]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// SaveCalls returns how many times Save was invoked, including failed calls
func (m *MockStorage) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

var (
	testStamp      int64 = 1700000000000
	testStampMutex sync.Mutex
)

func nextTestStamp() int64 {
	testStampMutex.Lock()
	defer testStampMutex.Unlock()
	testStamp++
	return testStamp
}
