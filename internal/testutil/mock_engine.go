package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/legal-insight/docintake/internal/processing"
)

// MockEngine implements processing.Engine with a canned answer
type MockEngine struct {
	Result json.RawMessage
	Err    error
	// Block, when non-nil, holds Process until it is closed or ctx ends
	Block chan struct{}

	mu      sync.Mutex
	batches []processing.Batch
}

func (m *MockEngine) Name() string { return "mock" }

func (m *MockEngine) Process(ctx context.Context, batch processing.Batch) (json.RawMessage, error) {
	m.mu.Lock()
	m.batches = append(m.batches, batch)
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return json.RawMessage(`{"message":"Parsing completed"}`), nil
	}
	return m.Result, nil
}

// Batches returns every batch the engine was asked to process
func (m *MockEngine) Batches() []processing.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]processing.Batch(nil), m.batches...)
}

var _ processing.Engine = (*MockEngine)(nil)
