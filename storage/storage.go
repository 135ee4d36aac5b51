// Package storage loads run inputs (the activity catalog) and persists run outputs
// (curations and run logs) on local disk or S3.
package storage

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// Source loads one blob, typically the catalog.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// Sink stores named artifacts produced by a run.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) error
}

// TestSource is an in-memory Source for tests.
type TestSource struct {
	data []byte
	err  error
}

func NewTestSource(data []byte) *TestSource {
	return &TestSource{data: data}
}

func NewTestSourceWithError() *TestSource {
	return &TestSource{err: errors.New("not found")}
}

func (t *TestSource) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}

// MemorySink keeps saved artifacts in memory.
type MemorySink struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{saved: map[string][]byte{}}
}

func (m *MemorySink) Save(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[name] = append([]byte(nil), data...)
	return nil
}

// Saved returns a copy of everything saved so far.
func (m *MemorySink) Saved() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.saved)
}
