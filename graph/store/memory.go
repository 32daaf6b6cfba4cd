package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dshills/draftloop/graph/emit"
)

// MemStore is an in-memory Store for tests and single-process runs.
// Data is lost when the process exits.
type MemStore struct {
	mu     sync.RWMutex
	events map[string][]emit.Event
	closed bool
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{events: make(map[string][]emit.Event)}
}

func (m *MemStore) Append(ctx context.Context, event emit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	event.Meta = copyMeta(event.Meta)
	m.events[event.RunID] = append(m.events[event.RunID], event)
	return nil
}

func (m *MemStore) Events(ctx context.Context, runID string) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	events, ok := m.events[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]emit.Event, len(events))
	for i, e := range events {
		e.Meta = copyMeta(e.Meta)
		out[i] = e
	}
	return out, nil
}

func (m *MemStore) Runs(ctx context.Context) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	runs := make([]RunSummary, 0, len(m.events))
	for id, events := range m.events {
		runs = append(runs, summarize(id, events))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Last.Equal(runs[j].Last) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].Last.After(runs[j].Last)
	})
	return runs, nil
}

func (m *MemStore) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.events, runID)
	return nil
}

// Close marks the store closed. Calling it twice is a no-op.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyMeta(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
