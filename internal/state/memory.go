// Package state persists generation run state and sitemap deltas outside SQL.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// MemoryStore keeps the progress state of the in-flight run in process. State is
// stored encoded so callers never share buffers with the store.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored state, or nil when there is none.
func (m *MemoryStore) Load(_ context.Context) (*domain.ProgressState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, nil
	}
	return decode(m.data)
}

// Save replaces the stored state.
func (m *MemoryStore) Save(_ context.Context, state *domain.ProgressState) error {
	data, marshalErr := json.Marshal(state)
	if marshalErr != nil {
		return fmt.Errorf("encode progress state: %w", marshalErr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// Delete removes the stored state.
func (m *MemoryStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func decode(data []byte) (*domain.ProgressState, error) {
	var state domain.ProgressState
	if unmarshalErr := json.Unmarshal(data, &state); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStateCorrupt, unmarshalErr)
	}
	return &state, nil
}

// MemoryDeltaStore keeps sitemap deltas in process.
type MemoryDeltaStore struct {
	mu     sync.RWMutex
	deltas map[string][]domain.Delta
}

// NewMemoryDeltaStore creates an empty MemoryDeltaStore.
func NewMemoryDeltaStore() *MemoryDeltaStore {
	return &MemoryDeltaStore{deltas: make(map[string][]domain.Delta)}
}

// Insert upserts a delta by context, run and index.
func (m *MemoryDeltaStore) Insert(_ context.Context, delta *domain.Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := *delta
	d.Payload = slices.Clone(delta.Payload)
	d.Published = false

	list := m.deltas[d.Context]
	idx := slices.IndexFunc(list, func(x domain.Delta) bool {
		return !x.Published && x.RunID == d.RunID && x.DeltaIndex == d.DeltaIndex
	})
	if idx >= 0 {
		list[idx] = d
	} else {
		list = append(list, d)
	}
	m.deltas[d.Context] = list
	return nil
}

// DeletePending removes the unpublished deltas of a context.
func (m *MemoryDeltaStore) DeletePending(_ context.Context, sitemapContext string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deltas[sitemapContext] = slices.DeleteFunc(m.deltas[sitemapContext], func(d domain.Delta) bool {
		return !d.Published
	})
	return nil
}

// Publish replaces the published deltas of a context with the deltas of runID.
func (m *MemoryDeltaStore) Publish(_ context.Context, sitemapContext, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := slices.DeleteFunc(m.deltas[sitemapContext], func(d domain.Delta) bool {
		return d.Published && d.RunID != runID
	})
	for i := range list {
		if list[i].RunID == runID {
			list[i].Published = true
		}
	}
	m.deltas[sitemapContext] = list
	return nil
}

// ListPublished returns the published deltas of a context without payloads.
func (m *MemoryDeltaStore) ListPublished(_ context.Context, sitemapContext string) ([]domain.Delta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Delta
	for _, d := range m.deltas[sitemapContext] {
		if d.Published {
			d.Payload = nil
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeltaIndex < out[j].DeltaIndex })
	return out, nil
}

// GetPublished returns one published delta.
func (m *MemoryDeltaStore) GetPublished(_ context.Context, sitemapContext string, deltaIndex int) (*domain.Delta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.deltas[sitemapContext] {
		if d.Published && d.DeltaIndex == deltaIndex {
			d.Payload = slices.Clone(d.Payload)
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Pending returns the number of unpublished deltas of a context.
func (m *MemoryDeltaStore) Pending(sitemapContext string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, d := range m.deltas[sitemapContext] {
		if !d.Published {
			n++
		}
	}
	return n
}
