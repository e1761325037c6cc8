package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
)

// Memory is an in-process ClassificationCache with brute-force nearest search.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
	now     func() time.Time
}

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int), now: time.Now}
}

// Nearest scans all entries.
func (m *Memory) Nearest(_ context.Context, vec []float32) (Entry, float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best, bestSim, found := Entry{}, -1.0, false
	for _, e := range m.entries {
		if s := domain.Similarity(vec, e.Embedding); s > bestSim {
			best, bestSim, found = e, s, true
		}
	}
	if !found {
		return Entry{}, 0, false, nil
	}
	return best, bestSim, true, nil
}

// Put stores an entry; an existing id is overwritten.
func (m *Memory) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.LastUsedAt.IsZero() {
		e.LastUsedAt = m.now()
	}
	e.Embedding = append([]float32(nil), e.Embedding...)
	if i, ok := m.byID[e.ID]; ok {
		m.entries[i] = e
		return nil
	}
	m.byID[e.ID] = len(m.entries)
	m.entries = append(m.entries, e)
	return nil
}

// Touch bumps usage of an entry.
func (m *Memory) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.entries[i].UsageCount++
	m.entries[i].LastUsedAt = m.now()
	return nil
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// MemoryHash is an in-process HashCache.
type MemoryHash struct {
	mu sync.RWMutex
	m  map[string]classification.Result
}

// NewMemoryHash creates an empty hash cache.
func NewMemoryHash() *MemoryHash {
	return &MemoryHash{m: make(map[string]classification.Result)}
}

// Get returns the cached result for a content hash.
func (h *MemoryHash) Get(_ context.Context, hash string) (classification.Result, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.m[hash]
	return r, ok, nil
}

// Put stores a result.
func (h *MemoryHash) Put(_ context.Context, hash string, r classification.Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[hash] = r
	return nil
}

// Len returns the number of cached hashes.
func (h *MemoryHash) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.m)
}
