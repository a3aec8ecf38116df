package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store used for tests and single-instance
// development servers.
type Memory struct {
	mu      sync.RWMutex
	records map[Kind]map[string]Record
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[Kind]map[string]Record)}
}

func (m *Memory) Create(_ context.Context, rec Record) (Record, error) {
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.records[rec.Kind]
	if bucket == nil {
		bucket = make(map[string]Record)
		m.records[rec.Kind] = bucket
	}
	if _, exists := bucket[rec.ID]; exists {
		return Record{}, fmt.Errorf("%w: %s %s", ErrExists, rec.Kind, rec.ID)
	}

	stored := rec.Clone()
	stored.Version = 1
	bucket[rec.ID] = stored
	return stored.Clone(), nil
}

func (m *Memory) Update(_ context.Context, rec Record) (Record, error) {
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[rec.Kind][rec.ID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s %s", ErrNotFound, rec.Kind, rec.ID)
	}
	if current.Version != rec.Version {
		return Record{}, fmt.Errorf("%w: %s %s at version %d, update based on %d",
			ErrConflict, rec.Kind, rec.ID, current.Version, rec.Version)
	}

	stored := rec.Clone()
	stored.Version = current.Version + 1
	m.records[rec.Kind][rec.ID] = stored
	return stored.Clone(), nil
}

func (m *Memory) Get(_ context.Context, kind Kind, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[kind][id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return rec.Clone(), nil
}

func (m *Memory) Scan(_ context.Context, kind Kind, match func(Record) bool) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.records[kind] {
		if match == nil || match(rec.Clone()) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Delete(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[kind][id]; !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	delete(m.records[kind], id)
	return nil
}

func (m *Memory) Close() error { return nil }
