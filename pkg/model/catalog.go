package model

import (
	"context"
	"sort"
	"sync"
)

// Catalog persists the namespace.
//
// Commit applies removals first, then saves, as a single unit.
type Catalog interface {
	Load(context.Context) (Entries, error)
	Commit(ctx context.Context, removed []string, saved ...Entry) error
}

// NewMemoryCatalog builds a catalog held in memory
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[string]Entry)}
}

// MemoryCatalog is a catalog held in memory, safe for concurrent use
type MemoryCatalog struct {
	mx      sync.Mutex
	entries map[string]Entry
	commits int
}

// Load all entries, sorted by path
func (m *MemoryCatalog) Load(_ context.Context) (Entries, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	res := make(Entries, 0, len(m.entries))
	for _, e := range m.entries {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Path < res[j].Path })
	return res, nil
}

// Commit removals and saves
func (m *MemoryCatalog) Commit(_ context.Context, removed []string, saved ...Entry) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, p := range removed {
		delete(m.entries, p)
	}
	for _, e := range saved {
		m.entries[e.Path] = e
	}
	m.commits++
	return nil
}

// Commits counts the commits applied so far
func (m *MemoryCatalog) Commits() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.commits
}

// Discard is a catalog which persists nothing
var Discard Catalog = discard{}

type discard struct{}

func (discard) Load(context.Context) (Entries, error) { return nil, nil }

func (discard) Commit(context.Context, []string, ...Entry) error { return nil }
