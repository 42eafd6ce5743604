package semantic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// NewMemory builds an in-memory side-table
func NewMemory() *Memory {
	return &Memory{
		bySubject: make(map[string][]Assertion),
	}
}

// Memory is a side-table held in memory, safe for concurrent use
type Memory struct {
	mx        sync.RWMutex
	bySubject map[string][]Assertion
}

// RecordAssertion appends an assertion. A missing ID or timestamp is filled in.
func (m *Memory) RecordAssertion(ctx context.Context, a Assertion) error {
	if err := a.Validate(); err != nil {
		return err
	}
	Stamp(&a)

	m.mx.Lock()
	defer m.mx.Unlock()
	m.bySubject[a.Subject] = append(m.bySubject[a.Subject], a)
	return nil
}

// QueryAssertions returns all assertions about a subject, oldest first
func (m *Memory) QueryAssertions(ctx context.Context, subject string) ([]Assertion, error) {
	m.mx.RLock()
	found := append([]Assertion(nil), m.bySubject[subject]...)
	m.mx.RUnlock()

	SortAssertions(found)
	return found, nil
}

// Stamp fills in the identifier and the time of an assertion when missing
func Stamp(a *Assertion) {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	if a.ID == "" {
		id, err := ksuid.NewRandomWithTime(a.At)
		if err != nil {
			id = ksuid.New()
		}
		a.ID = id.String()
	}
}

// SortAssertions orders assertions by time, then by identifier
func SortAssertions(as []Assertion) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].At.Equal(as[j].At) {
			return as[i].At.Before(as[j].At)
		}
		return as[i].ID < as[j].ID
	})
}
