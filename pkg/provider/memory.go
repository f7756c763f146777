package provider

import (
	"context"
	"sync"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// Memory is a provider over an in-memory list of records.
type Memory struct {
	id      string
	mu      sync.RWMutex
	records []*types.Record
	// queries counts the sequences actually ranged.
	queries int
}

// NewMemory creates a memory provider.
func NewMemory(id string, records ...*types.Record) *Memory {
	return &Memory{id: id, records: records}
}

// ID implements Provider.
func (m *Memory) ID() string { return m.id }

// Add appends records.
func (m *Memory) Add(records ...*types.Record) {
	m.mu.Lock()
	m.records = append(m.records, records...)
	m.mu.Unlock()
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Queries returns how many query sequences have started.
func (m *Memory) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

// Query implements Provider. Records are matched one per pull and yielded
// as copies.
func (m *Memory) Query(ctx context.Context, text string, _ types.ExecFlags) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		f := ParseFilter(text)
		m.mu.Lock()
		m.queries++
		snapshot := m.records
		m.mu.Unlock()

		for _, r := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(types.Pending, err)
				return
			}
			if !f.Match(r) {
				continue
			}
			if !yield(types.Value(r.Clone()), nil) {
				return
			}
		}
	}
}
