// Package journal implements paxos.Journal: an in-memory store for
// tests and a durable, append-only file store for production, both
// grounded on the teacher's src/store/redis.go in-memory map pattern
// (a sync.RWMutex-guarded map is sufficient once the durable path is
// handled separately — the teacher's Redis store never persisted
// either).
package journal

import (
	"context"
	"sync"

	"github.com/latticedb/lattice/internal/paxos"
)

// Memory is a non-durable paxos.Journal, for tests and for the
// transient recovery rounds that don't need to survive a restart.
type Memory struct {
	mu       sync.RWMutex
	progress paxos.Progress
	accepts  map[int64]paxos.Accept
}

func NewMemory() *Memory {
	return &Memory{accepts: make(map[int64]paxos.Accept)}
}

func (m *Memory) Load(ctx context.Context) (paxos.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress, nil
}

func (m *Memory) Save(ctx context.Context, p paxos.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = p
	return nil
}

func (m *Memory) Accept(ctx context.Context, a paxos.Accept) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepts[a.ID.LogIndex] = a
	return nil
}

func (m *Memory) Accepted(ctx context.Context, logIndex int64) (paxos.Accept, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accepts[logIndex]
	return a, ok, nil
}

func (m *Memory) Bounds(ctx context.Context) (min, max int64, ok bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	first := true
	for idx := range m.accepts {
		if first {
			min, max = idx, idx
			first = false
			continue
		}
		if idx < min {
			min = idx
		}
		if idx > max {
			max = idx
		}
	}
	return min, max, !first, nil
}
