package undo

import (
	"sync"
	"time"
)

// MemoryStore is the in-process Store. Slots vanish on restart, which is
// acceptable for a single-step undo; deployments that need persistence use
// GormStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uint]memoryEntry
}

type memoryEntry struct {
	op         Operation
	recordedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uint]memoryEntry)}
}

func (s *MemoryStore) Record(projectID uint, op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[projectID] = memoryEntry{op: op, recordedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Get(projectID uint) (Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[projectID]
	if !ok {
		return nil, ErrNoOperation
	}
	return entry.op, nil
}

func (s *MemoryStore) Clear(projectID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, projectID)
	return nil
}

func (s *MemoryStore) Sweep(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for projectID, entry := range s.entries {
		if entry.recordedAt.Before(cutoff) {
			delete(s.entries, projectID)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many projects currently hold an undo slot. Useful for
// testing.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
