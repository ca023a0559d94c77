package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// MemoryStore is an in-process Store used by the one-shot CLI and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]*state.WorkflowState
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*state.WorkflowState)}
}

// Load returns a deep copy of the checkpointed state.
func (m *MemoryStore) Load(_ context.Context, jobID string) (*state.WorkflowState, error) {
	m.mu.RLock()
	s, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %q: %w", jobID, ErrNotFound)
	}
	return s.Clone()
}

// Save stores a deep copy so later caller mutations never leak in.
func (m *MemoryStore) Save(_ context.Context, jobID string, s *state.WorkflowState) error {
	c, err := s.Clone()
	if err != nil {
		return fmt.Errorf("clone state: %w", err)
	}
	m.mu.Lock()
	m.jobs[jobID] = c
	m.saves++
	m.mu.Unlock()
	return nil
}

// Saves returns the number of Save calls. Test hook.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
