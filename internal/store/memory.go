package store

import (
	"sync"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

// Memory is an in-memory store with the same Load/Append contract as CSV.
// It backs tests and keeps both components runnable without a filesystem.
type Memory struct {
	mu           sync.RWMutex
	observations []domain.Observation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns a copy of all stored observations. The RowError slice is
// always nil: in-memory rows cannot be malformed.
func (s *Memory) Load() ([]domain.Observation, []domain.RowError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Observation, len(s.observations))
	copy(out, s.observations)
	return out, nil, nil
}

// Append adds rows to the store.
func (s *Memory) Append(observations []domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observations = append(s.observations, observations...)
	return nil
}
