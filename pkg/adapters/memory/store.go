package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/stagehand/pkg/domain"
)

// Store implements ports.ConfigStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.MachineConfig
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.MachineConfig),
	}
}

// Save persists the config in memory.
// MachineConfig holds no reference types, so storing the value isolates it
// from later edits by the caller.
func (s *Store) Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[machineID] = *cfg
	return nil
}

// Load retrieves a copy of the config.
func (s *Store) Load(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.data[machineID]
	if !ok {
		return nil, domain.ErrConfigNotFound
	}
	return &cfg, nil
}

// Delete removes the config.
func (s *Store) Delete(ctx context.Context, machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, machineID)
	return nil
}

// List returns stored machine IDs in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}
