package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

// MockStore is a minimal in-memory ConfigStore used to exercise the contract itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.MachineConfig
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.MachineConfig),
	}
}

func (m *MockStore) Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[machineID] = *cfg
	return nil
}

func (m *MockStore) Load(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.data[machineID]
	if !ok {
		return nil, domain.ErrConfigNotFound
	}
	return &cfg, nil
}

func (m *MockStore) Delete(ctx context.Context, machineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, machineID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestConfigStore_Contract(t *testing.T) {
	ports.RunConfigStoreContract(t, NewMockStore())
}
