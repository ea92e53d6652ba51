package ports

import (
	"context"

	"github.com/aretw0/stagehand/pkg/domain"
)

// ConfigStore defines the interface for persisting machine configuration.
// Only the durable part of a machine is stored: its ID, host object name and
// initial state reference.
type ConfigStore interface {
	// Save persists the config for a given machine ID.
	Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error

	// Load retrieves the config for a given machine ID.
	// Returns domain.ErrConfigNotFound if the machine does not exist.
	Load(ctx context.Context, machineID string) (*domain.MachineConfig, error)

	// Delete removes the config for a given machine ID.
	// Deleting an unknown machine is not an error.
	Delete(ctx context.Context, machineID string) error

	// List returns all stored machine IDs.
	List(ctx context.Context) ([]string, error)
}
