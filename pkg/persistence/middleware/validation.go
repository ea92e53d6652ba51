package middleware

import (
	"context"
	"fmt"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/registry"
)

type validationMiddleware struct {
	next ports.ConfigStore
	reg  *registry.Registry
}

// NewValidationMiddleware rejects writes whose initial state is not a State
// variant registered in reg. Reads are not checked: a stored identity that
// stops resolving still loads, and the machine falls back to its default.
func NewValidationMiddleware(reg *registry.Registry) Middleware {
	return func(next ports.ConfigStore) ports.ConfigStore {
		return &validationMiddleware{next: next, reg: reg}
	}
}

func (m *validationMiddleware) Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config for machine %s", machineID)
	}
	if cfg.ID != "" && cfg.ID != machineID {
		return fmt.Errorf("config ID %q does not match machine %q", cfg.ID, machineID)
	}
	if !cfg.InitialState.IsZero() {
		identity := cfg.InitialState.Identity()
		e, ok := m.reg.Lookup(identity)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownType, identity)
		}
		if !machine.IsStateType(e.Type) {
			return fmt.Errorf("%w: %s", domain.ErrNotAState, identity)
		}
	}

	// Copy so the caller's config is left untouched.
	cloned := *cfg
	cloned.ID = machineID
	return m.next.Save(ctx, machineID, &cloned)
}

func (m *validationMiddleware) Load(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	return m.next.Load(ctx, machineID)
}

func (m *validationMiddleware) Delete(ctx context.Context, machineID string) error {
	return m.next.Delete(ctx, machineID)
}

func (m *validationMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
