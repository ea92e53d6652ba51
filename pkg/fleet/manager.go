package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/host"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a config lock outlives a replica that died holding it.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates machine config access and builds machines from it.
// Per-machine locks are reference counted and dropped when unused.
type Manager struct {
	store ports.ConfigStore

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active per-machine locks

	locker   ports.ConfigLocker // optional, for multi-replica deployments
	lockTTL  time.Duration
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker makes config writes also take a lock shared with other replicas.
func WithLocker(locker ports.ConfigLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL passed to the ConfigLocker.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and the machines it spawns.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRegistry sets the registry used to validate and resolve variants.
func WithRegistry(reg *registry.Registry) Option {
	return func(m *Manager) {
		m.registry = reg
	}
}

// WithHooks sets lifecycle hooks installed on every spawned machine.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// NewManager creates a fleet manager over the given config store.
func NewManager(store ports.ConfigStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		registry: registry.Default(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(machineID) after unlocking.
func (m *Manager) acquire(machineID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[machineID]
	if !exists {
		entry = &lockEntry{}
		m.locks[machineID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(machineID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[machineID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, machineID)
	}
}

// Load retrieves an existing config from the store.
func (m *Manager) Load(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	var cfg *domain.MachineConfig
	err := m.WithLock(ctx, machineID, func(ctx context.Context) error {
		var err error
		cfg, err = m.store.Load(ctx, machineID)
		return err
	})
	return cfg, err
}

// LoadOrCreate loads a config, creating and persisting an empty one if it
// does not exist. An empty machineID gets a generated one.
func (m *Manager) LoadOrCreate(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	if machineID == "" {
		machineID = uuid.NewString()
	}

	var cfg *domain.MachineConfig
	err := m.WithLock(ctx, machineID, func(ctx context.Context) error {
		var err error
		cfg, err = m.loadOrNew(ctx, machineID)
		if err != nil || cfg.ID != "" {
			return err
		}
		cfg.ID = machineID
		if err := m.store.Save(ctx, machineID, cfg); err != nil {
			return fmt.Errorf("failed to initialize machine config: %w", err)
		}
		return nil
	})
	return cfg, err
}

// loadOrNew returns the stored config, or a zero config (empty ID) if none.
func (m *Manager) loadOrNew(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	cfg, err := m.store.Load(ctx, machineID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrConfigNotFound) {
		return nil, fmt.Errorf("failed to check machine existence: %w", err)
	}
	return &domain.MachineConfig{}, nil
}

// Save persists a machine config.
func (m *Manager) Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error {
	return m.WithLock(ctx, machineID, func(ctx context.Context) error {
		return m.store.Save(ctx, machineID, cfg)
	})
}

// Delete removes a machine config.
func (m *Manager) Delete(ctx context.Context, machineID string) error {
	return m.WithLock(ctx, machineID, func(ctx context.Context) error {
		return m.store.Delete(ctx, machineID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying config store.
func (m *Manager) Store() ports.ConfigStore {
	return m.store
}

// Registry returns the registry used to validate variants.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// SetInitialState points a machine's initial state at the variant with the
// given identity, creating the config if needed. Only registered State
// variants are accepted; an empty identity clears the setting.
func (m *Manager) SetInitialState(ctx context.Context, machineID, identity string) (*domain.MachineConfig, error) {
	if machineID == "" {
		return nil, fmt.Errorf("machineID cannot be empty")
	}

	var target *registry.Entry
	if identity != "" {
		e, ok := m.registry.Lookup(identity)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownType, identity)
		}
		if !machine.IsStateType(e.Type) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotAState, identity)
		}
		target = &e
	}

	var cfg *domain.MachineConfig
	err := m.WithLock(ctx, machineID, func(ctx context.Context) error {
		var err error
		cfg, err = m.loadOrNew(ctx, machineID)
		if err != nil {
			return err
		}
		if cfg.ID == "" {
			cfg.ID = machineID
		}
		if target != nil {
			cfg.InitialState.Set(target.Type)
		} else {
			cfg.InitialState.Set(nil)
		}
		return m.store.Save(ctx, machineID, cfg)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Initial state updated", "machine_id", machineID, "initial_state", identity)
	return cfg, nil
}

// Spawn loads the machine config, builds its host object and machine, and
// starts it. The returned machine is not yet driven by anything.
func (m *Manager) Spawn(ctx context.Context, machineID string) (*machine.Machine, error) {
	cfg, err := m.Load(ctx, machineID)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMachineNotFound, machineID)
		}
		return nil, err
	}
	return m.Build(cfg), nil
}

// Build creates and starts a machine from cfg.
func (m *Manager) Build(cfg *domain.MachineConfig) *machine.Machine {
	mach := machine.NewMachine(
		machine.WithID(cfg.ID),
		machine.WithObject(host.NewObject(cfg.ObjectName())),
		machine.WithInitialState(cfg.InitialState),
		machine.WithRegistry(m.registry),
		machine.WithLifecycleHooks(m.hooks),
		machine.WithLogger(m.logger),
	)
	mach.Start()
	return mach
}

// WithLock executes fn while holding the lock for the machine.
func (m *Manager) WithLock(ctx context.Context, machineID string, fn func(context.Context) error) error {
	entry := m.acquire(machineID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(machineID)
	}()

	if m.locker != nil {
		release, err := m.locker.Lock(ctx, machineID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("config lock for %s: %w", machineID, err)
		}
		defer func() {
			if err := release(ctx); err != nil {
				m.logger.Warn("Config lock release failed, left to expire",
					"machine_id", machineID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
