package fleet_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/fleet"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/aretw0/stagehand/pkg/typeref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Idle struct {
	machine.Base
	entered int
}

func (s *Idle) OnEnter() { s.entered++ }

type Patrol struct{ machine.Base }

type notAState struct{}

func newRegistry() *registry.Registry {
	reg := registry.NewRegistry()
	machine.RegisterIn[machine.Default](reg)
	machine.RegisterIn[Idle](reg)
	machine.RegisterIn[Patrol](reg)
	reg.Register(reflect.TypeFor[*notAState](), nil)
	return reg
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data   map[string]domain.MachineConfig
	mu     sync.Mutex
	active int
	peak   int
}

func (s *SlowStore) enter() {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
}

func (s *SlowStore) leave() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *SlowStore) Save(ctx context.Context, id string, cfg *domain.MachineConfig) error {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]domain.MachineConfig)
	}
	s.data[id] = *cfg
	return nil
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.MachineConfig, error) {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.data[id]; ok {
		return &cfg, nil
	}
	return nil, domain.ErrConfigNotFound
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_LockingSerializesSameMachine(t *testing.T) {
	store := &SlowStore{}
	manager := fleet.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Save(ctx, "race", &domain.MachineConfig{ID: "race"}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.peak, "writes to one machine must not overlap")
}

func TestManager_LoadOrCreate(t *testing.T) {
	store := &SlowStore{}
	manager := fleet.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := manager.LoadOrCreate(ctx, "atomic-init")
			assert.NoError(t, err)
			assert.Equal(t, "atomic-init", cfg.ID)
		}()
	}
	wg.Wait()

	cfg, err := manager.Load(ctx, "atomic-init")
	require.NoError(t, err)
	assert.True(t, cfg.InitialState.IsZero())
}

func TestManager_LoadOrCreate_GeneratesID(t *testing.T) {
	manager := fleet.NewManager(memory.NewStore())

	cfg, err := manager.LoadOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, cfg.ID, 36)

	ids, err := manager.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.ID}, ids)
}

func TestManager_SetInitialState(t *testing.T) {
	reg := newRegistry()
	manager := fleet.NewManager(memory.NewStore(), fleet.WithRegistry(reg))
	ctx := context.Background()
	idle := typeref.For[*Idle]().Identity()

	cfg, err := manager.SetInitialState(ctx, "guard", idle)
	require.NoError(t, err)
	assert.Equal(t, "guard", cfg.ID)
	assert.Equal(t, idle, cfg.InitialState.Identity())
	assert.Equal(t, reflect.TypeFor[*Idle](), cfg.InitialState.Resolve(reg))

	stored, err := manager.Load(ctx, "guard")
	require.NoError(t, err)
	assert.Equal(t, idle, stored.InitialState.Identity())

	cfg, err = manager.SetInitialState(ctx, "guard", "")
	require.NoError(t, err)
	assert.True(t, cfg.InitialState.IsZero())
}

func TestManager_SetInitialState_Rejects(t *testing.T) {
	manager := fleet.NewManager(memory.NewStore(), fleet.WithRegistry(newRegistry()))
	ctx := context.Background()

	_, err := manager.SetInitialState(ctx, "guard", "*example.com/nope.Gone")
	assert.ErrorIs(t, err, domain.ErrUnknownType)

	_, err = manager.SetInitialState(ctx, "guard", typeref.For[*notAState]().Identity())
	assert.ErrorIs(t, err, domain.ErrNotAState)

	_, err = manager.SetInitialState(ctx, "", typeref.For[*Idle]().Identity())
	assert.Error(t, err)

	_, err = manager.Load(ctx, "guard")
	assert.ErrorIs(t, err, domain.ErrConfigNotFound, "rejected edits must not create configs")
}

func TestManager_Spawn(t *testing.T) {
	reg := newRegistry()
	var entered []string
	manager := fleet.NewManager(memory.NewStore(),
		fleet.WithRegistry(reg),
		fleet.WithHooks(domain.LifecycleHooks{
			OnStateEnter: func(e *domain.TransitionEvent) { entered = append(entered, e.To) },
		}),
	)
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "guard", &domain.MachineConfig{
		ID:           "guard",
		Object:       "tower",
		InitialState: typeref.For[*Idle](),
	}))

	m, err := manager.Spawn(ctx, "guard")
	require.NoError(t, err)

	assert.Equal(t, "guard", m.ID())
	assert.Equal(t, "tower", m.Object().Name())
	assert.Equal(t, machine.Running, m.Phase())
	require.True(t, machine.IsInState[*Idle](m))
	assert.Equal(t, 1, m.State().(*Idle).entered)
	assert.Equal(t, []string{
		typeref.For[*machine.Default]().Identity(),
		typeref.For[*Idle]().Identity(),
	}, entered)
}

func TestManager_SpawnUnknown(t *testing.T) {
	manager := fleet.NewManager(memory.NewStore())

	_, err := manager.Spawn(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrMachineNotFound)
}

func TestManager_SpawnUnresolvableStaysDefault(t *testing.T) {
	manager := fleet.NewManager(memory.NewStore(), fleet.WithRegistry(newRegistry()))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "old", &domain.MachineConfig{
		ID:           "old",
		InitialState: typeref.Parse("*example.com/removed.Variant"),
	}))

	m, err := manager.Spawn(ctx, "old")
	require.NoError(t, err)
	assert.True(t, machine.IsInState[*machine.Default](m))
}

type fakeLocker struct {
	mu      sync.Mutex
	locked  []string
	release int
	ttl     time.Duration
	fail    error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.ReleaseFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.locked = append(f.locked, key)
	f.ttl = ttl
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.release++
		return nil
	}, nil
}

func TestManager_ConfigLocker(t *testing.T) {
	locker := &fakeLocker{}
	manager := fleet.NewManager(memory.NewStore(),
		fleet.WithLocker(locker),
		fleet.WithLockTTL(time.Second),
	)

	require.NoError(t, manager.Save(context.Background(), "a", &domain.MachineConfig{ID: "a"}))
	assert.Equal(t, []string{"a"}, locker.locked)
	assert.Equal(t, 1, locker.release)
	assert.Equal(t, time.Second, locker.ttl)

	locker.fail = errors.New("backend down")
	err := manager.Save(context.Background(), "a", &domain.MachineConfig{ID: "a"})
	assert.ErrorContains(t, err, "backend down")
}

func TestManager_ConfigLockerReleasedOnFailedWrite(t *testing.T) {
	locker := &fakeLocker{}
	manager := fleet.NewManager(memory.NewStore(), fleet.WithLocker(locker))

	err := manager.WithLock(context.Background(), "b", func(context.Context) error {
		return errors.New("write rejected")
	})

	assert.ErrorContains(t, err, "write rejected")
	assert.Equal(t, []string{"b"}, locker.locked)
	assert.Equal(t, 1, locker.release)
}
