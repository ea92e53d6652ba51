package stagehand_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/config"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/typeref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Machines = []domain.MachineConfig{
		{ID: "player", InitialState: typeref.For[*Walking]()},
		{ID: "crate"},
	}
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = "tape"

	_, err := stagehand.New(cfg)
	assert.ErrorContains(t, err, "store.kind")
}

func TestBootstrap(t *testing.T) {
	app, err := stagehand.New(testConfig(), stagehand.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer app.Close()

	n, err := app.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	player, ok := app.Driver.Machine("player")
	require.True(t, ok)
	assert.True(t, machine.IsInState[*Walking](player))

	crate, ok := app.Driver.Machine("crate")
	require.True(t, ok)
	assert.True(t, machine.IsInState[*machine.Default](crate))
}

func TestBootstrap_StoredConfigWins(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "player", &domain.MachineConfig{
		ID:           "player",
		InitialState: typeref.For[*Jumping](),
	}))

	app, err := stagehand.New(testConfig(),
		stagehand.WithStore(store),
		stagehand.WithLogger(logging.NewNop()),
	)
	require.NoError(t, err)

	_, err = app.Bootstrap(ctx)
	require.NoError(t, err)

	player, ok := app.Driver.Machine("player")
	require.True(t, ok)
	assert.True(t, machine.IsInState[*Jumping](player), "runtime edits survive the seed")
}

func TestBootstrap_RejectsUnknownSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Machines = append(cfg.Machines, domain.MachineConfig{
		ID:           "ghost",
		InitialState: typeref.Parse("*example.com/game.Haunting"),
	})

	app, err := stagehand.New(cfg, stagehand.WithLogger(logging.NewNop()))
	require.NoError(t, err)

	_, err = app.Bootstrap(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnknownType)
	assert.ErrorContains(t, err, "ghost")
}

func TestBootstrap_MachinesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guard.md"), []byte(fmt.Sprintf(
		"---\ninitial_state: %q\n---\nPatrols the gate.\n", typeref.For[*Jumping]().Identity(),
	)), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "player.json"), []byte(`{"initial_state": ""}`), 0644))

	cfg := testConfig()
	cfg.MachinesDir = dir

	app, err := stagehand.New(cfg, stagehand.WithLogger(logging.NewNop()))
	require.NoError(t, err)

	n, err := app.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	guard, ok := app.Driver.Machine("guard")
	require.True(t, ok)
	assert.True(t, machine.IsInState[*Jumping](guard))

	player, ok := app.Driver.Machine("player")
	require.True(t, ok)
	assert.True(t, machine.IsInState[*Walking](player), "config entries shadow the directory")
}

func TestNew_FileStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Path = filepath.Join(t.TempDir(), "machines")
	cfg.Store.Format = "yaml"

	app, err := stagehand.New(cfg, stagehand.WithLogger(logging.NewNop()))
	require.NoError(t, err)

	_, err = app.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Store.Path, "player.yaml"))
}

func TestNew_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Store.Kind = config.StoreRedis
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Redis.Prefix = "test:"

	app, err := stagehand.New(cfg, stagehand.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()

	n, err := app.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("test:player"))

	_, err = app.Fleet.SetInitialState(context.Background(), "crate", typeref.For[*Jumping]().Identity())
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:crate"), "fleet edits release the config lock")
}

func TestRun_HandlerAndShutdown(t *testing.T) {
	var exits []string
	app, err := stagehand.New(testConfig(),
		stagehand.WithLogger(logging.NewNop()),
		stagehand.WithLifecycleHooks(domain.LifecycleHooks{
			OnStateExit: func(e *domain.TransitionEvent) {
				if e.Terminal() {
					exits = append(exits, e.MachineID)
				}
			},
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/machines/player")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
	assert.ElementsMatch(t, []string{"player", "crate"}, exits)
}
