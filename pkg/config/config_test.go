package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind)
	assert.Equal(t, 20*time.Millisecond, cfg.Driver.FixedStep)
}

func TestParse_Full(t *testing.T) {
	data := []byte(`
log_level: debug
driver:
  frame_interval: 10ms
  fixed_step: 5ms
  max_fixed_steps: 8
store:
  kind: redis
  redis:
    addr: localhost:6379
    db: 2
    prefix: "game:"
    ttl: 1h
http:
  addr: 127.0.0.1:9090
machines:
  - id: player
    object: hero
    initial_state: "*github.com/aretw0/stagehand/internal/locomotion.Walking"
  - id: crate
machines_dir: ./machines
`)

	cfg, err := config.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Millisecond, cfg.Driver.FrameInterval)
	assert.Equal(t, 5*time.Millisecond, cfg.Driver.FixedStep)
	assert.Equal(t, 8, cfg.Driver.MaxFixedSteps)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "game:", cfg.Store.Redis.Prefix)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)

	require.Len(t, cfg.Machines, 2)
	assert.Equal(t, "hero", cfg.Machines[0].ObjectName())
	assert.Equal(t, "*github.com/aretw0/stagehand/internal/locomotion.Walking", cfg.Machines[0].InitialState.Identity())
	assert.Equal(t, "crate", cfg.Machines[1].ObjectName())
	assert.True(t, cfg.Machines[1].InitialState.IsZero())
	assert.Equal(t, "./machines", cfg.MachinesDir)
}

func TestParse_KeepsDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("http:\n  addr: :9999\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, config.Default().Driver, cfg.Driver)
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "driver: [", "failed to parse yaml"},
		{"unknown key", "bogus: 1", "bogus"},
		{"bad duration", "driver:\n  fixed_step: soon", "fixed_step"},
		{"unknown store", "store:\n  kind: s3", "store.kind"},
		{"redis without addr", "store:\n  kind: redis", "store.redis.addr"},
		{"bad format", "store:\n  kind: file\n  format: toml", "store.format"},
		{"negative step", "driver:\n  fixed_step: -1s", "driver.fixed_step"},
		{"bad level", "log_level: loud", "unknown log level"},
		{"missing id", "machines:\n  - object: x", "machines[0].id is required"},
		{"duplicate id", "machines:\n  - id: a\n  - id: a", "duplicated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Driver.MaxFixedSteps = 0
	cfg.Store.Kind = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_fixed_steps")
	assert.Contains(t, err.Error(), "store.kind")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: file\n  path: data\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.StoreFile, cfg.Store.Kind)
	assert.Equal(t, "data", cfg.Store.Path)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}
