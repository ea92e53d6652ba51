package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ConfigStore = (*memory.Store)(nil)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunConfigStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	cfg := &domain.MachineConfig{ID: "m1", Object: "player"}
	require.NoError(t, store.Save(ctx, "m1", cfg))
	cfg.Object = "mutated"

	loaded, err := store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "player", loaded.Object)

	loaded.Object = "mutated again"
	again, err := store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "player", again.Object)
}
