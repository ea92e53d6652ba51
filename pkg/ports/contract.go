package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/typeref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConfigStoreContract runs a suite of tests to verify that a ConfigStore implementation
// adheres to the defined interface contract.
func RunConfigStoreContract(t *testing.T, store ConfigStore) {
	ctx := context.Background()
	machineID := "contract-test-machine-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		cfg := &domain.MachineConfig{
			ID:           machineID,
			Object:       "player",
			InitialState: typeref.Parse("*example.com/game.Walking"),
		}

		err := store.Save(ctx, machineID, cfg)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, machineID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, cfg.ID, loaded.ID)
		assert.Equal(t, cfg.Object, loaded.Object)
		assert.Equal(t, cfg.InitialState, loaded.InitialState, "identity must survive verbatim")
	})

	t.Run("Save Without Initial State", func(t *testing.T) {
		id := machineID + "-bare"
		defer func() { _ = store.Delete(ctx, id) }()

		require.NoError(t, store.Save(ctx, id, &domain.MachineConfig{ID: id}))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.True(t, loaded.InitialState.IsZero(), "absent initial state stays absent")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+machineID)
		assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, machineID, &domain.MachineConfig{ID: machineID})
		require.NoError(t, err)

		err = store.Delete(ctx, machineID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, machineID)
		assert.ErrorIs(t, err, domain.ErrConfigNotFound, "Load after Delete should return ErrConfigNotFound")

		assert.NoError(t, store.Delete(ctx, machineID), "Delete of unknown machine is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := machineID + "-1"
		id2 := machineID + "-2"
		_ = store.Save(ctx, id1, &domain.MachineConfig{ID: id1})
		_ = store.Save(ctx, id2, &domain.MachineConfig{ID: id2})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
