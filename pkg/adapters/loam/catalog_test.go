package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/stagehand/pkg/typeref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCatalog writes files into a fresh Loam repository and returns a
// catalog over it.
func setupCatalog(t *testing.T, files map[string]string) *Catalog {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	repo, err := loam.Init(dir, loam.WithVersioning(false))
	require.NoError(t, err, "Failed to init loam repo")

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return New(loam.NewTypedRepository[MachineDocument](repo))
}

func TestCatalog_Machines(t *testing.T) {
	catalog := setupCatalog(t, map[string]string{
		"player.md": `---
id: player
object: hero
initial_state: "*example.com/game.Walking"
---
The player character.`,
		"crate.json": `{
  "initial_state": ""
}`,
		"guard.yaml": "id: guard.yaml\ninitial_state: '*example.com/game.Patrol'\n",
	})

	machines, err := catalog.Machines(context.Background())
	require.NoError(t, err)
	require.Len(t, machines, 3)

	assert.Equal(t, "crate", machines[0].ID, "ID is implied from the file name")
	assert.True(t, machines[0].InitialState.IsZero())

	assert.Equal(t, "guard", machines[1].ID, "extension is stripped from explicit IDs")
	assert.Equal(t, typeref.Parse("*example.com/game.Patrol"), machines[1].InitialState)

	assert.Equal(t, "player", machines[2].ID)
	assert.Equal(t, "hero", machines[2].ObjectName())
	assert.Equal(t, "*example.com/game.Walking", machines[2].InitialState.Identity())
}

func TestCatalog_DetectsCollisions(t *testing.T) {
	catalog := setupCatalog(t, map[string]string{
		"npc.md": "---\nid: npc\n---\nExplicit ID",
		"npc.json": `{"id": "npc"}`,
	})

	_, err := catalog.Machines(context.Background())
	assert.ErrorContains(t, err, "collision detected")
}

func TestCatalog_Empty(t *testing.T) {
	machines, err := setupCatalog(t, nil).Machines(context.Background())
	require.NoError(t, err)
	assert.Empty(t, machines)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "npc.md"), []byte("---\ninitial_state: ''\n---\n"), 0644))

	catalog, err := Open(dir)
	require.NoError(t, err)

	machines, err := catalog.Machines(context.Background())
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.Equal(t, "npc", machines[0].ID)
}
