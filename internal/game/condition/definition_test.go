package condition_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/encounter/internal/game/condition"
)

func TestRegistry_Get_Found(t *testing.T) {
	reg := condition.NewRegistry()
	def := &condition.ConditionDef{ID: "prone", Name: "Prone"}
	reg.Register(def)
	got, ok := reg.Get("prone")
	require.True(t, ok)
	assert.Equal(t, def, got)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	reg := condition.NewRegistry()
	_, ok := reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_Lookup_ByIDOrName(t *testing.T) {
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "poisoned", Name: "Poisoned"})

	d, ok := reg.Lookup("poisoned")
	require.True(t, ok)
	assert.Equal(t, "Poisoned", d.Name)

	d, ok = reg.Lookup("  POISONED ")
	require.True(t, ok)
	assert.Equal(t, "poisoned", d.ID)

	_, ok = reg.Lookup("hexed")
	assert.False(t, ok)
}

func TestRegistry_All_SortedCopy(t *testing.T) {
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "b", Name: "B"})
	reg.Register(&condition.ConditionDef{ID: "a", Name: "A"})
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	all[0] = nil
	for _, d := range reg.All() {
		assert.NotNil(t, d, "registry must not be corrupted by mutating the returned slice")
	}
}

func TestRegistry_Register_OverwritesDuplicate(t *testing.T) {
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "prone", Name: "First"})
	reg.Register(&condition.ConditionDef{ID: "prone", Name: "Second"})
	got, ok := reg.Get("prone")
	require.True(t, ok)
	assert.Equal(t, "Second", got.Name, "second registration must overwrite the first")
	_, ok = reg.Lookup("first")
	assert.False(t, ok, "stale name index must be dropped")
}

func TestRegistry_Instantiate(t *testing.T) {
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "poisoned", Name: "Poisoned"})
	dc := 12
	c, ok := reg.Instantiate("Poisoned", &dc, nil)
	require.True(t, ok)
	assert.Equal(t, "poisoned", c.ID)
	assert.Equal(t, "Poisoned", c.Name)
	require.NotNil(t, c.DC)
	assert.Equal(t, 12, *c.DC)
	assert.Nil(t, c.Duration)

	_, ok = reg.Instantiate("bogus", nil, nil)
	assert.False(t, ok)
}

func TestLoadDirectory_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
id: stunned
name: Stunned
description: "You are stunned."
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stunned.yaml"), []byte(yaml), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	reg, err := condition.LoadDirectory(dir)
	require.NoError(t, err)
	got, ok := reg.Get("stunned")
	require.True(t, ok)
	assert.Equal(t, "Stunned", got.Name)
	assert.Equal(t, "You are stunned.", got.Description)
	assert.Len(t, reg.All(), 1)
}

func TestLoadDirectory_UnknownField_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("id: x\nname: X\nmax_stacks: 2\n"), 0644))
	_, err := condition.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_MissingID_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("name: X\n"), 0644))
	_, err := condition.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(":::bad:::"), 0644))
	_, err := condition.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_NonexistentDir_ReturnsError(t *testing.T) {
	_, err := condition.LoadDirectory("/nonexistent/path/that/does/not/exist")
	assert.Error(t, err)
}

func TestLoadDirectory_ShippedConditions(t *testing.T) {
	reg, err := condition.LoadDirectory("../../../content/conditions")
	require.NoError(t, err)
	for _, id := range []string{"blinded", "charmed", "frightened", "poisoned", "prone", "restrained", "stunned", "unconscious"} {
		_, ok := reg.Get(id)
		assert.True(t, ok, "condition %q must be present", id)
	}
}

func TestPropertyRegistry_RegisterThenLookup(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-z_]{3,12}`).Draw(t, "id")
		reg := condition.NewRegistry()
		def := &condition.ConditionDef{ID: id, Name: id}
		reg.Register(def)
		got, ok := reg.Lookup(id)
		assert.True(t, ok, "registered condition must be retrievable")
		assert.Equal(t, def, got)
	})
}
