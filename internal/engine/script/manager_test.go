package script_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/script"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestManager_Generator_ReturnsString(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "names.lua", `
function tavern_name()
  return "The Prancing Pony"
end
`)

	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()
	require.NoError(t, m.LoadDirectory(dir))

	gen, ok := m.Generator("tavern_name")
	require.True(t, ok)
	assert.Equal(t, "The Prancing Pony", gen())
}

func TestManager_Generator_UnknownName(t *testing.T) {
	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()

	_, ok := m.Generator("missing")
	assert.False(t, ok)
}

func TestManager_Generator_NonStringReturnDegrades(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", `
function bad_gen()
  return 42
end
`)

	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()
	require.NoError(t, m.LoadDirectory(dir))

	gen, ok := m.Generator("bad_gen")
	require.True(t, ok)
	assert.Equal(t, "", gen(), "non-string returns degrade to empty")
}

func TestManager_Generator_RuntimeErrorDegrades(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "err.lua", `
function exploding_gen()
  error("boom")
end
`)

	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()
	require.NoError(t, m.LoadDirectory(dir))

	gen, ok := m.Generator("exploding_gen")
	require.True(t, ok)
	assert.Equal(t, "", gen(), "runtime errors degrade to empty")
}

func TestManager_InstructionLimit_StopsRunawayGenerator(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "loop.lua", `
function runaway()
  while true do end
end
`)

	m := script.NewManager(zap.NewNop(), 10_000)
	defer m.Close()
	require.NoError(t, m.LoadDirectory(dir))

	gen, ok := m.Generator("runaway")
	require.True(t, ok)
	assert.Equal(t, "", gen(), "runaway generator is cut off at the instruction limit")

	// The budget resets per call; a well-behaved generator still works.
	writeScript(t, dir, "ok.lua", `
function fine()
  return "ok"
end
`)
	require.NoError(t, m.LoadDirectory(dir))
	fine, ok := m.Generator("fine")
	require.True(t, ok)
	assert.Equal(t, "ok", fine())
}

func TestManager_SandboxStripsDangerousGlobals(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "probe.lua", `
function probe()
  if dofile == nil and loadfile == nil and load == nil and require == nil then
    return "clean"
  end
  return "leaked"
end
`)

	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()
	require.NoError(t, m.LoadDirectory(dir))

	gen, ok := m.Generator("probe")
	require.True(t, ok)
	assert.Equal(t, "clean", gen())
}

func TestManager_GeneratorNames(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "gens.lua", `
function zeta() return "z" end
function alpha() return "a" end
`)

	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()
	require.NoError(t, m.LoadDirectory(dir))

	assert.Equal(t, []string{"alpha", "zeta"}, m.GeneratorNames())
}

func TestManager_LoadDirectory_PropagatesLuaErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.lua", `function broken( return`)

	m := script.NewManager(zap.NewNop(), 0)
	defer m.Close()
	assert.Error(t, m.LoadDirectory(dir))
}
