package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTableYAML = `
table:
  name: forest_encounter
  description: "Creatures met in the deep woods."
  dice_formula: d100
  consumable: true
  entries:
    - min: 1
      max: 50
      description: "a pack of wolves"
      metadata:
        tags: [beast, pack]
        category: creature
        rarity: common
    - min: "51"
      max: "90"
      description: "a wandering merchant"
      modifiers:
        - conditional: "story_progress > 10"
        - weighted:
            weight: 2
            conditional_weights:
              - when: "party_size > 3"
                weight: 5
    - description: "an ancient treant"
      modifiers:
        - linked: treasure
        - unique: true
  relationships:
    - target: treasure
      condition: "character_level > 5"
  default_roll_options:
    type: advantage
    advantage_count: 3
`

func TestLoadTableFromBytes_Valid(t *testing.T) {
	tbl, err := LoadTableFromBytes([]byte(validTableYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "forest_encounter", tbl.Name)
	assert.True(t, tbl.Consumable)
	require.Len(t, tbl.Entries, 3)

	first := tbl.Entries[0]
	require.NotNil(t, first.Min)
	assert.Equal(t, 1, *first.Min)
	assert.Equal(t, 50, *first.Max)
	assert.Equal(t, "creature", first.Meta.Category)
	assert.True(t, first.Meta.HasTag("beast"))

	// Numeric-string bounds are coerced.
	second := tbl.Entries[1]
	require.NotNil(t, second.Min)
	assert.Equal(t, 51, *second.Min)
	require.Len(t, second.Modifiers, 2)
	assert.Equal(t, ModifierConditional, second.Modifiers[0].Kind)
	assert.Equal(t, ModifierWeighted, second.Modifiers[1].Kind)
	assert.Equal(t, 2.0, second.Modifiers[1].Weight)
	require.Len(t, second.Modifiers[1].ConditionalWeights, 1)
	assert.Equal(t, "party_size > 3", second.Modifiers[1].ConditionalWeights[0].When)

	// Rangeless entry with linked + unique modifiers.
	third := tbl.Entries[2]
	assert.Nil(t, third.Min)
	require.Len(t, third.Modifiers, 2)
	assert.Equal(t, "treasure", third.Modifiers[0].DependencyTable)
	assert.Equal(t, ModifierUnique, third.Modifiers[1].Kind)

	require.Len(t, tbl.Relationships, 1)
	assert.Equal(t, "treasure", tbl.Relationships[0].TargetTable)

	require.NotNil(t, tbl.DefaultRollOptions)
	assert.Equal(t, RollAdvantage, tbl.DefaultRollOptions.Type)
	assert.Equal(t, 3, tbl.DefaultRollOptions.AdvantageCount)

	assert.True(t, tbl.Enhanced())
}

func TestLoadTableFromBytes_RejectsUnknownFields(t *testing.T) {
	bad := `
table:
  name: bad
  entries:
    - description: "x"
      frobnicate: true
`
	_, err := LoadTableFromBytes([]byte(bad), nil)
	assert.Error(t, err)
}

func TestLoadTableFromBytes_RejectsAmbiguousModifier(t *testing.T) {
	bad := `
table:
  name: bad
  entries:
    - description: "x"
      modifiers:
        - conditional: "depth > 1"
          linked: other
`
	_, err := LoadTableFromBytes([]byte(bad), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestLoadTableFromBytes_RejectsNonNumericBound(t *testing.T) {
	bad := `
table:
  name: bad
  entries:
    - min: "low"
      max: 10
      description: "x"
`
	_, err := LoadTableFromBytes([]byte(bad), nil)
	assert.Error(t, err)
}

type fakeBinder map[string]DescriptionFunc

func (f fakeBinder) Generator(name string) (DescriptionFunc, bool) {
	g, ok := f[name]
	return g, ok
}

func TestLoadTableFromBytes_BindsGenerator(t *testing.T) {
	src := `
table:
  name: gen
  entries:
    - generator: make_name
`
	binder := fakeBinder{"make_name": func() string { return "Aldric" }}
	tbl, err := LoadTableFromBytes([]byte(src), binder)
	require.NoError(t, err)
	require.Len(t, tbl.Entries, 1)
	assert.Equal(t, "Aldric", tbl.Entries[0].Description())
	assert.Equal(t, "make_name", tbl.Entries[0].GeneratorName)
}

func TestLoadTableFromBytes_UnknownGenerator(t *testing.T) {
	src := `
table:
  name: gen
  entries:
    - generator: missing
`
	_, err := LoadTableFromBytes([]byte(src), fakeBinder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown generator")
}

func TestLoadTablesFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "encounter.yaml"), []byte(validTableYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	tables, err := LoadTablesFromDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "forest_encounter", tables[0].Name)
}

func TestLoadTablesFromDir_PropagatesParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("table:\n  name: bad\n  entries: []\n"), 0644))

	_, err := LoadTablesFromDir(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
