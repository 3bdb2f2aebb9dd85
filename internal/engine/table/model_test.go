package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func TestTable_Validate_RejectsEmptyName(t *testing.T) {
	tbl := &Table{Name: "  ", Entries: []*Entry{{Text: "x"}}}
	assert.Error(t, tbl.Validate())
}

func TestTable_Validate_RejectsZeroEntries(t *testing.T) {
	tbl := &Table{Name: "empty"}
	err := tbl.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntries)
}

func TestTable_Validate_RejectsNegativeWeight(t *testing.T) {
	tbl := &Table{
		Name: "bad",
		Entries: []*Entry{{
			Text:      "x",
			Modifiers: []Modifier{{Kind: ModifierWeighted, Weight: -1}},
		}},
	}
	assert.Error(t, tbl.Validate())
}

func TestTable_Validate_RejectsHalfOpenRange(t *testing.T) {
	tbl := &Table{Name: "bad", Entries: []*Entry{{Min: intp(1), Text: "x"}}}
	assert.Error(t, tbl.Validate())
}

func TestTable_Validate_RejectsInvertedRange(t *testing.T) {
	tbl := &Table{Name: "bad", Entries: []*Entry{{Min: intp(50), Max: intp(10), Text: "x"}}}
	assert.Error(t, tbl.Validate())
}

func TestTable_Validate_RejectsLowAdvantageCount(t *testing.T) {
	tbl := &Table{
		Name:               "bad",
		Entries:            []*Entry{{Text: "x"}},
		DefaultRollOptions: &RollOptions{AdvantageCount: 1},
	}
	assert.Error(t, tbl.Validate())
}

func TestTable_Enhanced(t *testing.T) {
	plain := &Table{Name: "plain", Entries: []*Entry{{Text: "x"}}}
	assert.False(t, plain.Enhanced())

	withMod := &Table{
		Name:    "mod",
		Entries: []*Entry{{Text: "x", Modifiers: []Modifier{{Kind: ModifierUnique}}}},
	}
	assert.True(t, withMod.Enhanced())

	withRel := &Table{
		Name:          "rel",
		Entries:       []*Entry{{Text: "x"}},
		Relationships: []Relationship{{TargetTable: "other"}},
	}
	assert.True(t, withRel.Enhanced())

	withGen := &Table{
		Name:    "gen",
		Entries: []*Entry{{Generate: func() string { return "y" }}},
	}
	assert.True(t, withGen.Enhanced())
}

func TestEntry_Description_DeferredWinsOverStatic(t *testing.T) {
	e := &Entry{Text: "static", Generate: func() string { return "generated" }}
	assert.Equal(t, "generated", e.Description())

	e.Generate = nil
	assert.Equal(t, "static", e.Description())
}

func TestEntry_InRange(t *testing.T) {
	ranged := &Entry{Min: intp(10), Max: intp(20)}
	assert.True(t, ranged.InRange(10))
	assert.True(t, ranged.InRange(20))
	assert.False(t, ranged.InRange(9))
	assert.False(t, ranged.InRange(21))

	unranged := &Entry{}
	assert.False(t, unranged.InRange(50), "entries without a range never match by range")
}

func TestEntry_WeightModifier_FirstWins(t *testing.T) {
	e := &Entry{Modifiers: []Modifier{
		{Kind: ModifierWeighted, Weight: 3},
		{Kind: ModifierWeighted, Weight: 9},
	}}
	m, ok := e.WeightModifier()
	require.True(t, ok)
	assert.Equal(t, 3.0, m.Weight, "the first weighting modifier wins")
}

func TestRollOptions_Merged(t *testing.T) {
	base := DefaultRollOptions()

	merged := base.Merged(nil)
	assert.Equal(t, base, merged, "nil overlay must be a no-op")

	merged = base.Merged(&RollOptions{Type: RollAdvantage, AdvantageCount: 4})
	assert.Equal(t, RollAdvantage, merged.Type)
	assert.Equal(t, 4, merged.AdvantageCount)
	assert.Equal(t, 3, merged.MaxRerolls, "unset overlay fields keep base values")
	assert.Equal(t, 1.0, merged.Multiplier)
}

func TestRollOptions_Merged_LayersTableOverEngineDefaults(t *testing.T) {
	tableDefaults := &RollOptions{Type: RollExploding, Bonus: 5}
	caller := &RollOptions{Bonus: 10}

	merged := DefaultRollOptions().Merged(tableDefaults).Merged(caller)
	assert.Equal(t, RollExploding, merged.Type, "table default survives when caller is silent")
	assert.Equal(t, 10, merged.Bonus, "caller overrides table default")
	assert.Equal(t, 2, merged.AdvantageCount, "engine default survives both layers")
}

func TestRollOptions_Merged_ZeroOverlayFieldsDoNotOverride(t *testing.T) {
	base := RollOptions{Type: RollReroll, MaxRerolls: 3, Bonus: 5}

	merged := base.Merged(&RollOptions{MaxRerolls: 0, Bonus: 0})
	assert.Equal(t, 3, merged.MaxRerolls, "a zero overlay field reads as unset")
	assert.Equal(t, 5, merged.Bonus, "a zero overlay field reads as unset")
}

func TestMetadata_HasTag(t *testing.T) {
	m := Metadata{Tags: []string{"Warm", "primary"}}
	assert.True(t, m.HasTag("warm"))
	assert.True(t, m.HasTag("PRIMARY"))
	assert.False(t, m.HasTag("cold"))
}
