package resolve_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/consume"
	"github.com/cory-johannsen/fable/internal/engine/dice"
	"github.com/cory-johannsen/fable/internal/engine/resolve"
	"github.com/cory-johannsen/fable/internal/engine/roll"
	"github.com/cory-johannsen/fable/internal/engine/table"
)

func newTestResolver(t *testing.T, seed int64) (*resolve.Resolver, *table.Registry, *consume.Tracker) {
	t.Helper()
	registry := table.NewRegistry()
	tracker := consume.NewTracker()
	r := resolve.NewResolver(registry, tracker, dice.NewSeededSource(seed), zap.NewNop(), 0)
	return r, registry, tracker
}

func textTable(name string, texts ...string) *table.Table {
	entries := make([]*table.Entry, len(texts))
	for i, txt := range texts {
		entries[i] = &table.Entry{Text: txt}
	}
	return &table.Table{Name: name, Entries: entries}
}

func TestResolve_PlainTextPassesThrough(t *testing.T) {
	r, _, _ := newTestResolver(t, 1)
	assert.Equal(t, "no placeholders here", r.Resolve("no placeholders here", roll.NewContext("s")))
}

func TestResolve_SingleEntryTable(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("color", "red"))

	out := r.Resolve("the ink is {color}", roll.NewContext("s"))
	assert.Equal(t, "the ink is red", out)
}

func TestResolve_CaseInsensitiveLookup(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("Color", "red"))

	out := r.Resolve("{color}", roll.NewContext("s"))
	assert.Equal(t, "red", out)
}

func TestResolve_UnknownTableLeftVerbatim(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("color", "red"))

	out := r.Resolve("{color} and {missing.capitalize}", roll.NewContext("s"))
	assert.Equal(t, "red and {missing.capitalize}", out)
}

func TestResolve_ModifierOrderLeftToRight(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("color", "red"))
	ctx := roll.NewContext("s")

	assert.Equal(t, "Red", r.Resolve("{color.capitalize}", ctx))
	// "the" prefixes first, then capitalize reshapes the whole string.
	assert.Equal(t, "The red", r.Resolve("{color.the.capitalize}", ctx))
	assert.Equal(t, "the Red", r.Resolve("{color.capitalize.the}", ctx))
}

func TestResolve_TransformChains(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("beast", "owl"))
	ctx := roll.NewContext("s")

	assert.Equal(t, "OWL", r.Resolve("{beast.uppercase}", ctx))
	assert.Equal(t, "owls", r.Resolve("{beast.plural}", ctx))
	assert.Equal(t, "an owl", r.Resolve("{beast.article}", ctx))
}

func TestResolve_UnknownModifierIgnored(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("color", "red"))

	out := r.Resolve("{color.sparkle.capitalize}", roll.NewContext("s"))
	assert.Equal(t, "Red", out)
}

func TestResolve_NestedPlaceholders(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("weapon", "a {metal} sword"))
	registry.Register(textTable("metal", "silver"))

	out := r.Resolve("you find {weapon}", roll.NewContext("s"))
	assert.Equal(t, "you find a silver sword", out)
}

func TestResolve_SelfReferenceTerminates(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("echo", "again {echo}"))

	out := r.Resolve("{echo}", roll.NewContext("s"))
	// Expansion stops at the depth bound; the innermost reference
	// survives verbatim rather than recursing forever.
	assert.Regexp(t, regexp.MustCompile(`^(again )+\{echo\}$`), out)
}

func TestResolve_ConsumableExhaustionAndReset(t *testing.T) {
	r, registry, tracker := newTestResolver(t, 42)
	registry.Register(textTable("relic", "crown", "orb", "scepter"))
	ctx := roll.NewContext("story-1")

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		out := r.Resolve("{relic.consumable}", ctx)
		assert.False(t, seen[out], "draw %d repeated %q before exhaustion", i, out)
		seen[out] = true
	}
	assert.Len(t, seen, 3, "three draws cover all three entries")

	// The pool is exhausted; the fourth draw resets and may repeat.
	fourth := r.Resolve("{relic.consumable}", ctx)
	assert.True(t, seen[fourth])
	assert.Equal(t, 1, tracker.ConsumedCount("relic", "story-1"),
		"the reset cleared the record before the fourth draw")
}

func TestResolve_TableConsumableFlag(t *testing.T) {
	r, registry, tracker := newTestResolver(t, 42)
	tbl := textTable("relic", "crown", "orb")
	tbl.Consumable = true
	registry.Register(tbl)

	ctx := roll.NewContext("story-1")
	first := r.Resolve("{relic}", ctx)
	second := r.Resolve("{relic}", ctx)
	assert.NotEqual(t, first, second, "the table-level flag restricts repeats")
	assert.Equal(t, 2, tracker.ConsumedCount("relic", "story-1"))
}

func TestResolve_ConsumptionScopedPerStory(t *testing.T) {
	r, registry, _ := newTestResolver(t, 42)
	registry.Register(textTable("relic", "crown"))

	a := r.Resolve("{relic.consumable}", roll.NewContext("story-a"))
	b := r.Resolve("{relic.consumable}", roll.NewContext("story-b"))
	assert.Equal(t, "crown", a)
	assert.Equal(t, "crown", b, "stories never contend for the same pool")
}

func TestResolve_MultiplePlaceholdersInOneTemplate(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(textTable("color", "red"))
	registry.Register(textTable("beast", "owl"))

	out := r.Resolve("a {color} {beast} and {beast.article}", roll.NewContext("s"))
	assert.Equal(t, "a red owl and an owl", out)
}

func TestResolve_GeneratedDescription(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(&table.Table{
		Name: "omen",
		Entries: []*table.Entry{
			{Generate: func() string { return "a comet streaks overhead" }},
		},
	})

	out := r.Resolve("{omen}", roll.NewContext("s"))
	require.Equal(t, "a comet streaks overhead", out)
}

func TestResolve_EmptyTableLeftVerbatim(t *testing.T) {
	r, registry, _ := newTestResolver(t, 1)
	registry.Register(&table.Table{Name: "void", Entries: nil})

	out := r.Resolve("{void}", roll.NewContext("s"))
	assert.Equal(t, "{void}", out)
}
