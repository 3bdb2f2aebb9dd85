package perf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/fable/internal/engine/perf"
)

func buildTestIndex() *perf.Index {
	return perf.BuildIndex([]perf.IndexedEntry{
		{Position: 0, Text: "a pack of wolves", Tags: []string{"beast"}, Category: "creature", Rarity: "common"},
		{Position: 1, Text: "a wandering merchant", Tags: []string{"npc"}, Category: "person", Rarity: "common"},
		{Position: 2, Text: "an ancient treant", Tags: []string{"beast", "plant"}, Category: "creature", Rarity: "rare"},
	})
}

func TestIndex_Search_FullText(t *testing.T) {
	idx := buildTestIndex()
	assert.Equal(t, []int{0}, idx.Search("wolves", perf.Filter{}))
	assert.Equal(t, []int{2}, idx.Search("ancient", perf.Filter{}))
}

func TestIndex_Search_UnionsQueryTokens(t *testing.T) {
	idx := buildTestIndex()
	got := idx.Search("wolves merchant", perf.Filter{})
	assert.Equal(t, []int{0, 1}, got, "full-text matches are unioned")
}

func TestIndex_Search_IntersectsFilters(t *testing.T) {
	idx := buildTestIndex()

	got := idx.Search("", perf.Filter{Category: "creature"})
	assert.Equal(t, []int{0, 2}, got)

	got = idx.Search("", perf.Filter{Category: "creature", Rarity: "rare"})
	assert.Equal(t, []int{2}, got)

	got = idx.Search("ancient wolves", perf.Filter{Tags: []string{"plant"}})
	assert.Equal(t, []int{2}, got, "filters intersect the full-text union")
}

func TestIndex_Search_MetadataIsSearchableText(t *testing.T) {
	idx := buildTestIndex()
	got := idx.Search("beast", perf.Filter{})
	assert.Equal(t, []int{0, 2}, got, "tags are tokenized into the full-text index")
}

func TestIndex_Search_CaseInsensitive(t *testing.T) {
	idx := buildTestIndex()
	assert.Equal(t, []int{0}, idx.Search("WOLVES", perf.Filter{}))
	assert.Equal(t, []int{2}, idx.Search("", perf.Filter{Rarity: "RARE"}))
}

func TestIndex_Search_NoMatch(t *testing.T) {
	idx := buildTestIndex()
	assert.Empty(t, idx.Search("dragon", perf.Filter{}))
	assert.Empty(t, idx.Search("wolves", perf.Filter{Category: "person"}))
}
