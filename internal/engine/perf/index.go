package perf

import (
	"sort"
	"strings"
	"unicode"
)

// IndexedEntry is the searchable projection of one table entry.
type IndexedEntry struct {
	// Position is the entry's position in its table.
	Position int
	// Text is the entry's resolved description.
	Text     string
	Tags     []string
	Category string
	Rarity   string
}

// Filter narrows a search to entries matching every supplied field.
// Empty fields do not constrain the result.
type Filter struct {
	Tags     []string
	Category string
	Rarity   string
}

// Index is an inverted index over one table's entries: token → set of
// entry positions, plus tag/category/rarity maps for filtered search.
// An Index is immutable once built.
type Index struct {
	tokens     map[string]map[int]bool
	tags       map[string]map[int]bool
	categories map[string]map[int]bool
	rarities   map[string]map[int]bool
	all        []int
}

// BuildIndex tokenizes each entry's text and metadata into an Index.
func BuildIndex(entries []IndexedEntry) *Index {
	idx := &Index{
		tokens:     make(map[string]map[int]bool),
		tags:       make(map[string]map[int]bool),
		categories: make(map[string]map[int]bool),
		rarities:   make(map[string]map[int]bool),
	}
	for _, e := range entries {
		idx.all = append(idx.all, e.Position)
		for _, tok := range tokenize(e.Text) {
			addPosting(idx.tokens, tok, e.Position)
		}
		for _, tag := range e.Tags {
			addPosting(idx.tags, strings.ToLower(tag), e.Position)
			for _, tok := range tokenize(tag) {
				addPosting(idx.tokens, tok, e.Position)
			}
		}
		if e.Category != "" {
			addPosting(idx.categories, strings.ToLower(e.Category), e.Position)
			for _, tok := range tokenize(e.Category) {
				addPosting(idx.tokens, tok, e.Position)
			}
		}
		if e.Rarity != "" {
			addPosting(idx.rarities, strings.ToLower(e.Rarity), e.Position)
			for _, tok := range tokenize(e.Rarity) {
				addPosting(idx.tokens, tok, e.Position)
			}
		}
	}
	return idx
}

// Search returns the positions of entries matching query and filter, in
// ascending order. The full-text part unions the postings of every query
// token; the tag/category/rarity filters intersect that set. An empty
// query matches every indexed entry, letting a filter-only search work.
func (idx *Index) Search(query string, filter Filter) []int {
	var matched map[int]bool

	toks := tokenize(query)
	if len(toks) == 0 {
		matched = make(map[int]bool, len(idx.all))
		for _, p := range idx.all {
			matched[p] = true
		}
	} else {
		matched = make(map[int]bool)
		for _, tok := range toks {
			for p := range idx.tokens[tok] {
				matched[p] = true
			}
		}
	}

	if filter.Category != "" {
		matched = intersect(matched, idx.categories[strings.ToLower(filter.Category)])
	}
	if filter.Rarity != "" {
		matched = intersect(matched, idx.rarities[strings.ToLower(filter.Rarity)])
	}
	for _, tag := range filter.Tags {
		matched = intersect(matched, idx.tags[strings.ToLower(tag)])
	}

	out := make([]int, 0, len(matched))
	for p := range matched {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func addPosting(m map[string]map[int]bool, key string, pos int) {
	set := m[key]
	if set == nil {
		set = make(map[int]bool)
		m[key] = set
	}
	set[pos] = true
}

func intersect(a, b map[int]bool) map[int]bool {
	out := make(map[int]bool)
	for p := range a {
		if b[p] {
			out[p] = true
		}
	}
	return out
}

// tokenize lowercases s and splits it on any non-alphanumeric rune.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
