// Package consume tracks which results a consumable table has already
// produced for a given story, so draws avoid repeats until the pool is
// exhausted.
package consume

import (
	"sort"
	"strings"
	"sync"
)

// Tracker records consumed entry descriptions per (table, story) key.
// Keys never leak across stories. All methods are safe for concurrent
// use; marks on the same key are atomic, so concurrent resolution of
// the same story cannot lose updates.
type Tracker struct {
	mu sync.Mutex
	// consumed maps lowercase(table)+"_"+story to the set of produced
	// descriptions.
	consumed map[string]map[string]bool
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{consumed: make(map[string]map[string]bool)}
}

// key builds the backing-store key for (table, story).
func key(tableName, storyID string) string {
	return strings.ToLower(tableName) + "_" + storyID
}

// MarkConsumed records value as produced for (tableName, storyID).
func (t *Tracker) MarkConsumed(tableName, storyID, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(tableName, storyID)
	set := t.consumed[k]
	if set == nil {
		set = make(map[string]bool)
		t.consumed[k] = set
	}
	set[value] = true
}

// IsAvailable reports whether value has not yet been produced for
// (tableName, storyID).
func (t *Tracker) IsAvailable(tableName, storyID, value string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.consumed[key(tableName, storyID)][value]
}

// ConsumedCount returns how many distinct values have been produced for
// (tableName, storyID).
func (t *Tracker) ConsumedCount(tableName, storyID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.consumed[key(tableName, storyID)])
}

// Reset clears the consumption record for (tableName, storyID). The set
// is cleared whole, never partially pruned.
func (t *Tracker) Reset(tableName, storyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.consumed, key(tableName, storyID))
}

// ResetStory clears every consumption record belonging to storyID,
// across all tables.
func (t *Tracker) ResetStory(storyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	suffix := "_" + storyID
	for k := range t.consumed {
		if strings.HasSuffix(k, suffix) {
			delete(t.consumed, k)
		}
	}
}

// Snapshot returns a deep copy of the backing store, keyed by the
// lowercase(table)+"_"+story composite key. Used by the persistence
// boundary to flush state.
func (t *Tracker) Snapshot() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]string, len(t.consumed))
	for k, set := range t.consumed {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[k] = values
	}
	return out
}

// Restore replaces the backing store with the given snapshot, rebuilding
// the engine's in-memory state from persisted data.
func (t *Tracker) Restore(snapshot map[string][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumed = make(map[string]map[string]bool, len(snapshot))
	for k, values := range snapshot {
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		t.consumed[k] = set
	}
}
