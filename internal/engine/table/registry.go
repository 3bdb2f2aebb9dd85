package table

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrTableNotFound is returned when a table lookup yields no match.
// Not-found is a recoverable condition: callers log and degrade rather
// than abort.
var ErrTableNotFound = errors.New("table not found")

// Registry holds built-in and custom table definitions keyed by name.
// Lookup is case-insensitive. All methods are safe for concurrent use;
// the registry is read-mostly.
type Registry struct {
	mu      sync.RWMutex
	builtin map[string]*Table
	custom  map[string]*Table
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		builtin: make(map[string]*Table),
		custom:  make(map[string]*Table),
	}
}

// RegisterBuiltin adds t to the built-in set, overwriting any existing
// built-in with the same name.
//
// Precondition: t must be non-nil and pass Validate.
func (r *Registry) RegisterBuiltin(t *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtin[t.Name] = t
}

// Register adds t to the custom set, overwriting any existing custom
// table with the same name.
//
// Precondition: t must be non-nil and pass Validate.
func (r *Registry) Register(t *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[t.Name] = t
}

// Remove deletes the custom table with the given name (case-insensitive).
// Built-in tables cannot be removed. Returns ErrTableNotFound if no
// custom table matches.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.custom[name]; ok {
		delete(r.custom, name)
		return nil
	}
	for key := range r.custom {
		if strings.EqualFold(key, name) {
			delete(r.custom, key)
			return nil
		}
	}
	return ErrTableNotFound
}

// Find locates a table by name. Resolution order: exact key among
// built-ins, case-insensitive scan of built-ins (by key or Name), exact
// key among custom tables, case-insensitive scan of custom tables.
//
// Postcondition: Returns (table, true) on a match, (nil, false) otherwise.
func (r *Registry) Find(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.builtin[name]; ok {
		return t, true
	}
	if t, ok := scanFold(r.builtin, name); ok {
		return t, true
	}
	if t, ok := r.custom[name]; ok {
		return t, true
	}
	return scanFold(r.custom, name)
}

// scanFold scans m for a case-insensitive match on key or table Name.
// Iteration order is made deterministic by sorting keys so that repeated
// lookups of an ambiguous name resolve identically.
func scanFold(m map[string]*Table, name string) (*Table, bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) || strings.EqualFold(m[k].Name, name) {
			return m[k], true
		}
	}
	return nil, false
}

// Snapshot returns all registered tables, built-ins first, each set
// ordered by name. The returned slice is owned by the caller; the Table
// pointers are shared and must be treated as immutable.
func (r *Registry) Snapshot() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Table, 0, len(r.builtin)+len(r.custom))
	out = append(out, sortedValues(r.builtin)...)
	out = append(out, sortedValues(r.custom)...)
	return out
}

// Len returns the total number of registered tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builtin) + len(r.custom)
}

func sortedValues(m map[string]*Table) []*Table {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Table, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
