// Package roll implements the weighted roll engine: eligibility
// filtering, weight computation, the roll strategies, entry selection,
// and relationship-driven enrichment of results.
package roll

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cory-johannsen/fable/internal/engine/table"
)

// Context is the variable environment one resolution call runs under.
type Context struct {
	// Variables feed the conditional evaluator.
	Variables map[string]any
	// StoryID scopes consumption tracking. Never shared across stories.
	StoryID string
	// Depth is the recursion guard, shared by placeholder expansion and
	// relationship chaining.
	Depth int
	// Previous holds prior results of this resolution, most recent last.
	Previous []*TableResult
}

// NewContext creates a Context for storyID with an empty variable set.
func NewContext(storyID string) *Context {
	return &Context{
		Variables: make(map[string]any),
		StoryID:   storyID,
	}
}

// WithVariable sets name to value and returns the context for chaining.
func (c *Context) WithVariable(name string, value any) *Context {
	c.Variables[name] = value
	return c
}

// child returns a copy of c one level deeper, sharing variables and
// history with the parent.
func (c *Context) child() *Context {
	return &Context{
		Variables: c.Variables,
		StoryID:   c.StoryID,
		Depth:     c.Depth + 1,
		Previous:  c.Previous,
	}
}

// evalVariables merges the caller's variables with the engine-injected
// ones (roll_count, depth, story_id, last_result, last_table).
func (c *Context) evalVariables() map[string]any {
	out := make(map[string]any, len(c.Variables)+5)
	for k, v := range c.Variables {
		out[k] = v
	}
	out["roll_count"] = len(c.Previous)
	out["depth"] = c.Depth
	out["story_id"] = c.StoryID
	if n := len(c.Previous); n > 0 {
		out["last_result"] = c.Previous[n-1].Description
		out["last_table"] = c.Previous[n-1].TableID
	}
	return out
}

// Record appends res to the context's history.
func (c *Context) Record(res *TableResult) {
	c.Previous = append(c.Previous, res)
}

// cacheKey builds a deterministic key for (table name, variables,
// story). Variable order never affects the key.
func cacheKey(tableName string, c *Context) string {
	keys := make([]string, 0, len(c.Variables))
	for k := range c.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := tableName + "|" + c.StoryID
	for _, k := range keys {
		key += fmt.Sprintf("|%s=%v", k, c.Variables[k])
	}
	return key
}

// TableResult is the outcome of one roll. Immutable once produced;
// enrichment appends to Linked, never rewrites the primary fields.
type TableResult struct {
	// ID uniquely identifies this result.
	ID string
	// Description is the final resolved text.
	Description string
	// Roll is the raw die value before bonus/multiplier adjustment.
	Roll int
	// TableID names the table the result was drawn from.
	TableID string
	// EntryID is the selected entry's position in table order.
	EntryID int
	// Metadata is copied from the selected entry.
	Metadata table.Metadata
	// Options are the fully merged roll options the roll ran under.
	Options table.RollOptions
	// Variables snapshots the caller's variables at roll time.
	Variables map[string]any
	// LinkedTable names the dependency table declared by the entry's
	// Linked modifier, for the caller to follow.
	LinkedTable string
	// Linked holds results attached by the relationship resolver.
	Linked []*TableResult
}

// newResultID returns a fresh result identifier.
func newResultID() string {
	return uuid.NewString()
}
