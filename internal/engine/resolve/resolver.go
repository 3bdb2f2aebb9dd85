// Package resolve implements template resolution: scanning free text
// for embedded table placeholders, rolling on the referenced tables,
// and applying text transforms, recursively and depth-bounded.
package resolve

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/engine/consume"
	"github.com/cory-johannsen/fable/internal/engine/dice"
	"github.com/cory-johannsen/fable/internal/engine/roll"
	"github.com/cory-johannsen/fable/internal/engine/table"
)

// DefaultMaxDepth bounds recursive placeholder expansion.
const DefaultMaxDepth = 10

// placeholderPattern matches {name} and {name.mod1.mod2} references.
// Braces never nest; the inner character class excludes them.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Resolver expands placeholders in template text. Lookup failures and
// malformed placeholders are left verbatim in the output so authors can
// see what did not resolve.
type Resolver struct {
	registry *table.Registry
	tracker  *consume.Tracker
	src      dice.Source
	logger   *zap.Logger
	maxDepth int
}

// NewResolver creates a Resolver.
//
// Precondition: registry, tracker, src, and logger must be non-nil.
// maxDepth <= 0 uses DefaultMaxDepth.
func NewResolver(
	registry *table.Registry,
	tracker *consume.Tracker,
	src dice.Source,
	logger *zap.Logger,
	maxDepth int,
) *Resolver {
	if registry == nil || tracker == nil || src == nil || logger == nil {
		panic("resolve: NewResolver requires non-nil collaborators")
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{
		registry: registry,
		tracker:  tracker,
		src:      src,
		logger:   logger,
		maxDepth: maxDepth,
	}
}

// Resolve expands every placeholder in text for the given context and
// returns the resulting string. It never returns an error: unresolvable
// placeholders stay in the output verbatim.
func (r *Resolver) Resolve(text string, ctx *roll.Context) string {
	return r.resolve(text, ctx, 0)
}

func (r *Resolver) resolve(text string, ctx *roll.Context, depth int) string {
	if depth >= r.maxDepth {
		r.logger.Warn("placeholder expansion depth limit reached",
			zap.Int("depth", depth),
			zap.String("text", text),
		)
		return text
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		body := match[1 : len(match)-1]
		name, mods := splitPlaceholder(body)

		tbl, ok := r.registry.Find(name)
		if !ok {
			r.logger.Debug("placeholder table not found",
				zap.String("table", name),
			)
			return match
		}
		if len(tbl.Entries) == 0 {
			return match
		}

		consumable := tbl.Consumable || hasModifier(mods, "consumable")
		produced := r.draw(tbl, ctx.StoryID, consumable)

		for _, mod := range mods {
			if fn, known := transforms[mod]; known {
				produced = fn(produced)
			}
		}

		return r.resolve(produced, ctx, depth+1)
	})
}

// draw performs a uniform roll over tbl's entries. For consumable
// tables it restricts to unconsumed entries first, resetting the
// consumption record when the pool is exhausted so every entry becomes
// eligible again.
func (r *Resolver) draw(tbl *table.Table, storyID string, consumable bool) string {
	if !consumable {
		return tbl.Entries[r.src.Intn(len(tbl.Entries))].Description()
	}

	candidates := make([]string, 0, len(tbl.Entries))
	for _, e := range tbl.Entries {
		text := e.Description()
		if r.tracker.IsAvailable(tbl.Name, storyID, text) {
			candidates = append(candidates, text)
		}
	}
	if len(candidates) == 0 {
		r.tracker.Reset(tbl.Name, storyID)
		for _, e := range tbl.Entries {
			candidates = append(candidates, e.Description())
		}
	}

	produced := candidates[r.src.Intn(len(candidates))]
	r.tracker.MarkConsumed(tbl.Name, storyID, produced)
	return produced
}

// splitPlaceholder separates the table name from its modifier chain.
// Modifier names are normalized to lower case; the table name keeps its
// spelling because registry lookup is case-insensitive anyway.
func splitPlaceholder(body string) (string, []string) {
	parts := strings.Split(body, ".")
	name := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return name, nil
	}
	mods := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		mods = append(mods, strings.ToLower(strings.TrimSpace(p)))
	}
	return name, mods
}

func hasModifier(mods []string, want string) bool {
	for _, m := range mods {
		if m == want {
			return true
		}
	}
	return false
}
