// Package table defines the random-table data model and the registry of
// named tables the resolution engine draws from. Tables are loaded from
// YAML content files or registered programmatically by the host.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// RollType selects the roll strategy used when drawing from a table.
type RollType string

// Supported roll strategies.
const (
	RollStandard     RollType = "standard"
	RollAdvantage    RollType = "advantage"
	RollDisadvantage RollType = "disadvantage"
	RollExploding    RollType = "exploding"
	RollReroll       RollType = "reroll"
)

// ValidRollType reports whether rt is a recognised roll strategy.
func ValidRollType(rt RollType) bool {
	switch rt {
	case RollStandard, RollAdvantage, RollDisadvantage, RollExploding, RollReroll:
		return true
	}
	return false
}

// RollOptions configures a single advanced roll. Zero values mean
// "not set" and are filled from table defaults and engine defaults
// during option merging.
type RollOptions struct {
	// Type is the roll strategy; empty means standard.
	Type RollType
	// RerollCondition is the boolean expression consulted when Type is
	// RollReroll. The engine injects roll_value and reroll_count into
	// the evaluation context.
	RerollCondition string
	// AdvantageCount is how many dice an advantage roll throws.
	// Invariant after merging: AdvantageCount >= 2.
	AdvantageCount int
	// MaxRerolls bounds reroll iterations. Invariant after merging: >= 0.
	MaxRerolls int
	// Bonus is added to the raw roll before the multiplier.
	Bonus int
	// Multiplier scales the roll after the bonus. 0 means "not set".
	Multiplier float64
	// Threshold, when > 0, is a floor applied to the adjusted roll.
	Threshold int
}

// Merged returns base with every field that is set in overlay replacing
// the corresponding base field. Neither receiver nor argument is mutated.
//
// "Set" means non-zero, so a zero overlay field cannot override a
// non-zero base value: a caller that wants MaxRerolls 0 or Bonus 0 on a
// table whose defaults set them must roll without options on a table
// that does not, not overlay a zero. Callers needing explicit zero
// overrides should merge their options by hand before calling Roll.
func (o RollOptions) Merged(overlay *RollOptions) RollOptions {
	out := o
	if overlay == nil {
		return out
	}
	if overlay.Type != "" {
		out.Type = overlay.Type
	}
	if overlay.RerollCondition != "" {
		out.RerollCondition = overlay.RerollCondition
	}
	if overlay.AdvantageCount != 0 {
		out.AdvantageCount = overlay.AdvantageCount
	}
	if overlay.MaxRerolls != 0 {
		out.MaxRerolls = overlay.MaxRerolls
	}
	if overlay.Bonus != 0 {
		out.Bonus = overlay.Bonus
	}
	if overlay.Multiplier != 0 {
		out.Multiplier = overlay.Multiplier
	}
	if overlay.Threshold != 0 {
		out.Threshold = overlay.Threshold
	}
	return out
}

// DefaultRollOptions returns the engine-level roll defaults: a standard
// roll, two advantage dice, three rerolls, no bonus, multiplier 1.
func DefaultRollOptions() RollOptions {
	return RollOptions{
		Type:           RollStandard,
		AdvantageCount: 2,
		MaxRerolls:     3,
		Multiplier:     1,
	}
}

// ModifierKind discriminates the Modifier tagged variant.
type ModifierKind int

// Modifier variants.
const (
	// ModifierConditional gates entry eligibility on a boolean expression.
	ModifierConditional ModifierKind = iota
	// ModifierWeighted overrides the entry's selection weight.
	ModifierWeighted
	// ModifierLinked declares a dependency on another table.
	ModifierLinked
	// ModifierUnique marks the entry for consumption tracking.
	ModifierUnique
)

// ConditionalWeight pairs an expression with the weight used when the
// expression evaluates true.
type ConditionalWeight struct {
	When   string
	Weight float64
}

// Modifier is a declarative rule attached to an entry. Exactly one of
// the kind-specific field groups is meaningful, selected by Kind.
//
// Invariant: Weight and every ConditionalWeight.Weight are >= 0.
type Modifier struct {
	Kind ModifierKind

	// Expression holds the eligibility condition for ModifierConditional.
	Expression string

	// Weight and ConditionalWeights apply to ModifierWeighted.
	Weight             float64
	ConditionalWeights []ConditionalWeight

	// DependencyTable names the linked table for ModifierLinked.
	DependencyTable string
}

// DescriptionFunc is a deferred entry description, evaluated at selection
// time. Implementations must be pure and non-blocking.
type DescriptionFunc func() string

// Metadata carries searchable classification for an entry.
type Metadata struct {
	Tags     []string
	Category string
	Rarity   string
}

// HasTag reports whether tag is present (case-insensitive).
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Entry is one row of a table: an optional roll range, a description
// (static or deferred), and optional modifiers and metadata.
type Entry struct {
	// Min and Max bound the roll range. nil means "match by weight only,
	// not by range".
	Min *int
	Max *int

	// Text is the static description, used when Generate is nil.
	Text string
	// Generate, when non-nil, produces the description at selection time.
	Generate DescriptionFunc
	// GeneratorName records the named script generator Generate was bound
	// from, for diagnostics and persistence round-trips.
	GeneratorName string

	Modifiers []Modifier
	Meta      Metadata
}

// Description resolves the entry's text. Deferred generators are invoked
// here, at selection time, never ahead of it.
func (e *Entry) Description() string {
	if e.Generate != nil {
		return e.Generate()
	}
	return e.Text
}

// InRange reports whether roll falls inside the entry's [Min, Max] range.
// Entries without a range never match by range.
func (e *Entry) InRange(roll int) bool {
	if e.Min == nil || e.Max == nil {
		return false
	}
	return roll >= *e.Min && roll <= *e.Max
}

// WeightModifier returns the first ModifierWeighted attached to the entry.
// When several weighting modifiers are present the first wins; the rest
// are ignored.
func (e *Entry) WeightModifier() (Modifier, bool) {
	for _, m := range e.Modifiers {
		if m.Kind == ModifierWeighted {
			return m, true
		}
	}
	return Modifier{}, false
}

// FirstModifier returns the first modifier of the given kind, if any.
func (e *Entry) FirstModifier(kind ModifierKind) (Modifier, bool) {
	for _, m := range e.Modifiers {
		if m.Kind == kind {
			return m, true
		}
	}
	return Modifier{}, false
}

// HasModifier reports whether the entry carries a modifier of kind.
func (e *Entry) HasModifier(kind ModifierKind) bool {
	_, ok := e.FirstModifier(kind)
	return ok
}

// Relationship declares a cross-table link followed after a roll on the
// owning table. Condition, when non-empty, gates the link.
type Relationship struct {
	TargetTable string
	Condition   string
}

// Table is a named collection of entries content is drawn from.
//
// Invariant: Entries are never mutated during a roll; the engine reads
// a filtered copy.
type Table struct {
	// Name is the unique, case-insensitively matched key.
	Name        string
	Description string
	// DiceFormula is informational only (e.g. "d100"); the engine always
	// rolls percentile.
	DiceFormula string
	Entries     []*Entry
	// Consumable excludes drawn entries from future draws until the pool
	// is exhausted, then resets.
	Consumable         bool
	Relationships      []Relationship
	DefaultRollOptions *RollOptions
}

// ErrNoEntries is returned when validating a table with zero entries.
var ErrNoEntries = errors.New("table has no entries")

// Validate checks the table's structural invariants: non-empty name,
// at least one entry, non-negative weights, min <= max on ranged entries,
// valid default roll options.
//
// Postcondition: Returns nil iff the table is safe to register.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("table name must not be empty")
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("table %q: %w", t.Name, ErrNoEntries)
	}
	for i, e := range t.Entries {
		if (e.Min == nil) != (e.Max == nil) {
			return fmt.Errorf("table %q entry %d: min and max must be set together", t.Name, i)
		}
		if e.Min != nil && *e.Min > *e.Max {
			return fmt.Errorf("table %q entry %d: min %d exceeds max %d", t.Name, i, *e.Min, *e.Max)
		}
		for _, m := range e.Modifiers {
			if m.Kind != ModifierWeighted {
				continue
			}
			if m.Weight < 0 {
				return fmt.Errorf("table %q entry %d: negative weight %v", t.Name, i, m.Weight)
			}
			for _, cw := range m.ConditionalWeights {
				if cw.Weight < 0 {
					return fmt.Errorf("table %q entry %d: negative conditional weight %v", t.Name, i, cw.Weight)
				}
			}
		}
	}
	if o := t.DefaultRollOptions; o != nil {
		if o.Type != "" && !ValidRollType(o.Type) {
			return fmt.Errorf("table %q: unknown roll type %q", t.Name, o.Type)
		}
		if o.AdvantageCount != 0 && o.AdvantageCount < 2 {
			return fmt.Errorf("table %q: advantage count must be >= 2, got %d", t.Name, o.AdvantageCount)
		}
		if o.MaxRerolls < 0 {
			return fmt.Errorf("table %q: max rerolls must be >= 0, got %d", t.Name, o.MaxRerolls)
		}
	}
	return nil
}

// Enhanced reports whether the table uses any advanced feature: entry
// modifiers, relationships, default roll options, or deferred
// descriptions. Plain tables take the fast uniform-roll path.
func (t *Table) Enhanced() bool {
	if len(t.Relationships) > 0 || t.DefaultRollOptions != nil {
		return true
	}
	for _, e := range t.Entries {
		if len(e.Modifiers) > 0 || e.Generate != nil {
			return true
		}
	}
	return false
}
