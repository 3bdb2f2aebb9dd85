package table

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneratorBinder resolves named deferred-description generators declared
// in table content. The scripting layer implements this.
type GeneratorBinder interface {
	// Generator returns the deferred description for name, or false if
	// no generator with that name is defined.
	Generator(name string) (DescriptionFunc, bool)
}

// yamlTableFile is the top-level YAML structure for table files.
type yamlTableFile struct {
	Table yamlTable `yaml:"table"`
}

// yamlTable is the YAML representation of a table.
type yamlTable struct {
	Name               string             `yaml:"name"`
	Description        string             `yaml:"description"`
	DiceFormula        string             `yaml:"dice_formula"`
	Consumable         bool               `yaml:"consumable"`
	Entries            []yamlEntry        `yaml:"entries"`
	Relationships      []yamlRelationship `yaml:"relationships"`
	DefaultRollOptions *yamlRollOptions   `yaml:"default_roll_options"`
}

// yamlEntry is the YAML representation of an entry. Min and Max accept
// numbers or numeric strings; absence means "match by weight only".
type yamlEntry struct {
	Min         any            `yaml:"min"`
	Max         any            `yaml:"max"`
	Description string         `yaml:"description"`
	Generator   string         `yaml:"generator"`
	Modifiers   []yamlModifier `yaml:"modifiers"`
	Metadata    *yamlMetadata  `yaml:"metadata"`
}

// yamlModifier is one item of an entry's ordered modifier list. Exactly
// one field must be set per item.
type yamlModifier struct {
	Conditional string        `yaml:"conditional,omitempty"`
	Weighted    *yamlWeighted `yaml:"weighted,omitempty"`
	Linked      string        `yaml:"linked,omitempty"`
	Unique      bool          `yaml:"unique,omitempty"`
}

type yamlWeighted struct {
	Weight             float64                 `yaml:"weight"`
	ConditionalWeights []yamlConditionalWeight `yaml:"conditional_weights"`
}

type yamlConditionalWeight struct {
	When   string  `yaml:"when"`
	Weight float64 `yaml:"weight"`
}

type yamlMetadata struct {
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
	Rarity   string   `yaml:"rarity"`
}

type yamlRelationship struct {
	Target    string `yaml:"target"`
	Condition string `yaml:"condition,omitempty"`
}

type yamlRollOptions struct {
	Type            string  `yaml:"type"`
	RerollCondition string  `yaml:"reroll_condition"`
	AdvantageCount  int     `yaml:"advantage_count"`
	MaxRerolls      int     `yaml:"max_rerolls"`
	Bonus           int     `yaml:"bonus"`
	Multiplier      float64 `yaml:"multiplier"`
	Threshold       int     `yaml:"threshold"`
}

// LoadTableFromFile reads and validates a single table YAML file.
//
// Precondition: path must point to a valid YAML table file.
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTableFromFile(path string, binder GeneratorBinder) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table file %s: %w", path, err)
	}
	return LoadTableFromBytes(data, binder)
}

// LoadTableFromBytes parses and validates a table from YAML bytes.
// Unknown fields are rejected. binder may be nil when the content uses
// no generator entries.
//
// Precondition: data must be valid YAML conforming to the table schema.
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTableFromBytes(data []byte, binder GeneratorBinder) (*Table, error) {
	var file yamlTableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing table YAML: %w", err)
	}

	t, err := convertYAMLTable(file.Table, binder)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validating table: %w", err)
	}
	return t, nil
}

// LoadTablesFromDir loads all *.yaml / *.yml files in dir as tables.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all validated tables or the first error encountered.
func LoadTablesFromDir(dir string, binder GeneratorBinder) ([]*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading table directory %s: %w", dir, err)
	}
	var tables []*Table
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		t, err := LoadTableFromFile(filepath.Join(dir, name), binder)
		if err != nil {
			return nil, fmt.Errorf("loading table from %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func convertYAMLTable(y yamlTable, binder GeneratorBinder) (*Table, error) {
	t := &Table{
		Name:        y.Name,
		Description: y.Description,
		DiceFormula: y.DiceFormula,
		Consumable:  y.Consumable,
	}

	for i, ye := range y.Entries {
		e, err := convertYAMLEntry(ye, binder)
		if err != nil {
			return nil, fmt.Errorf("table %q entry %d: %w", y.Name, i, err)
		}
		t.Entries = append(t.Entries, e)
	}

	for _, yr := range y.Relationships {
		if strings.TrimSpace(yr.Target) == "" {
			return nil, fmt.Errorf("table %q: relationship with empty target", y.Name)
		}
		t.Relationships = append(t.Relationships, Relationship{
			TargetTable: yr.Target,
			Condition:   yr.Condition,
		})
	}

	if y.DefaultRollOptions != nil {
		t.DefaultRollOptions = &RollOptions{
			Type:            RollType(y.DefaultRollOptions.Type),
			RerollCondition: y.DefaultRollOptions.RerollCondition,
			AdvantageCount:  y.DefaultRollOptions.AdvantageCount,
			MaxRerolls:      y.DefaultRollOptions.MaxRerolls,
			Bonus:           y.DefaultRollOptions.Bonus,
			Multiplier:      y.DefaultRollOptions.Multiplier,
			Threshold:       y.DefaultRollOptions.Threshold,
		}
	}

	return t, nil
}

func convertYAMLEntry(y yamlEntry, binder GeneratorBinder) (*Entry, error) {
	min, err := coerceBound(y.Min)
	if err != nil {
		return nil, fmt.Errorf("min: %w", err)
	}
	max, err := coerceBound(y.Max)
	if err != nil {
		return nil, fmt.Errorf("max: %w", err)
	}

	e := &Entry{
		Min:  min,
		Max:  max,
		Text: y.Description,
	}

	if y.Generator != "" {
		if binder == nil {
			return nil, fmt.Errorf("generator %q declared but no generator binder configured", y.Generator)
		}
		gen, ok := binder.Generator(y.Generator)
		if !ok {
			return nil, fmt.Errorf("unknown generator %q", y.Generator)
		}
		e.Generate = gen
		e.GeneratorName = y.Generator
	}

	for j, ym := range y.Modifiers {
		m, err := convertYAMLModifier(ym)
		if err != nil {
			return nil, fmt.Errorf("modifier %d: %w", j, err)
		}
		e.Modifiers = append(e.Modifiers, m)
	}

	if y.Metadata != nil {
		e.Meta = Metadata{
			Tags:     y.Metadata.Tags,
			Category: y.Metadata.Category,
			Rarity:   y.Metadata.Rarity,
		}
	}

	return e, nil
}

func convertYAMLModifier(y yamlModifier) (Modifier, error) {
	set := 0
	if y.Conditional != "" {
		set++
	}
	if y.Weighted != nil {
		set++
	}
	if y.Linked != "" {
		set++
	}
	if y.Unique {
		set++
	}
	if set != 1 {
		return Modifier{}, fmt.Errorf("exactly one of conditional/weighted/linked/unique must be set, got %d", set)
	}

	switch {
	case y.Conditional != "":
		return Modifier{Kind: ModifierConditional, Expression: y.Conditional}, nil
	case y.Weighted != nil:
		m := Modifier{Kind: ModifierWeighted, Weight: y.Weighted.Weight}
		for _, cw := range y.Weighted.ConditionalWeights {
			m.ConditionalWeights = append(m.ConditionalWeights, ConditionalWeight{
				When:   cw.When,
				Weight: cw.Weight,
			})
		}
		return m, nil
	case y.Linked != "":
		return Modifier{Kind: ModifierLinked, DependencyTable: y.Linked}, nil
	default:
		return Modifier{Kind: ModifierUnique}, nil
	}
}

// coerceBound converts a YAML min/max value (number, numeric string, or
// absent) into a range bound.
func coerceBound(v any) (*int, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case int:
		return &b, nil
	case float64:
		n := int(b)
		if float64(n) != b {
			return nil, fmt.Errorf("non-integral bound %v", b)
		}
		return &n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return nil, fmt.Errorf("non-numeric bound %q", b)
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("unsupported bound type %T", v)
	}
}
