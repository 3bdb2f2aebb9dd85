package expr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Whitelisted context variables. Anything else is a parse error, so an
// expression can never probe beyond the variables the engine supplies.
var allowedIdents = map[string]bool{
	"character_level": true,
	"character_class": true,
	"party_size":      true,
	"story_progress":  true,
	"current_season":  true,
	"location_type":   true,
	// Engine-injected.
	"roll_count":   true,
	"depth":        true,
	"story_id":     true,
	"last_result":  true,
	"last_table":   true,
	"roll_value":   true,
	"reroll_count": true,
}

func allowedIdent(name string) bool { return allowedIdents[name] }

// AllowedVariables returns the sorted identifier whitelist, for
// diagnostics and documentation surfaces.
func AllowedVariables() []string {
	out := make([]string, 0, len(allowedIdents))
	for k := range allowedIdents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseNumber(text string) (float64, error) {
	return strconv.ParseFloat(text, 64)
}

func (n *numberNode) eval(map[string]any) (any, error) { return n.value, nil }
func (n *stringNode) eval(map[string]any) (any, error) { return n.value, nil }
func (n *boolNode) eval(map[string]any) (any, error)   { return n.value, nil }

func (n *identNode) eval(vars map[string]any) (any, error) {
	v, ok := vars[n.name]
	if !ok {
		return nil, fmt.Errorf("variable %q is not set", n.name)
	}
	return normalize(v), nil
}

func (n *unaryNode) eval(vars map[string]any) (any, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokenBang:
		return !truthy(v), nil
	case tokenMinus:
		f, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("cannot negate %s", typeName(v))
		}
		return -f, nil
	}
	panic("expr: unaryNode with unsupported operator")
}

func (n *binaryNode) eval(vars map[string]any) (any, error) {
	// Boolean operators short-circuit; the right side is not evaluated
	// when the left side decides the result.
	switch n.op {
	case tokenAnd:
		left, err := n.left.eval(vars)
		if err != nil {
			return nil, err
		}
		if !truthy(left) {
			return false, nil
		}
		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case tokenOr:
		left, err := n.left.eval(vars)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenEq:
		return looseEqual(left, right), nil
	case tokenNeq:
		return !looseEqual(left, right), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		return compare(n.op, left, right)
	case tokenPlus:
		// "+" concatenates when either operand is a string.
		if ls, ok := left.(string); ok {
			return ls + stringify(right), nil
		}
		if rs, ok := right.(string); ok {
			return stringify(left) + rs, nil
		}
		return arith(n.op, left, right)
	case tokenMinus, tokenStar, tokenSlash, tokenPercent:
		return arith(n.op, left, right)
	}
	panic("expr: binaryNode with unsupported operator")
}

func (n *callNode) eval(vars map[string]any) (any, error) {
	fn := builtins[n.name]
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(vars)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	return v, nil
}

func compare(op tokenKind, left, right any) (any, error) {
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if lok && rok {
		switch op {
		case tokenLt:
			return lf < rf, nil
		case tokenLte:
			return lf <= rf, nil
		case tokenGt:
			return lf > rf, nil
		case tokenGte:
			return lf >= rf, nil
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch op {
		case tokenLt:
			return ls < rs, nil
		case tokenLte:
			return ls <= rs, nil
		case tokenGt:
			return ls > rs, nil
		case tokenGte:
			return ls >= rs, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %s and %s", typeName(left), typeName(right))
}

func arith(op tokenKind, left, right any) (any, error) {
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("arithmetic requires numbers, got %s and %s", typeName(left), typeName(right))
	}
	switch op {
	case tokenPlus:
		return lf + rf, nil
	case tokenMinus:
		return lf - rf, nil
	case tokenStar:
		return lf * rf, nil
	case tokenSlash:
		if rf == 0 {
			return nil, errors.New("division by zero")
		}
		return lf / rf, nil
	case tokenPercent:
		if rf == 0 {
			return nil, errors.New("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	panic("expr: arith with unsupported operator")
}

// normalize folds Go numeric types into float64 so the evaluator deals
// with a single number representation.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64, string, bool, nil:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

func asNumber(v any) (float64, bool) {
	switch x := normalize(v).(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch x := normalize(v).(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case nil:
		return false
	default:
		return true
	}
}

// looseEqual compares with numeric coercion: a number equals its string
// form, matching how content authors write "character_class == 'rogue'"
// and "story_progress == '50'" interchangeably.
func looseEqual(left, right any) bool {
	left, right = normalize(left), normalize(right)
	if lf, ok := asNumber(left); ok {
		if rf, rok := asNumber(right); rok {
			return lf == rf
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return ls == rs
	}
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		return lb == rb
	}
	return left == right
}

func stringify(v any) string {
	switch x := normalize(v).(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func typeName(v any) string {
	switch normalize(v).(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}
