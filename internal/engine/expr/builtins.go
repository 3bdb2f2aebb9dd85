package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// builtinFunc is a whitelisted pure function callable from expressions.
type builtinFunc func(args []any) (any, error)

// builtins is the complete callable surface of the expression language.
// Everything here is pure and total over its admitted inputs; nothing
// touches the host environment.
var builtins = map[string]builtinFunc{
	"abs":      numeric1("abs", math.Abs),
	"floor":    numeric1("floor", math.Floor),
	"ceil":     numeric1("ceil", math.Ceil),
	"round":    numeric1("round", math.Round),
	"min":      numericFold("min", math.Min),
	"max":      numericFold("max", math.Max),
	"number":   builtinNumber,
	"string":   builtinString,
	"len":      builtinLen,
	"contains": builtinContains,
	"isNaN":    builtinIsNaN,
	"isFinite": builtinIsFinite,
}

func numeric1(name string, fn func(float64) float64) builtinFunc {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		f, ok := asNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("expects a number, got %s", typeName(args[0]))
		}
		return fn(f), nil
	}
}

func numericFold(name string, fn func(float64, float64) float64) builtinFunc {
	return func(args []any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expects at least 2 arguments, got %d", len(args))
		}
		acc, ok := asNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("expects numbers, got %s", typeName(args[0]))
		}
		for _, a := range args[1:] {
			f, ok := asNumber(a)
			if !ok {
				return nil, fmt.Errorf("expects numbers, got %s", typeName(a))
			}
			acc = fn(acc, f)
		}
		return acc, nil
	}
}

// builtinNumber coerces its argument to a number; non-numeric strings
// yield NaN rather than an error, so isNaN(number(x)) is usable as a
// numeric test.
func builtinNumber(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	f, ok := asNumber(args[0])
	if !ok {
		return math.NaN(), nil
	}
	return f, nil
}

func builtinString(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	return stringify(args[0]), nil
}

func builtinLen(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	s, ok := normalize(args[0]).(string)
	if !ok {
		return nil, fmt.Errorf("expects a string, got %s", typeName(args[0]))
	}
	return float64(len([]rune(s))), nil
}

func builtinContains(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expects 2 arguments, got %d", len(args))
	}
	haystack, ok := normalize(args[0]).(string)
	if !ok {
		return nil, errors.New("first argument must be a string")
	}
	needle := stringify(args[1])
	return strings.Contains(haystack, needle), nil
}

func builtinIsNaN(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	f, ok := asNumber(args[0])
	if !ok {
		return true, nil
	}
	return math.IsNaN(f), nil
}

func builtinIsFinite(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	f, ok := asNumber(args[0])
	if !ok {
		return false, nil
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0), nil
}
