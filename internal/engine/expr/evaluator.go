package expr

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// denylist contains host-escape markers screened before any parse. The
// grammar cannot express these constructs anyway; the screen exists so a
// hostile expression fails with an explicit containment error instead of
// a generic syntax error, and so the containment contract is testable
// independently of the parser.
var denylist = []string{
	"function",
	"constructor",
	"prototype",
	"__proto__",
	"eval",
	"require",
	"import",
	"process",
	"global",
	"globalthis",
	"window",
	"document",
	"settimeout",
	"setinterval",
	"setimmediate",
	"fetch",
	"xmlhttprequest",
}

// Result is the outcome of evaluating one conditional expression.
// A non-nil Err means the condition is treated as false; the error text
// is surfaced for diagnostics and never crashes the caller.
type Result struct {
	Value   bool
	Err     error
	Elapsed time.Duration
}

// Evaluator parses and evaluates conditional expressions. It caches
// compiled expression trees, so repeated evaluation of the same
// expression text skips the parser.
//
// Evaluator is safe for concurrent use.
type Evaluator struct {
	logger *zap.Logger

	mu       sync.RWMutex
	compiled map[string]node
}

// NewEvaluator creates an Evaluator logging diagnostics to logger.
//
// Precondition: logger must be non-nil (use zap.NewNop() for silence).
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		panic("expr: NewEvaluator requires a non-nil logger")
	}
	return &Evaluator{
		logger:   logger,
		compiled: make(map[string]node),
	}
}

// Evaluate screens, parses, and evaluates expression against vars.
// Any failure — a denylisted construct, a syntax error, an unset
// variable, a type error — yields Value=false with a descriptive Err.
// Evaluate never panics on caller input.
//
// Postcondition: Result.Elapsed covers screen+parse+walk time.
func (e *Evaluator) Evaluate(expression string, vars map[string]any) Result {
	start := time.Now()

	n, err := e.compile(expression)
	if err != nil {
		e.logger.Warn("expression rejected",
			zap.String("expression", expression),
			zap.Error(err),
		)
		return Result{Value: false, Err: err, Elapsed: time.Since(start)}
	}

	if vars == nil {
		vars = map[string]any{}
	}
	v, err := n.eval(vars)
	if err != nil {
		e.logger.Warn("expression evaluation failed",
			zap.String("expression", expression),
			zap.Error(err),
		)
		return Result{Value: false, Err: err, Elapsed: time.Since(start)}
	}

	return Result{Value: truthy(v), Elapsed: time.Since(start)}
}

// Validate screens and parses expression without evaluating it.
//
// Postcondition: Returns nil iff Evaluate of the same expression cannot
// fail for structural reasons (it may still fail on unset variables).
func (e *Evaluator) Validate(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) compile(expression string) (node, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	e.mu.RLock()
	n, ok := e.compiled[expression]
	e.mu.RUnlock()
	if ok {
		return n, nil
	}

	if marker, hit := screen(expression); hit {
		return nil, fmt.Errorf("expression contains forbidden construct %q", marker)
	}

	n, err := parse(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.compiled[expression] = n
	e.mu.Unlock()
	return n, nil
}

// screen reports the first denylisted marker found in expression,
// matched case-insensitively against identifier-like substrings.
func screen(expression string) (string, bool) {
	lower := strings.ToLower(expression)
	for _, marker := range denylist {
		idx := strings.Index(lower, marker)
		for idx >= 0 {
			if isolatedWord(lower, idx, len(marker)) {
				return marker, true
			}
			next := strings.Index(lower[idx+1:], marker)
			if next < 0 {
				break
			}
			idx += 1 + next
		}
	}
	return "", false
}

// isolatedWord reports whether the match at [idx, idx+n) is not embedded
// inside a longer identifier, so "story_progress" does not trip on
// "process"-like fragments while "process.exit()" does.
func isolatedWord(s string, idx, n int) bool {
	if idx > 0 && isWordChar(s[idx-1]) {
		return false
	}
	end := idx + n
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
