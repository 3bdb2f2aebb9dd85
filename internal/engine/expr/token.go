// Package expr implements the conditional expression language used by
// table modifiers, conditional weights, reroll conditions, and
// relationship gates. Expressions are parsed by a hand-written
// recursive-descent parser and evaluated by a tree walker over a fixed
// identifier and function whitelist. There is no dynamic code execution
// path: an expression can only read the variables it is given.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind discriminates lexer tokens.
type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenLParen
	tokenRParen
	tokenComma
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPercent
	tokenBang
	tokenEq  // ==
	tokenNeq // !=
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd // &&
	tokenOr  // ||
)

// token is one lexical unit with its source position for diagnostics.
type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokenEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex tokenizes src. Returns a descriptive error on any character the
// grammar does not admit.
func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r):
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || (runes[i] == '.' && !seenDot)) {
				if runes[i] == '.' {
					seenDot = true
				}
				i++
			}
			toks = append(toks, token{tokenNumber, string(runes[start:i]), start})
		case r == '\'' || r == '"':
			quote := r
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				if runes[i] == quote {
					closed = true
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at position %d", start)
			}
			toks = append(toks, token{tokenString, sb.String(), start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{tokenIdent, string(runes[start:i]), start})
		default:
			start := i
			two := ""
			if i+1 < len(runes) {
				two = string(runes[i : i+2])
			}
			switch two {
			case "==":
				toks = append(toks, token{tokenEq, two, start})
				i += 2
				continue
			case "!=":
				toks = append(toks, token{tokenNeq, two, start})
				i += 2
				continue
			case "<=":
				toks = append(toks, token{tokenLte, two, start})
				i += 2
				continue
			case ">=":
				toks = append(toks, token{tokenGte, two, start})
				i += 2
				continue
			case "&&":
				toks = append(toks, token{tokenAnd, two, start})
				i += 2
				continue
			case "||":
				toks = append(toks, token{tokenOr, two, start})
				i += 2
				continue
			}
			var kind tokenKind
			switch r {
			case '(':
				kind = tokenLParen
			case ')':
				kind = tokenRParen
			case ',':
				kind = tokenComma
			case '+':
				kind = tokenPlus
			case '-':
				kind = tokenMinus
			case '*':
				kind = tokenStar
			case '/':
				kind = tokenSlash
			case '%':
				kind = tokenPercent
			case '!':
				kind = tokenBang
			case '<':
				kind = tokenLt
			case '>':
				kind = tokenGt
			default:
				return nil, fmt.Errorf("unexpected character %q at position %d", string(r), start)
			}
			toks = append(toks, token{kind, string(r), start})
			i++
		}
	}
	toks = append(toks, token{tokenEOF, "", len(runes)})
	return toks, nil
}
