package expr

import "fmt"

// node is a parsed expression tree node.
type node interface {
	// eval walks the node against vars. Returns the computed value or
	// a descriptive error; evaluation is side-effect-free.
	eval(vars map[string]any) (any, error)
}

type numberNode struct{ value float64 }

type stringNode struct{ value string }

type boolNode struct{ value bool }

// identNode reads a whitelisted context variable.
type identNode struct {
	name string
	pos  int
}

// unaryNode is !x or -x.
type unaryNode struct {
	op      tokenKind
	operand node
}

// binaryNode covers arithmetic, comparison, and boolean operators.
type binaryNode struct {
	op    tokenKind
	left  node
	right node
}

// callNode is a whitelisted function call.
type callNode struct {
	name string
	pos  int
	args []node
}

// parser is a recursive-descent parser over the token stream.
//
// Grammar (lowest to highest precedence):
//
//	expr       = orExpr
//	orExpr     = andExpr { "||" andExpr }
//	andExpr    = equality { "&&" equality }
//	equality   = relational { ("==" | "!=") relational }
//	relational = additive { ("<" | "<=" | ">" | ">=") additive }
//	additive   = term { ("+" | "-") term }
//	term       = unary { ("*" | "/" | "%") unary }
//	unary      = ("!" | "-") unary | primary
//	primary    = NUMBER | STRING | "true" | "false" | IDENT
//	           | IDENT "(" [expr {"," expr}] ")" | "(" expr ")"
type parser struct {
	toks []token
	pos  int
}

// parse compiles src into an expression tree.
func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %s at position %d", p.peek(), p.peek().pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return token{}, fmt.Errorf("expected %s, found %s at position %d", what, t, t.pos)
	}
	return p.next(), nil
}

func (p *parser) orExpr() (node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tokenOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (node, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) equality() (node, error) {
	left, err := p.relational()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenEq || p.peek().kind == tokenNeq {
		op := p.next().kind
		right, err := p.relational()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) relational() (node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().kind
		if k != tokenLt && k != tokenLte && k != tokenGt && k != tokenGte {
			return left, nil
		}
		p.next()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: k, left: left, right: right}
	}
}

func (p *parser) additive() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenPlus || p.peek().kind == tokenMinus {
		op := p.next().kind
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().kind
		if k != tokenStar && k != tokenSlash && k != tokenPercent {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: k, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	k := p.peek().kind
	if k == tokenBang || k == tokenMinus {
		op := p.next().kind
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokenNumber:
		p.next()
		v, err := parseNumber(t.text)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return &numberNode{value: v}, nil

	case tokenString:
		p.next()
		return &stringNode{value: t.text}, nil

	case tokenIdent:
		p.next()
		switch t.text {
		case "true":
			return &boolNode{value: true}, nil
		case "false":
			return &boolNode{value: false}, nil
		}
		if p.peek().kind == tokenLParen {
			return p.call(t)
		}
		if !allowedIdent(t.text) {
			return nil, fmt.Errorf("unknown identifier %q at position %d", t.text, t.pos)
		}
		return &identNode{name: t.text, pos: t.pos}, nil

	case tokenLParen:
		p.next()
		inner, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, fmt.Errorf("unexpected %s at position %d", t, t.pos)
	}
}

func (p *parser) call(name token) (node, error) {
	if _, ok := builtins[name.text]; !ok {
		return nil, fmt.Errorf("unknown function %q at position %d", name.text, name.pos)
	}
	p.next() // consume "("

	var args []node
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.orExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokenRParen, `")"`); err != nil {
		return nil, err
	}
	return &callNode{name: name.text, pos: name.pos, args: args}, nil
}
