package strategy

import (
	"fmt"
	"math"
	"strconv"
)

// Arithmetic formula grammar:
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := '-' unary | primary
//	primary := number | ident | ident '(' expr (',' expr)? ')' | '(' expr ')'

type nodeKind int

const (
	nodeConst nodeKind = iota
	nodeVar
	nodeBinary
	nodeCall
)

type node struct {
	kind  nodeKind
	value float64 // nodeConst
	name  string  // nodeVar ident, nodeCall function name
	op    byte    // nodeBinary operator
	left  *node
	right *node
	args  []*node // nodeCall
}

func (n *node) eval(vars map[string]float64) (float64, error) {
	switch n.kind {
	case nodeConst:
		return n.value, nil

	case nodeVar:
		v, ok := vars[n.name]
		if !ok {
			return 0, fmt.Errorf("unknown variable %q", n.name)
		}
		return v, nil

	case nodeBinary:
		left, err := n.left.eval(vars)
		if err != nil {
			return 0, err
		}
		right, err := n.right.eval(vars)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case '+':
			return left + right, nil
		case '-':
			return left - right, nil
		case '*':
			return left * right, nil
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		}
		return 0, fmt.Errorf("unknown operator %q", n.op)

	case nodeCall:
		args := make([]float64, len(n.args))
		for i, arg := range n.args {
			v, err := arg.eval(vars)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		switch n.name {
		case "sqrt":
			if args[0] < 0 {
				return 0, fmt.Errorf("sqrt of negative value %v", args[0])
			}
			return math.Sqrt(args[0]), nil
		case "log":
			if args[0] <= 0 {
				return 0, fmt.Errorf("log of non-positive value %v", args[0])
			}
			return math.Log(args[0]), nil
		case "abs":
			return math.Abs(args[0]), nil
		case "tanh":
			return math.Tanh(args[0]), nil
		case "min":
			return math.Min(args[0], args[1]), nil
		case "max":
			return math.Max(args[0], args[1]), nil
		}
		return 0, fmt.Errorf("unknown function %q", n.name)
	}

	return 0, fmt.Errorf("invalid node")
}

// arity of the supported functions
var functions = map[string]int{
	"sqrt": 1,
	"log":  1,
	"abs":  1,
	"tanh": 1,
	"min":  2,
	"max":  2,
}

type parser struct {
	input string
	pos   int
}

func parseFormula(input string) (*node, error) {
	p := &parser{input: input}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return root, nil
}

func (p *parser) parseExpr() (*node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (*node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (*node, error) {
	p.skipWhitespace()
	if p.pos < len(p.input) && p.input[p.pos] == '-' {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &node{
			kind:  nodeBinary,
			op:    '-',
			left:  &node{kind: nodeConst, value: 0},
			right: operand,
		}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*node, error) {
	p.skipWhitespace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of formula")
	}

	c := p.input[p.pos]

	if c == '(' {
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if isDigit(c) || c == '.' {
		return p.parseNumber()
	}

	if isIdentStart(c) {
		return p.parseIdent()
	}

	return nil, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
}

func (p *parser) parseNumber() (*node, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", p.input[start:p.pos], err)
	}
	return &node{kind: nodeConst, value: value}, nil
}

func (p *parser) parseIdent() (*node, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]

	p.skipWhitespace()
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return &node{kind: nodeVar, name: name}, nil
	}

	arity, ok := functions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}

	p.pos++
	args := make([]*node, 0, arity)
	for i := 0; i < arity; i++ {
		if i > 0 {
			if err := p.expect(','); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	return &node{kind: nodeCall, name: name, args: args}, nil
}

func (p *parser) expect(c byte) error {
	p.skipWhitespace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("expected %q at position %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.input) && isWhitespace(p.input[p.pos]) {
		p.pos++
	}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
