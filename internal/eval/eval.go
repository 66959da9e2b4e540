// Package eval implements a restricted arithmetic formula evaluator for
// allometric and custom biomass equations. Formulas come from operator
// configuration, so the grammar is deliberately closed: numeric literals,
// variable references, + - * / **, parentheses, and the functions abs and
// pow. There is no other name resolution and no dynamic execution path.
package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"ecometrics/internal/model"
)

// Expr is a parsed formula, reusable across records.
type Expr struct {
	formula string
	root    node
}

// Compile parses a formula into a bounded AST.
func Compile(formula string) (*Expr, error) {
	toks, err := lex(formula)
	if err != nil {
		return nil, evalErr(formula, err.Error())
	}
	p := &parser{formula: formula, toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, evalErr(formula, fmt.Sprintf("unexpected %q", p.peek().text))
	}
	return &Expr{formula: formula, root: root}, nil
}

// Eval computes the formula against the variable map. It fails on undefined
// variables, division by zero, and non-finite results.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	v, err := e.root.eval(e.formula, vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, evalErr(e.formula, "result is not a finite number")
	}
	return v, nil
}

// Evaluate is the one-shot form of Compile + Eval.
func Evaluate(formula string, vars map[string]float64) (float64, error) {
	expr, err := Compile(formula)
	if err != nil {
		return 0, err
	}
	return expr.Eval(vars)
}

func evalErr(formula, msg string) *model.EvaluationError {
	return &model.EvaluationError{Formula: formula, Msg: msg}
}

// ---- lexer ----

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp    // + - * / **
	tokPunct // ( ) ,
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			// exponent suffix, e.g. 1.5e-3
			if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
				k := j + 1
				if k < len(s) && (s[k] == '+' || s[k] == '-') {
					k++
				}
				if k < len(s) && s[k] >= '0' && s[k] <= '9' {
					for k < len(s) && s[k] >= '0' && s[k] <= '9' {
						k++
					}
					j = k
				}
			}
			f, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", s[i:j])
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], num: f})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		case c == '*':
			if i+1 < len(s) && s[i+1] == '*' {
				toks = append(toks, token{kind: tokOp, text: "**"})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: "*"})
				i++
			}
		case strings.ContainsRune("+-/", c):
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case strings.ContainsRune("(),", c):
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

// ---- parser ----
//
// expr    := mul (('+' | '-') mul)*
// mul     := unary (('*' | '/') unary)*
// unary   := '-' unary | '+' unary | power
// power   := primary ('**' unary)?          — right associative
// primary := number | ident | ident '(' args ')' | '(' expr ')'

type parser struct {
	formula string
	toks    []token
	pos     int
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) accept(kind tokenKind, text string) bool {
	if p.peek().kind == kind && p.peek().text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept(tokOp, "+"):
			right, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			left = &binaryNode{op: "+", left: left, right: right}
		case p.accept(tokOp, "-"):
			right, err := p.parseMul()
			if err != nil {
				return nil, err
			}
			left = &binaryNode{op: "-", left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseMul() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept(tokOp, "*"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &binaryNode{op: "*", left: left, right: right}
		case p.accept(tokOp, "/"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &binaryNode{op: "/", left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.accept(tokOp, "-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{operand: operand}, nil
	}
	if p.accept(tokOp, "+") {
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.accept(tokOp, "**") {
		// right associative, and the exponent may itself be signed: 2 ** -1
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "**", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &literalNode{value: t.num}, nil
	case tokIdent:
		if p.accept(tokPunct, "(") {
			return p.parseCall(t.text)
		}
		return &variableNode{name: t.text}, nil
	case tokPunct:
		if t.text == "(" {
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.accept(tokPunct, ")") {
				return nil, evalErr(p.formula, "missing closing parenthesis")
			}
			return inner, nil
		}
	}
	return nil, evalErr(p.formula, fmt.Sprintf("unexpected %q", t.text))
}

func (p *parser) parseCall(name string) (node, error) {
	arity, ok := functions[name]
	if !ok {
		return nil, evalErr(p.formula, fmt.Sprintf("unknown function %q", name))
	}
	var args []node
	if !p.accept(tokPunct, ")") {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.accept(tokPunct, ",") {
				continue
			}
			if p.accept(tokPunct, ")") {
				break
			}
			return nil, evalErr(p.formula, fmt.Sprintf("malformed arguments to %q", name))
		}
	}
	if len(args) != arity {
		return nil, evalErr(p.formula, fmt.Sprintf("%s expects %d argument(s), got %d", name, arity, len(args)))
	}
	return &callNode{name: name, args: args}, nil
}

// functions is the whitelisted call set, name to arity.
var functions = map[string]int{
	"abs": 1,
	"pow": 2,
}

// ---- AST ----

type node interface {
	eval(formula string, vars map[string]float64) (float64, error)
}

type literalNode struct{ value float64 }

func (n *literalNode) eval(string, map[string]float64) (float64, error) { return n.value, nil }

type variableNode struct{ name string }

func (n *variableNode) eval(formula string, vars map[string]float64) (float64, error) {
	v, ok := vars[n.name]
	if !ok {
		return 0, evalErr(formula, fmt.Sprintf("undefined variable %q", n.name))
	}
	return v, nil
}

type unaryNode struct{ operand node }

func (n *unaryNode) eval(formula string, vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(formula, vars)
	return -v, err
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(formula string, vars map[string]float64) (float64, error) {
	l, err := n.left.eval(formula, vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(formula, vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, evalErr(formula, "division by zero")
		}
		return l / r, nil
	case "**":
		return math.Pow(l, r), nil
	}
	return 0, evalErr(formula, fmt.Sprintf("unknown operator %q", n.op))
}

type callNode struct {
	name string
	args []node
}

func (n *callNode) eval(formula string, vars map[string]float64) (float64, error) {
	vals := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(formula, vars)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	switch n.name {
	case "abs":
		return math.Abs(vals[0]), nil
	case "pow":
		return math.Pow(vals[0], vals[1]), nil
	}
	return 0, evalErr(formula, fmt.Sprintf("unknown function %q", n.name))
}
