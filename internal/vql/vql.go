// Package vql parses and compiles the boolean search language.
//
// Grammar (precedence ! > & > |, adjacency is an implicit &):
//
//	expr  := or
//	or    := and ('|' and)*
//	and   := unary ('&'? unary)*
//	unary := '!' unary | '(' expr ')' | token
//
// Tokens are lower-cased and may carry a prefix ("tag:red", "discount:summer").
// Each token compiles to an existence test against the search terms of the
// row being filtered.
package vql

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/queryir"
)

// Op is the operator of a Node.
type Op string

const (
	OpAnd  Op = "&"
	OpOr   Op = "|"
	OpNot  Op = "!"
	OpLeaf Op = "LEAF"
)

// Node is a VQL expression tree node. Binary operators carry two Args,
// OpNot carries one and OpLeaf carries a Value.
type Node struct {
	Op    Op
	Args  []*Node
	Value string
}

// String renders the tree in fully parenthesized form.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Op {
	case OpLeaf:
		return n.Value
	case OpNot:
		if len(n.Args) == 0 {
			return "!"
		}
		return "!" + n.Args[0].String()
	default:
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, " "+string(n.Op)+" ") + ")"
	}
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isSpecial(r rune) bool {
	return r == '&' || r == '|' || r == '!' || r == '(' || r == ')'
}

func lex(src string) []token {
	var toks []token
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '&':
			toks = append(toks, token{kind: tokAnd, text: "&", pos: i})
			i++
		case r == '|':
			toks = append(toks, token{kind: tokOr, text: "|", pos: i})
			i++
		case r == '!':
			toks = append(toks, token{kind: tokNot, text: "!", pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && !isSpecial(runes[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: string(runes[start:i]), pos: start})
		}
	}
	return toks
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() (token, bool) {
	if p.i >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.i], true
}

func (p *parser) errorf(format string, args ...any) error {
	return ir.NewQueryCompileError("vql: "+format, args...)
}

// Parse parses src into a tree. A blank string yields (nil, nil).
// Any syntax error is a QueryCompile storage error.
func Parse(src string) (*Node, error) {
	p := &parser{toks: lex(src)}
	if len(p.toks) == 0 {
		return nil, nil
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, p.errorf("unexpected %q at %d", tok.text, tok.pos)
	}
	return n, nil
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOr {
			return left, nil
		}
		p.i++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Op: OpOr, Args: []*Node{left, right}}
	}
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok {
			return left, nil
		}
		switch tok.kind {
		case tokAnd:
			p.i++
		case tokWord, tokNot, tokLParen:
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{Op: OpAnd, Args: []*Node{left, right}}
	}
}

func (p *parser) parseUnary() (*Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.errorf("unexpected end of query")
	}
	switch tok.kind {
	case tokNot:
		p.i++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Op: OpNot, Args: []*Node{operand}}, nil
	case tokLParen:
		p.i++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return nil, p.errorf("unbalanced parenthesis at %d", tok.pos)
		}
		p.i++
		return inner, nil
	case tokWord:
		p.i++
		return &Node{Op: OpLeaf, Value: strings.ToLower(tok.text)}, nil
	default:
		return nil, p.errorf("unexpected %q at %d", tok.text, tok.pos)
	}
}

// Compile turns a tree into a predicate over the rows of outer.
// A nil tree compiles to a nil predicate (no filter).
func Compile(n *Node, outer string) (queryir.Predicate, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Op {
	case OpLeaf:
		if n.Value == "" {
			return nil, ir.NewQueryCompileError("vql: empty token")
		}
		return Leaf(outer, n.Value), nil
	case OpNot:
		if len(n.Args) != 1 || n.Args[0] == nil {
			return nil, ir.NewQueryCompileError("vql: ! without operand")
		}
		inner, err := Compile(n.Args[0], outer)
		if err != nil {
			return nil, err
		}
		return queryir.Not{Predicate: inner}, nil
	case OpAnd, OpOr:
		if len(n.Args) == 0 {
			return nil, ir.NewQueryCompileError("vql: %s without operands", n.Op)
		}
		preds := make([]queryir.Predicate, 0, len(n.Args))
		for _, a := range n.Args {
			p, err := Compile(a, outer)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if n.Op == OpAnd {
			return queryir.And{Predicates: preds}, nil
		}
		return queryir.Or{Predicates: preds}, nil
	default:
		return nil, ir.NewQueryCompileError("vql: unknown operator %q", n.Op)
	}
}

// Leaf is the existence test for one token against the search terms of outer.
// Search terms are shared by every kind, so rows are matched by entity_id.
// The token is matched literally; LIKE wildcards in it are escaped.
func Leaf(outer, token string) queryir.Predicate {
	t := string(entity.SearchTerms)
	return queryir.Exists{Sub: queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.C(t, entity.ColID)}},
		From:    t,
		Where: queryir.And{Predicates: []queryir.Predicate{
			queryir.Eq(queryir.C(t, entity.ColEntityID), queryir.C(outer, "id")),
			queryir.Cmp{Left: queryir.C(t, entity.ColValue), Op: queryir.OpLike, Right: queryir.V(queryir.EscapeLike(token))},
		}},
	}}
}

// CompileString parses and compiles src in one step.
func CompileString(src, outer string) (queryir.Predicate, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	p, err := Compile(n, outer)
	if err != nil {
		return nil, fmt.Errorf("compile vql: %w", err)
	}
	return p, nil
}
