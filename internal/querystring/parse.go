package querystring

import (
	"strings"

	"github.com/Aman-CERP/searchkit/internal/errors"
)

// NodeKind identifies a node of a parsed query string.
type NodeKind int

const (
	NodeTerm NodeKind = iota
	NodeAnd
	NodeOr
	NodeNot
)

// Node is a parsed canonical query string. Term nodes carry the optional
// field prefix ("title:go") and the unescaped text.
type Node struct {
	Kind     NodeKind
	Field    string
	Text     string
	Phrase   bool
	Wildcard bool
	Children []*Node
}

// Parse reads a query in canonical syntax. Adjacent operands without an
// operator are joined with defaultOp (OpAnd or OpOr). NOT binds tighter
// than AND, which binds tighter than OR.
func Parse(query, defaultOp string) (*Node, error) {
	cfg := DefaultConfig()
	p := &parser{tokens: replace(tokenize(query, cfg), cfg.Replacements), defaultOp: defaultOp}
	if len(p.tokens) == 0 {
		return nil, errors.Newf(errors.ErrCodeQuerySyntax, "empty query string")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.unexpected()
	}
	return n, nil
}

type parser struct {
	tokens    []token
	pos       int
	defaultOp string
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) startsOperand() bool {
	t, ok := p.peek()
	return ok && (t.kind == kindTerm || t.kind == kindNot || t.kind == kindOpen)
}

func (p *parser) unexpected() error {
	t, ok := p.peek()
	if !ok {
		return errors.Newf(errors.ErrCodeQuerySyntax, "unexpected end of query")
	}
	return errors.Newf(errors.ErrCodeQuerySyntax, "unexpected %q at token %d", t.text, p.pos+1)
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for {
		t, ok := p.peek()
		switch {
		case ok && t.kind == kindOr:
			p.pos++
		case p.defaultOp == OpOr && p.startsOperand():
		default:
			return combine(NodeOr, children), nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for {
		t, ok := p.peek()
		switch {
		case ok && t.kind == kindAnd:
			p.pos++
		case p.defaultOp != OpOr && p.startsOperand():
		default:
			return combine(NodeAnd, children), nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
}

func (p *parser) parseUnary() (*Node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, p.unexpected()
	}
	switch t.kind {
	case kindNot:
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeNot, Children: []*Node{inner}}, nil
	case kindOpen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c, ok := p.peek(); !ok || c.kind != kindClose {
			return nil, p.unexpected()
		}
		p.pos++
		return inner, nil
	case kindTerm:
		p.pos++
		return termNode(t.text), nil
	}
	return nil, p.unexpected()
}

func combine(kind NodeKind, children []*Node) *Node {
	if len(children) == 1 {
		return children[0]
	}
	return &Node{Kind: kind, Children: children}
}

func termNode(raw string) *Node {
	n := &Node{Kind: NodeTerm}
	if i := fieldSeparator(raw); i > 0 {
		n.Field = raw[:i]
		raw = raw[i+1:]
	}
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		n.Phrase = true
		n.Text = unescape(raw[1 : len(raw)-1])
		return n
	}
	n.Wildcard = hasUnescapedWildcard(raw)
	n.Text = unescape(raw)
	return n
}

// fieldSeparator returns the index of the first unescaped ':' outside a
// phrase, or -1.
func fieldSeparator(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return -1
		case ':':
			return i
		}
	}
	return -1
}

func hasUnescapedWildcard(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?':
			return true
		}
	}
	return false
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
