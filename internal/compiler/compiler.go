// Package compiler turns optimized expression trees into backend query plan
// fragments.
//
// Compilation runs an ordered chain of translators. Each translator handles
// one expression shape; the first one whose Supports returns true compiles
// the node. A nil fragment means no constraint and is dropped by the parent
// combinator. Compilers are immutable and safe for concurrent use; all
// per-call state lives in Context.
package compiler

import (
	"time"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/querystring"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// Context is the per-call compilation state.
type Context struct {
	// Locale selects the language variant of multilingual fields, e.g.
	// "de-CH". Empty uses the base field.
	Locale string

	// Location anchors dates and day boundaries. Nil means UTC.
	Location *time.Location

	// SortFilter is set while compiling a filter that only qualifies the
	// sort order. Nested scoping is skipped for such filters.
	SortFilter bool

	// Visited holds nodes an earlier step of this call already turned into
	// part of the request, e.g. a relevance sort. Compile skips them. Generic
	// compilation never adds to it, so a node shared by two branches
	// compiles in both.
	Visited *Visited
}

// NewContext returns a Context with a fresh visited set.
func NewContext(locale string, loc *time.Location) *Context {
	return &Context{Locale: locale, Location: loc, Visited: NewVisited()}
}

func (c *Context) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// sortFilter returns a copy of c for compiling sort filters, with its own
// visited set.
func (c *Context) sortFilter() *Context {
	cp := *c
	cp.SortFilter = true
	cp.Visited = NewVisited()
	return &cp
}

// Visited is the set of nodes marked processed during one call. Sentinels
// are shared values and never recorded.
type Visited struct {
	seen map[expr.Expr]struct{}
}

// NewVisited returns an empty set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[expr.Expr]struct{})}
}

// Mark records e and reports whether it was newly added.
func (v *Visited) Mark(e expr.Expr) bool {
	if isSentinel(e) {
		return true
	}
	if _, ok := v.seen[e]; ok {
		return false
	}
	v.seen[e] = struct{}{}
	return true
}

// Has reports whether e was marked.
func (v *Visited) Has(e expr.Expr) bool {
	_, ok := v.seen[e]
	return ok
}

func isSentinel(e expr.Expr) bool {
	switch e.Kind() {
	case expr.KindEmpty, expr.KindTrue, expr.KindFalse, expr.KindFindAll:
		return true
	}
	return false
}

// Translator compiles one expression shape.
type Translator interface {
	// Supports reports whether the translator handles e.
	Supports(e expr.Expr, ctx *Context) bool

	// Translate compiles e. A nil query means no constraint.
	Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error)
}

// Options configure a Compiler.
type Options struct {
	// KeywordSuffix names the untokenized sibling of text fields.
	KeywordSuffix string

	// QueryString configures the preprocessor applied to Fulltext queries.
	QueryString querystring.Config

	// DefaultOperator is passed to the backend with query strings.
	DefaultOperator string

	// DefaultFields are searched by Fulltext nodes without fields.
	DefaultFields []string

	// Translators run before the built-in chain.
	Translators []Translator
}

// DefaultOptions returns the options used by New when none are given.
func DefaultOptions() Options {
	return Options{
		KeywordSuffix:   "keyword",
		QueryString:     querystring.DefaultConfig(),
		DefaultOperator: "AND",
	}
}

// Compiler compiles expressions against one schema.
type Compiler struct {
	schema      *schema.Schema
	resolver    *FieldResolver
	pre         *querystring.Preprocessor
	opts        Options
	translators []Translator
}

// New returns a Compiler for s.
func New(s *schema.Schema, opts Options) *Compiler {
	def := DefaultOptions()
	if opts.KeywordSuffix == "" {
		opts.KeywordSuffix = def.KeywordSuffix
	}
	if opts.DefaultOperator == "" {
		opts.DefaultOperator = def.DefaultOperator
	}
	c := &Compiler{
		schema:   s,
		resolver: NewFieldResolver(s, opts.KeywordSuffix),
		pre:      querystring.New(opts.QueryString),
		opts:     opts,
	}
	c.translators = append(append([]Translator(nil), opts.Translators...), defaultChain()...)
	return c
}

func defaultChain() []Translator {
	return []Translator{
		sentinelTranslator{},
		operationTranslator{},
		mustNotTranslator{},
		isNullTranslator{},
		inTranslator{},
		rangeTranslator{},
		dayTranslator{},
		keywordTranslator{},
		fulltextTranslator{},
		valueTranslator{},
	}
}

// Schema returns the schema the compiler resolves fields against.
func (c *Compiler) Schema() *schema.Schema { return c.schema }

// Resolver returns the field resolver.
func (c *Compiler) Resolver() *FieldResolver { return c.resolver }

// Compile translates e. It returns nil when e imposes no constraint, and a
// validation error for structurally invalid expressions.
func (c *Compiler) Compile(e expr.Expr, ctx *Context) (plan.Query, error) {
	if e == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = NewContext("", nil)
	}
	if ctx.Visited == nil {
		ctx.Visited = NewVisited()
	}
	if !isSentinel(e) && ctx.Visited.Has(e) {
		return nil, nil
	}

	for _, t := range c.translators {
		if !t.Supports(e, ctx) {
			continue
		}
		return t.Translate(e, ctx, c)
	}
	return nil, nil
}

func invalid(format string, args ...any) error {
	return errors.Newf(errors.ErrCodeInvalidExpression, format, args...)
}
