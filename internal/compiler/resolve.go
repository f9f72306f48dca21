package compiler

import (
	"slices"
	"strings"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// ResolvedField is a logical field mapped to its physical path.
type ResolvedField struct {
	Field *schema.Field

	// Path is the physical field path to query.
	Path string

	// NestedPath is the closest nested container, or "".
	NestedPath string

	// Analyzed is set when Path holds tokenized text.
	Analyzed bool
}

// FieldResolver maps logical field names to physical paths.
type FieldResolver struct {
	schema        *schema.Schema
	keywordSuffix string
}

// NewFieldResolver returns a resolver for s.
func NewFieldResolver(s *schema.Schema, keywordSuffix string) *FieldResolver {
	return &FieldResolver{schema: s, keywordSuffix: keywordSuffix}
}

// Resolve maps name to a physical path.
//
// Trailing path segments that do not name a schema field are kept as a
// physical suffix, so "title.raw" resolves against "title". Multilingual
// fields get the language of ctx.Locale appended, or the first schema
// language when there is no locale. When exact is set, text fields with an
// untokenized sibling resolve to it; other text fields stay Analyzed.
func (r *FieldResolver) Resolve(name string, ctx *Context, exact bool) (ResolvedField, error) {
	f, suffix, ok := r.lookup(name)
	if !ok {
		return ResolvedField{}, errors.Newf(errors.ErrCodeUnknownField, "unknown field %q", name).
			WithDetail("field", name)
	}

	rf := ResolvedField{Field: f, Path: f.Path(), NestedPath: r.schema.NestedScope(f)}
	if f.Multilingual {
		if lang := r.language(ctx); lang != "" {
			rf.Path += schema.PathSeparator + lang
		}
	}
	switch {
	case suffix != "":
		rf.Path += schema.PathSeparator + suffix
	case f.Type != schema.TypeText:
	case exact && f.HasKeyword():
		rf.Path += schema.PathSeparator + r.keywordSuffix
	default:
		rf.Analyzed = true
	}
	return rf, nil
}

func (r *FieldResolver) language(ctx *Context) string {
	if ctx != nil && ctx.Locale != "" {
		lang := LanguageOf(ctx.Locale)
		if len(r.schema.Languages) == 0 || slices.Contains(r.schema.Languages, lang) {
			return lang
		}
	}
	if len(r.schema.Languages) > 0 {
		return r.schema.Languages[0]
	}
	return ""
}

func (r *FieldResolver) lookup(name string) (*schema.Field, string, bool) {
	if f, ok := r.schema.Lookup(name); ok {
		return f, "", true
	}
	head := name
	for {
		i := strings.LastIndex(head, schema.PathSeparator)
		if i <= 0 {
			return nil, "", false
		}
		head = head[:i]
		if f, ok := r.schema.Lookup(head); ok {
			return f, name[len(head)+1:], true
		}
	}
}

// LanguageOf returns the lower-case language subtag of a locale such as
// "de-CH" or "pt_BR".
func LanguageOf(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

// scope wraps q in a nested query when the field lives inside a nested
// container, unless the context only qualifies sort order.
func scope(rf ResolvedField, q plan.Query, ctx *Context) plan.Query {
	if q == nil || rf.NestedPath == "" || ctx.SortFilter {
		return q
	}
	return &plan.NestedQuery{Path: rf.NestedPath, Query: q}
}
