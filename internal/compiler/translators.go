package compiler

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

type sentinelTranslator struct{}

func (sentinelTranslator) Supports(e expr.Expr, _ *Context) bool { return isSentinel(e) }

func (sentinelTranslator) Translate(e expr.Expr, _ *Context, _ *Compiler) (plan.Query, error) {
	switch e.Kind() {
	case expr.KindTrue, expr.KindFindAll:
		return &plan.MatchAllQuery{}, nil
	case expr.KindFalse:
		return &plan.MatchNoneQuery{}, nil
	}
	return nil, nil
}

type operationTranslator struct{}

func (operationTranslator) Supports(e expr.Expr, _ *Context) bool {
	return e.Kind() == expr.KindOperation
}

func (operationTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	op := e.(*expr.Operation)

	clauses := make([]plan.Query, 0, len(op.Children))
	for _, child := range op.Children {
		q, err := c.Compile(child, ctx)
		if err != nil {
			return nil, err
		}
		if q != nil {
			clauses = append(clauses, q)
		}
	}

	var q plan.Query
	switch {
	case len(clauses) == 0:
		return nil, nil
	case len(clauses) == 1:
		q = clauses[0]
	case op.Op == expr.OpOr:
		q = &plan.BoolQuery{Should: clauses, MinimumShouldMatch: 1}
	default:
		b := &plan.BoolQuery{}
		for _, cl := range clauses {
			if nb, ok := cl.(*plan.BoolQuery); ok && nb.IsNegationOnly() {
				b.MustNot = append(b.MustNot, nb.MustNot...)
				continue
			}
			b.Must = append(b.Must, cl)
		}
		q = b
	}
	return plan.WithBoost(q, op.Boost), nil
}

type mustNotTranslator struct{}

func (mustNotTranslator) Supports(e expr.Expr, _ *Context) bool {
	return e.Kind() == expr.KindMustNot
}

func (mustNotTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	inner, err := c.Compile(e.(*expr.MustNot).Expr, ctx)
	if err != nil || inner == nil {
		return nil, err
	}
	return &plan.BoolQuery{MustNot: []plan.Query{inner}}, nil
}

type isNullTranslator struct{}

func (isNullTranslator) Supports(e expr.Expr, _ *Context) bool {
	return e.Kind() == expr.KindIsNull
}

func (isNullTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	n := e.(*expr.IsNull)
	rf, err := c.resolver.Resolve(n.Field, ctx, false)
	if err != nil {
		return nil, err
	}
	exists := scope(rf, &plan.ExistsQuery{Field: rf.Path}, ctx)
	if n.Negated {
		return exists, nil
	}
	return &plan.BoolQuery{MustNot: []plan.Query{exists}}, nil
}

type inTranslator struct{}

func (inTranslator) Supports(e expr.Expr, _ *Context) bool { return e.Kind() == expr.KindIn }

func (inTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	n := e.(*expr.In)
	rf, err := c.resolver.Resolve(n.Field, ctx, true)
	if err != nil {
		return nil, err
	}

	var q plan.Query
	switch {
	case len(n.Values) == 0:
		q = &plan.ExistsQuery{Field: rf.Path}
	case rf.Analyzed:
		should := make([]plan.Query, len(n.Values))
		for i, v := range n.Values {
			should[i] = &plan.MatchQuery{Field: rf.Path, Query: fmt.Sprint(v), Operator: "and"}
		}
		if len(should) == 1 {
			q = should[0]
		} else {
			q = &plan.BoolQuery{Should: should, MinimumShouldMatch: 1}
		}
	case len(n.Values) == 1:
		q = &plan.TermQuery{Field: rf.Path, Value: formatValue(n.Values[0], ctx)}
	default:
		values := make([]any, len(n.Values))
		for i, v := range n.Values {
			values[i] = formatValue(v, ctx)
		}
		q = &plan.TermsQuery{Field: rf.Path, Values: values}
	}
	return plan.WithBoost(scope(rf, q, ctx), n.Boost), nil
}

type rangeTranslator struct{}

func (rangeTranslator) Supports(e expr.Expr, _ *Context) bool { return e.Kind() == expr.KindRange }

func (rangeTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	n := e.(*expr.Range)
	rf, err := resolveOrdered(c, n.Field, ctx)
	if err != nil {
		return nil, err
	}
	r := &plan.RangeQuery{Field: rf.Path}
	if n.From != nil {
		if n.IncludeFrom {
			r.GTE = formatValue(n.From, ctx)
		} else {
			r.GT = formatValue(n.From, ctx)
		}
	}
	if n.To != nil {
		if n.IncludeTo {
			r.LTE = formatValue(n.To, ctx)
		} else {
			r.LT = formatValue(n.To, ctx)
		}
	}
	if n.From == nil && n.To == nil {
		return plan.WithBoost(scope(rf, &plan.ExistsQuery{Field: rf.Path}, ctx), n.Boost), nil
	}
	return plan.WithBoost(scope(rf, r, ctx), n.Boost), nil
}

func resolveOrdered(c *Compiler, field string, ctx *Context) (ResolvedField, error) {
	rf, err := c.resolver.Resolve(field, ctx, true)
	if err != nil {
		return rf, err
	}
	if rf.Field.Type == schema.TypeBoolean || rf.Field.Type == schema.TypeNested {
		return rf, invalid("field %q of type %s cannot be compared by order", rf.Field.Path(), rf.Field.Type)
	}
	return rf, nil
}

type dayTranslator struct{}

func (dayTranslator) Supports(e expr.Expr, _ *Context) bool {
	return e.Kind() == expr.KindDay || e.Kind() == expr.KindDayRange
}

func (dayTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	rf, err := c.resolver.Resolve(expr.FieldOf(e), ctx, false)
	if err != nil {
		return nil, err
	}
	if rf.Field.Type != schema.TypeDate {
		return nil, invalid("day comparison on field %q of type %s", rf.Field.Path(), rf.Field.Type)
	}
	loc := ctx.location()

	var q plan.Query
	switch n := e.(type) {
	case *expr.Day:
		start := dayStart(n.Date, loc)
		next := start.AddDate(0, 0, 1)
		switch n.Op {
		case expr.OpEq:
			q = &plan.BoolQuery{
				Should: []plan.Query{
					&plan.RangeQuery{Field: rf.Path, GTE: formatTime(start), LT: formatTime(next)},
					&plan.TermQuery{Field: rf.Path, Value: formatTime(start)},
				},
				MinimumShouldMatch: 1,
			}
		case expr.OpGt:
			q = &plan.RangeQuery{Field: rf.Path, GTE: formatTime(next)}
		case expr.OpGe:
			q = &plan.RangeQuery{Field: rf.Path, GTE: formatTime(start)}
		case expr.OpLt:
			q = &plan.RangeQuery{Field: rf.Path, LT: formatTime(start)}
		case expr.OpLe:
			q = &plan.RangeQuery{Field: rf.Path, LT: formatTime(next)}
		default:
			return nil, invalid("operator %s is not a day comparison", n.Op)
		}
	case *expr.DayRange:
		if n.From.IsZero() && n.To.IsZero() {
			q = &plan.ExistsQuery{Field: rf.Path}
			break
		}
		r := &plan.RangeQuery{Field: rf.Path}
		if !n.From.IsZero() {
			r.GTE = formatTime(dayStart(n.From, loc))
		}
		if !n.To.IsZero() {
			r.LT = formatTime(dayStart(n.To, loc).AddDate(0, 0, 1))
		}
		q = r
	}
	return scope(rf, q, ctx), nil
}

// dayStart anchors the calendar date of d at midnight in loc.
func dayStart(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

type keywordTranslator struct{}

func (keywordTranslator) Supports(e expr.Expr, _ *Context) bool {
	return e.Kind() == expr.KindKeyword
}

func (keywordTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	n := e.(*expr.Keyword)
	rf, err := c.resolver.Resolve(n.Field, ctx, true)
	if err != nil {
		return nil, err
	}
	if rf.Analyzed {
		return nil, invalid("field %q has no untokenized sibling for exact matching", rf.Field.Path())
	}
	return plan.WithBoost(scope(rf, &plan.TermQuery{Field: rf.Path, Value: n.Value}, ctx), n.Boost), nil
}

type fulltextTranslator struct{}

func (fulltextTranslator) Supports(e expr.Expr, _ *Context) bool {
	return e.Kind() == expr.KindFulltext
}

func (fulltextTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	n := e.(*expr.Fulltext)
	query := c.pre.Process(n.Query)
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	names := n.Fields
	if len(names) == 0 {
		names = c.opts.DefaultFields
	}
	fields := make([]string, 0, len(names))
	nestedPath := ""
	for i, name := range names {
		rf, err := c.resolver.Resolve(name, ctx, false)
		if err != nil {
			return nil, err
		}
		if i > 0 && rf.NestedPath != nestedPath {
			return nil, invalid("free-text query mixes fields from different nested scopes: %v", names)
		}
		nestedPath = rf.NestedPath
		fields = append(fields, rf.Path)
	}

	q := &plan.QueryStringQuery{Query: query, Fields: fields, DefaultOperator: c.opts.DefaultOperator}
	return plan.WithBoost(scope(ResolvedField{NestedPath: nestedPath}, q, ctx), n.Boost), nil
}

type valueTranslator struct{}

func (valueTranslator) Supports(e expr.Expr, _ *Context) bool { return e.Kind() == expr.KindValue }

func (valueTranslator) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	n := e.(*expr.Value)
	switch {
	case n.Op.IsWildcard():
		return translateWildcard(n, ctx, c)
	case n.Op.IsComparison():
		rf, err := resolveOrdered(c, n.Field, ctx)
		if err != nil {
			return nil, err
		}
		r := &plan.RangeQuery{Field: rf.Path}
		v := formatValue(n.Value, ctx)
		switch n.Op {
		case expr.OpGt:
			r.GT = v
		case expr.OpGe:
			r.GTE = v
		case expr.OpLt:
			r.LT = v
		case expr.OpLe:
			r.LTE = v
		}
		return plan.WithBoost(scope(rf, r, ctx), n.Boost), nil
	}

	rf, err := c.resolver.Resolve(n.Field, ctx, false)
	if err != nil {
		return nil, err
	}
	exists := scope(rf, &plan.ExistsQuery{Field: rf.Path}, ctx)

	var q plan.Query
	switch {
	case n.Value == nil:
		return &plan.BoolQuery{MustNot: []plan.Query{exists}}, nil
	case rf.Analyzed:
		q = scope(rf, &plan.MatchQuery{Field: rf.Path, Query: fmt.Sprint(n.Value), Operator: "and"}, ctx)
	case rf.Field.MissingIsFalse() && n.Value == false:
		q = &plan.BoolQuery{
			Should: []plan.Query{
				scope(rf, &plan.TermQuery{Field: rf.Path, Value: false}, ctx),
				&plan.BoolQuery{MustNot: []plan.Query{exists}},
			},
			MinimumShouldMatch: 1,
		}
	default:
		q = scope(rf, &plan.TermQuery{Field: rf.Path, Value: formatValue(n.Value, ctx)}, ctx)
	}
	return plan.WithBoost(q, n.Boost), nil
}

func translateWildcard(n *expr.Value, ctx *Context, c *Compiler) (plan.Query, error) {
	rf, err := c.resolver.Resolve(n.Field, ctx, true)
	if err != nil {
		return nil, err
	}
	f := rf.Field
	if f.Type != schema.TypeText && f.Type != schema.TypeKeyword {
		return nil, invalid("%s needs a string field, %q is %s", n.Op, f.Path(), f.Type)
	}
	if !f.Sortable && !f.Aggregatable {
		return nil, invalid("%s on field %q requires a sortable or aggregatable field", n.Op, f.Path())
	}
	s, ok := n.Value.(string)
	if !ok {
		return nil, invalid("%s on field %q needs a string value, got %T", n.Op, f.Path(), n.Value)
	}

	var q plan.Query
	switch n.Op {
	case expr.OpStartsWith:
		q = &plan.PrefixQuery{Field: rf.Path, Value: s}
	case expr.OpEndsWith:
		q = &plan.WildcardQuery{Field: rf.Path, Value: "*" + escapeWildcard(s)}
	case expr.OpContains:
		q = &plan.WildcardQuery{Field: rf.Path, Value: "*" + escapeWildcard(s) + "*"}
	default:
		q = &plan.WildcardQuery{Field: rf.Path, Value: s}
	}
	return plan.WithBoost(scope(rf, q, ctx), n.Boost), nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

// formatValue renders times in the context zone; other values pass through.
func formatValue(v any, ctx *Context) any {
	if t, ok := v.(time.Time); ok {
		return formatTime(t.In(ctx.location()))
	}
	return v
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
