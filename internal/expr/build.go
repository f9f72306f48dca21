package expr

import "time"

// And combines children so that all must match.
func And(children ...Expr) Expr {
	return &Operation{Op: OpAnd, Children: children}
}

// Or combines children so that at least one must match.
func Or(children ...Expr) Expr {
	return &Operation{Op: OpOr, Children: children}
}

// Not negates e.
func Not(e Expr) Expr {
	return &MustNot{Expr: e}
}

// Eq matches field == v.
func Eq(field string, v any) Expr { return &Value{Field: field, Op: OpEq, Value: v} }

// Gt matches field > v.
func Gt(field string, v any) Expr { return &Value{Field: field, Op: OpGt, Value: v} }

// Ge matches field >= v.
func Ge(field string, v any) Expr { return &Value{Field: field, Op: OpGe, Value: v} }

// Lt matches field < v.
func Lt(field string, v any) Expr { return &Value{Field: field, Op: OpLt, Value: v} }

// Le matches field <= v.
func Le(field string, v any) Expr { return &Value{Field: field, Op: OpLe, Value: v} }

// StartsWith matches string values with the given prefix.
func StartsWith(field, prefix string) Expr {
	return &Value{Field: field, Op: OpStartsWith, Value: prefix}
}

// EndsWith matches string values with the given suffix.
func EndsWith(field, suffix string) Expr {
	return &Value{Field: field, Op: OpEndsWith, Value: suffix}
}

// Contains matches string values containing part.
func Contains(field, part string) Expr {
	return &Value{Field: field, Op: OpContains, Value: part}
}

// Like matches a wildcard pattern using * and ?.
func Like(field, pattern string) Expr {
	return &Value{Field: field, Op: OpLike, Value: pattern}
}

// Between matches from <= field <= to. A nil bound is open.
func Between(field string, from, to any) Expr {
	return &Range{Field: field, From: from, To: to, IncludeFrom: true, IncludeTo: true}
}

// OneOf matches field values equal to any of values.
func OneOf(field string, values ...any) Expr {
	return &In{Field: field, Values: values}
}

// Exists matches documents that carry any value for field.
func Exists(field string) Expr {
	return &IsNull{Field: field, Negated: true}
}

// Null matches documents without a value for field.
func Null(field string) Expr {
	return &IsNull{Field: field}
}

// Exact is a case-sensitive match on the untokenized value.
func Exact(field, value string) Expr {
	return &Keyword{Field: field, Value: value}
}

// Text is a free-text query over fields, or the default fields when none
// are given.
func Text(query string, fields ...string) Expr {
	return &Fulltext{Query: query, Fields: fields}
}

// OnDay matches dates falling on the calendar day of t.
func OnDay(field string, t time.Time) Expr {
	return &Day{Field: field, Op: OpEq, Date: DateOf(t)}
}

// DayOp compares a date field against the calendar day of t.
func DayOp(field string, op Operator, t time.Time) Expr {
	return &Day{Field: field, Op: op, Date: DateOf(t)}
}

// DaysBetween matches dates from the day of from to the day of to,
// inclusive. A zero time leaves that side open.
func DaysBetween(field string, from, to time.Time) Expr {
	r := &DayRange{Field: field}
	if !from.IsZero() {
		r.From = DateOf(from)
	}
	if !to.IsZero() {
		r.To = DateOf(to)
	}
	return r
}

// Boosted returns a copy of e with the given boost. Nodes that cannot carry
// a boost are wrapped in a single-child AND.
func Boosted(e Expr, boost float64) Expr {
	if b, ok := withBoost(e, boost); ok {
		return b
	}
	return &Operation{Op: OpAnd, Children: []Expr{e}, Boost: boost}
}

// DateOf strips the clock from t, keeping its calendar date as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
