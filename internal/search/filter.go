package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// filterOps is ordered so longer operators match first.
var filterOps = []struct {
	token string
	build func(field string, v any) expr.Expr
}{
	{">=", expr.Ge},
	{"<=", expr.Le},
	{"!=", func(f string, v any) expr.Expr { return expr.Not(expr.Eq(f, v)) }},
	{"^=", func(f string, v any) expr.Expr { return expr.StartsWith(f, fmt.Sprint(v)) }},
	{"$=", func(f string, v any) expr.Expr { return expr.EndsWith(f, fmt.Sprint(v)) }},
	{"*=", func(f string, v any) expr.Expr { return expr.Contains(f, fmt.Sprint(v)) }},
	{"~=", func(f string, v any) expr.Expr { return expr.Like(f, fmt.Sprint(v)) }},
	{"==", func(f string, v any) expr.Expr { return expr.Exact(f, fmt.Sprint(v)) }},
	{">", expr.Gt},
	{"<", expr.Lt},
	{"=", expr.Eq},
}

// dayOps compare calendar days when a date field is filtered by a bare
// date.
var dayOps = map[string]expr.Operator{
	">":  expr.OpGt,
	">=": expr.OpGe,
	"<":  expr.OpLt,
	"<=": expr.OpLe,
}

// ParseFilter turns a command-line filter into an expression. Supported
// forms:
//
//	field=value  field!=value  field>value  field>=value  field<value
//	field<=value  field^=prefix  field$=suffix  field*=part  field~=pat*ern
//	field==exact  field=a|b|c  field=null  field!=null  field=from..to
//
// Values are converted to the field's schema type.
func ParseFilter(sch *schema.Schema, filter string) (expr.Expr, error) {
	for _, op := range filterOps {
		i := strings.Index(filter, op.token)
		if i <= 0 {
			continue
		}
		field := strings.TrimSpace(filter[:i])
		raw := strings.TrimSpace(filter[i+len(op.token):])
		if strings.ContainsAny(field, "<>=!^$*~") {
			continue
		}
		f, ok := sch.Lookup(field)
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownField, fmt.Sprintf("unknown field %q in filter %q", field, filter), nil)
		}

		switch op.token {
		case "=", "!=":
			e, err := equality(f, raw)
			if err != nil {
				return nil, filterError(filter, err)
			}
			if op.token == "!=" {
				return expr.Not(e), nil
			}
			return e, nil
		}
		v, err := convert(f, raw)
		if err != nil {
			return nil, filterError(filter, err)
		}
		if t, ok := v.(time.Time); ok && isDateOnly(raw) {
			if dop, ok := dayOps[op.token]; ok {
				return expr.DayOp(field, dop, t), nil
			}
		}
		return op.build(field, v), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidExpression, fmt.Sprintf("filter %q has no operator", filter), nil).
		WithSuggestion("Write filters as field=value, field>=value, field=a|b or field=from..to")
}

// ParseFilters ANDs every filter.
func ParseFilters(sch *schema.Schema, filters []string) (expr.Expr, error) {
	parts := make([]expr.Expr, 0, len(filters))
	for _, f := range filters {
		e, err := ParseFilter(sch, f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	return expr.And(parts...), nil
}

func equality(f *schema.Field, raw string) (expr.Expr, error) {
	path := f.Path()
	switch {
	case raw == "null":
		return expr.Null(path), nil
	case strings.Contains(raw, ".."):
		lo, hi, _ := strings.Cut(raw, "..")
		var from, to any
		var err error
		if lo != "" {
			if from, err = convert(f, lo); err != nil {
				return nil, err
			}
		}
		if hi != "" {
			if to, err = convert(f, hi); err != nil {
				return nil, err
			}
		}
		if f.Type == schema.TypeDate {
			return dayRange(path, from, to), nil
		}
		return expr.Between(path, from, to), nil
	case strings.Contains(raw, "|"):
		parts := strings.Split(raw, "|")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := convert(f, strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return expr.OneOf(path, values...), nil
	}
	v, err := convert(f, raw)
	if err != nil {
		return nil, err
	}
	if t, ok := v.(time.Time); ok && isDateOnly(raw) {
		return expr.OnDay(path, t), nil
	}
	return expr.Eq(path, v), nil
}

func dayRange(path string, from, to any) expr.Expr {
	var lo, hi time.Time
	if t, ok := from.(time.Time); ok {
		lo = t
	}
	if t, ok := to.(time.Time); ok {
		hi = t
	}
	return expr.DaysBetween(path, lo, hi)
}

func isDateOnly(raw string) bool {
	_, err := time.Parse(time.DateOnly, raw)
	return err == nil
}

// convert parses raw as a value of f's type.
func convert(f *schema.Field, raw string) (any, error) {
	switch {
	case f.Type == schema.TypeLong || f.Type == schema.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", f.Path(), raw)
		}
		return n, nil
	case f.Type.IsNumeric():
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects a number, got %q", f.Path(), raw)
		}
		return n, nil
	case f.Type == schema.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", f.Path(), raw)
		}
		return b, nil
	case f.Type == schema.TypeDate:
		if t, err := time.Parse(time.DateOnly, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects YYYY-MM-DD or RFC 3339, got %q", f.Path(), raw)
		}
		return t, nil
	case f.Type == schema.TypeNested:
		return nil, fmt.Errorf("%s is a nested container; filter one of its fields", f.Path())
	}
	return raw, nil
}

func filterError(filter string, err error) error {
	return errors.New(errors.ErrCodeInvalidExpression, fmt.Sprintf("invalid filter %q: %v", filter, err), err)
}
