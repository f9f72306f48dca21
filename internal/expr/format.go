package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

func (s *sentinel) String() string {
	switch s.kind {
	case KindTrue:
		return "TRUE"
	case KindFalse:
		return "FALSE"
	case KindFindAll:
		return "*"
	}
	return "EMPTY"
}

func (v *Value) String() string {
	return boosted(fmt.Sprintf("%s %s %s", v.Field, v.Op, formatValue(v.Value)), v.Boost)
}

func (r *Range) String() string {
	open, closing := "(", ")"
	if r.IncludeFrom {
		open = "["
	}
	if r.IncludeTo {
		closing = "]"
	}
	return boosted(fmt.Sprintf("%s IN %s%s..%s%s", r.Field, open, formatBound(r.From), formatBound(r.To), closing), r.Boost)
}

func (i *In) String() string {
	parts := make([]string, len(i.Values))
	for n, v := range i.Values {
		parts[n] = formatValue(v)
	}
	return boosted(fmt.Sprintf("%s IN {%s}", i.Field, strings.Join(parts, ", ")), i.Boost)
}

func (n *IsNull) String() string {
	if n.Negated {
		return n.Field + " IS NOT NULL"
	}
	return n.Field + " IS NULL"
}

func (k *Keyword) String() string {
	return boosted(fmt.Sprintf("%s == %s", k.Field, strconv.Quote(k.Value)), k.Boost)
}

func (f *Fulltext) String() string {
	target := "*"
	if len(f.Fields) > 0 {
		target = strings.Join(f.Fields, ",")
	}
	return boosted(fmt.Sprintf("TEXT(%s: %s)", target, strconv.Quote(f.Query)), f.Boost)
}

func (m *MustNot) String() string {
	return "NOT " + m.Expr.String()
}

func (o *Operation) String() string {
	parts := make([]string, len(o.Children))
	for i, c := range o.Children {
		parts[i] = c.String()
	}
	return boosted("("+strings.Join(parts, " "+o.Op.String()+" ")+")", o.Boost)
}

func (d *Day) String() string {
	return fmt.Sprintf("DAY(%s) %s %s", d.Field, d.Op, d.Date.Format(dayLayout))
}

func (d *DayRange) String() string {
	from, to := "*", "*"
	if !d.From.IsZero() {
		from = d.From.Format(dayLayout)
	}
	if !d.To.IsZero() {
		to = d.To.Format(dayLayout)
	}
	return fmt.Sprintf("DAY(%s) IN [%s..%s]", d.Field, from, to)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

func formatBound(v any) string {
	if v == nil {
		return "*"
	}
	return formatValue(v)
}

func boosted(s string, boost float64) string {
	if boost == 0 {
		return s
	}
	return s + "^" + strconv.FormatFloat(boost, 'g', -1, 64)
}
