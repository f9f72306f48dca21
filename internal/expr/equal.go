package expr

// Equal reports whether a and b are structurally identical trees. Child
// and value order is significant.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch x := a.(type) {
	case *sentinel:
		return true
	case *Value:
		y := b.(*Value)
		return x.Field == y.Field && x.Op == y.Op && x.Boost == y.Boost && sameValue(x.Value, y.Value)
	case *Range:
		y := b.(*Range)
		return x.Field == y.Field && x.IncludeFrom == y.IncludeFrom && x.IncludeTo == y.IncludeTo &&
			x.Boost == y.Boost && sameValue(x.From, y.From) && sameValue(x.To, y.To)
	case *In:
		y := b.(*In)
		if x.Field != y.Field || x.Boost != y.Boost || len(x.Values) != len(y.Values) {
			return false
		}
		for i := range x.Values {
			if !sameValue(x.Values[i], y.Values[i]) {
				return false
			}
		}
		return true
	case *IsNull:
		y := b.(*IsNull)
		return *x == *y
	case *Keyword:
		y := b.(*Keyword)
		return *x == *y
	case *Fulltext:
		y := b.(*Fulltext)
		if x.Query != y.Query || x.Boost != y.Boost || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i] != y.Fields[i] {
				return false
			}
		}
		return true
	case *MustNot:
		return Equal(x.Expr, b.(*MustNot).Expr)
	case *Operation:
		y := b.(*Operation)
		if x.Op != y.Op || x.Boost != y.Boost || len(x.Children) != len(y.Children) {
			return false
		}
		for i := range x.Children {
			if !Equal(x.Children[i], y.Children[i]) {
				return false
			}
		}
		return true
	case *Day:
		y := b.(*Day)
		return x.Field == y.Field && x.Op == y.Op && x.Date.Equal(y.Date)
	case *DayRange:
		y := b.(*DayRange)
		return x.Field == y.Field && x.From.Equal(y.From) && x.To.Equal(y.To)
	}
	return false
}
