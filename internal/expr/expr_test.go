package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	day := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   Expr
		want string
	}{
		{"value", Eq("title", "go"), `title = "go"`},
		{"boosted value", Boosted(Gt("price", 10), 2), `price > 10^2`},
		{"half open range", &Range{Field: "p", From: 1, IncludeFrom: true}, `p IN [1..*)`},
		{"in", OneOf("tag", "a", 1), `tag IN {"a", 1}`},
		{"exists", Exists("f"), "f IS NOT NULL"},
		{"keyword", Exact("sku", "A-1"), `sku == "A-1"`},
		{"fulltext any field", Text("red shoes"), `TEXT(*: "red shoes")`},
		{"fulltext fields", Text("x", "a", "b"), `TEXT(a,b: "x")`},
		{"negation", Not(Null("f")), "NOT f IS NULL"},
		{"operation", Or(Eq("a", 1), And(Eq("b", 2), Eq("c", 3))), "(a = 1 OR (b = 2 AND c = 3))"},
		{"day", OnDay("created", day), "DAY(created) = 2024-01-02"},
		{"open day range", DaysBetween("created", day, time.Time{}), "DAY(created) IN [2024-01-02..*]"},
		{"sentinels", And(True, False, Empty, FindAll), "(TRUE AND FALSE AND EMPTY AND *)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())
		})
	}
}

func TestEqual(t *testing.T) {
	t1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	t2 := t1.In(time.FixedZone("CET", 3600))

	assert.True(t, Equal(Eq("d", t1), Eq("d", t2)), "same instant in another zone")
	assert.True(t, Equal(OneOf("f", 1, 2), OneOf("f", 1, 2)))
	assert.False(t, Equal(OneOf("f", 1, 2), OneOf("f", 2, 1)), "order is significant")
	assert.False(t, Equal(Eq("f", 1), Eq("f", int64(1))), "values of different types differ")
	assert.False(t, Equal(Eq("f", 1), Boosted(Eq("f", 1), 2)))
	assert.False(t, Equal(True, False))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Empty))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   any
		want   int
		wantOK bool
	}{
		{"mixed numbers", 1, 2.5, -1, true},
		{"equal numbers", int64(3), uint8(3), 0, true},
		{"strings", "b", "a", 1, true},
		{"times", time.Unix(10, 0), time.Unix(5, 0), 1, true},
		{"number vs string", 1, "1", 0, false},
		{"unsupported", true, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalk(t *testing.T) {
	tree := And(Eq("a", 1), Not(Or(Eq("b", 2), Exact("c", "x"))))

	var fields []string
	Walk(tree, func(e Expr) bool {
		if f := FieldOf(e); f != "" {
			fields = append(fields, f)
		}
		return true
	})

	assert.Equal(t, []string{"a", "b", "c"}, fields)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "day_range", KindDayRange.String())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.Equal(t, "STARTS WITH", OpStartsWith.String())
	assert.True(t, OpLike.IsWildcard())
	assert.False(t, OpEq.IsComparison())
}
