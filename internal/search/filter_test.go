package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/expr"
)

func TestParseFilter(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		filter string
		want   expr.Expr
	}{
		{"tag=shoe", expr.Eq("tag", "shoe")},
		{"tag = shoe", expr.Eq("tag", "shoe")},
		{"tag!=shoe", expr.Not(expr.Eq("tag", "shoe"))},
		{"price>=10", expr.Ge("price", 10.0)},
		{"price<2.5", expr.Lt("price", 2.5)},
		{"active=true", expr.Eq("active", true)},
		{"tag=shoe|hat", expr.OneOf("tag", "shoe", "hat")},
		{"price=10..20", expr.Between("price", 10.0, 20.0)},
		{"price=..20", expr.Between("price", nil, 20.0)},
		{"created=null", expr.Null("created")},
		{"created!=null", expr.Not(expr.Null("created"))},
		{"created=2024-03-01", expr.OnDay("created", day)},
		{"created>=2024-03-01", expr.DayOp("created", expr.OpGe, day)},
		{"created=2024-03-01..", expr.DaysBetween("created", day, time.Time{})},
		{"tag^=sh", expr.StartsWith("tag", "sh")},
		{"tag$=oe", expr.EndsWith("tag", "oe")},
		{"tag*=ho", expr.Contains("tag", "ho")},
		{"tag~=s?o*", expr.Like("tag", "s?o*")},
		{"title==Red shoe", expr.Exact("title", "Red shoe")},
	}
	sch := testSchema()
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := ParseFilter(sch, tt.filter)
			require.NoError(t, err)
			assert.True(t, expr.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		filter string
		code   string
	}{
		{"shoe", errors.ErrCodeInvalidExpression},
		{"=shoe", errors.ErrCodeInvalidExpression},
		{"nope=1", errors.ErrCodeUnknownField},
		{"price>cheap", errors.ErrCodeInvalidExpression},
		{"active=maybe", errors.ErrCodeInvalidExpression},
		{"created>=yesterday", errors.ErrCodeInvalidExpression},
	}
	sch := testSchema()
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			_, err := ParseFilter(sch, tt.filter)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestParseFilters_AndsAll(t *testing.T) {
	got, err := ParseFilters(testSchema(), []string{"tag=shoe", "price<20"})

	require.NoError(t, err)
	assert.True(t, expr.Equal(expr.And(expr.Eq("tag", "shoe"), expr.Lt("price", 20.0)), got))
}
