package compiler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(1, []string{"en", "de"}, []schema.FieldSpec{
		{Name: "title", Type: schema.TypeText, Multilingual: true, Sortable: true},
		{Name: "body", Type: schema.TypeText},
		{Name: "sku", Type: schema.TypeKeyword, Aggregatable: true, Sortable: true},
		{Name: "tag", Type: schema.TypeKeyword},
		{Name: "price", Type: schema.TypeDouble, Sortable: true, Aggregatable: true},
		{Name: "active", Type: schema.TypeBoolean, MissingValue: false},
		{Name: "sold", Type: schema.TypeBoolean},
		{Name: "created", Type: schema.TypeDate, Sortable: true, Aggregatable: true},
		{Name: "variants", Type: schema.TypeNested, Fields: []schema.FieldSpec{
			{Name: "color", Type: schema.TypeKeyword, Aggregatable: true},
			{Name: "size", Type: schema.TypeInteger, Sortable: true},
		}},
	})
	require.NoError(t, err)
	return s
}

func compileJSON(t *testing.T, c *Compiler, e expr.Expr, ctx *Context) string {
	t.Helper()
	q, err := c.Compile(e, ctx)
	require.NoError(t, err)
	require.NotNil(t, q)
	b, err := json.Marshal(q.Source())
	require.NoError(t, err)
	return string(b)
}

func TestCompile_In(t *testing.T) {
	c := New(testSchema(t), Options{})

	tests := []struct {
		name string
		in   expr.Expr
		want string
	}{
		{"empty set is existence", expr.OneOf("sku"), `{"exists":{"field":"sku"}}`},
		{"singleton is term", expr.OneOf("sku", "A"), `{"term":{"sku":{"value":"A"}}}`},
		{"many values is terms", expr.OneOf("sku", "A", "B"), `{"terms":{"sku":["A","B"]}}`},
		{"text field uses keyword sibling", expr.OneOf("title", "Go"), `{"term":{"title.en.keyword":{"value":"Go"}}}`},
		{"boosted", expr.Boosted(expr.OneOf("sku", "A", "B"), 2), `{"terms":{"sku":["A","B"],"boost":2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, compileJSON(t, c, tt.in, nil))
		})
	}
}

func TestCompile_FieldResolution(t *testing.T) {
	c := New(testSchema(t), Options{})

	t.Run("multilingual field with locale", func(t *testing.T) {
		rf, err := c.Resolver().Resolve("title", NewContext("de-CH", nil), false)
		require.NoError(t, err)
		assert.Equal(t, "title.de", rf.Path)
		assert.True(t, rf.Analyzed)
	})

	t.Run("exact match on text field", func(t *testing.T) {
		rf, err := c.Resolver().Resolve("title", NewContext("de", nil), true)
		require.NoError(t, err)
		assert.Equal(t, "title.de.keyword", rf.Path)
		assert.False(t, rf.Analyzed)
	})

	t.Run("unknown locale falls back to first language", func(t *testing.T) {
		rf, err := c.Resolver().Resolve("title", NewContext("fr", nil), false)
		require.NoError(t, err)
		assert.Equal(t, "title.en", rf.Path)
	})

	t.Run("physical suffix kept", func(t *testing.T) {
		rf, err := c.Resolver().Resolve("sku.raw", nil, false)
		require.NoError(t, err)
		assert.Equal(t, "sku", rf.Field.Name)
		assert.Equal(t, "sku.raw", rf.Path)
	})

	t.Run("nested field", func(t *testing.T) {
		rf, err := c.Resolver().Resolve("variants.color", nil, true)
		require.NoError(t, err)
		assert.Equal(t, "variants.color", rf.Path)
		assert.Equal(t, "variants", rf.NestedPath)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := c.Resolver().Resolve("nope", nil, false)
		assert.Equal(t, errors.ErrCodeUnknownField, errors.GetCode(err))
	})

	assert.Equal(t, "pt", LanguageOf("pt_BR"))
}

func TestCompile_Nested(t *testing.T) {
	c := New(testSchema(t), Options{})
	e := expr.Eq("variants.color", "red")

	// Given a nested field in a normal query
	got := compileJSON(t, c, e, nil)

	// Then the leaf is wrapped in a nested scope
	assert.JSONEq(t, `{"nested":{"path":"variants","query":{"term":{"variants.color":{"value":"red"}}}}}`, got)

	// Given the same field in a sort filter
	ctx := NewContext("", nil)
	ctx.SortFilter = true
	got = compileJSON(t, c, e, ctx)

	// Then the raw leaf is used
	assert.JSONEq(t, `{"term":{"variants.color":{"value":"red"}}}`, got)
}

func TestCompile_Operation(t *testing.T) {
	c := New(testSchema(t), Options{})

	t.Run("AND collects negations", func(t *testing.T) {
		got := compileJSON(t, c, expr.And(expr.Eq("sku", "A"), expr.Not(expr.Eq("tag", "x"))), nil)
		assert.JSONEq(t, `{"bool":{
			"must":[{"term":{"sku":{"value":"A"}}}],
			"must_not":[{"term":{"tag":{"value":"x"}}}]}}`, got)
	})

	t.Run("OR is should with minimum one", func(t *testing.T) {
		got := compileJSON(t, c, expr.Or(expr.Eq("sku", "A"), expr.Gt("price", 3)), nil)
		assert.JSONEq(t, `{"bool":{
			"should":[{"term":{"sku":{"value":"A"}}},{"range":{"price":{"gt":3}}}],
			"minimum_should_match":1}}`, got)
	})

	t.Run("empty children dropped", func(t *testing.T) {
		got := compileJSON(t, c, expr.And(expr.Empty, expr.Eq("sku", "A")), nil)
		assert.JSONEq(t, `{"term":{"sku":{"value":"A"}}}`, got)
	})

	t.Run("only empty children is no constraint", func(t *testing.T) {
		q, err := c.Compile(expr.And(expr.Empty, expr.Empty), nil)
		require.NoError(t, err)
		assert.Nil(t, q)
	})

	t.Run("boost on the outermost fragment", func(t *testing.T) {
		got := compileJSON(t, c, expr.Boosted(expr.Or(expr.Eq("sku", "A"), expr.Eq("sku", "B")), 4), nil)
		assert.Contains(t, got, `"boost":4`)
		assert.NotContains(t, got, `"value":"A","boost"`)
	})

	t.Run("sentinels", func(t *testing.T) {
		assert.JSONEq(t, `{"match_all":{}}`, compileJSON(t, c, expr.FindAll, nil))
		assert.JSONEq(t, `{"match_none":{}}`, compileJSON(t, c, expr.False, nil))
	})
}

func TestCompile_SharedNode(t *testing.T) {
	c := New(testSchema(t), Options{})

	// Given one leaf reused in both branches of an OR
	shared := expr.Eq("sku", "A")
	e := expr.Or(
		expr.And(shared, expr.Eq("tag", "x")),
		expr.And(shared, expr.Eq("tag", "y")),
	)

	// When compiled in a single call
	got := compileJSON(t, c, e, NewContext("", nil))

	// Then the leaf constrains both branches
	assert.JSONEq(t, `{"bool":{"should":[
		{"bool":{"must":[{"term":{"sku":{"value":"A"}}},{"term":{"tag":{"value":"x"}}}]}},
		{"bool":{"must":[{"term":{"sku":{"value":"A"}}},{"term":{"tag":{"value":"y"}}}]}}
	],"minimum_should_match":1}}`, got)
}

func TestCompile_MarkedNodeSkipped(t *testing.T) {
	c := New(testSchema(t), Options{})
	leaf := expr.Eq("sku", "A")

	// Given a context where the leaf was already folded into the request
	ctx := NewContext("", nil)
	ctx.Visited.Mark(leaf)

	// When the same leaf is compiled again
	got, err := c.Compile(leaf, ctx)

	// Then it adds no constraint, while other contexts still compile it
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, `{"term":{"sku":{"value":"A"}}}`, compileJSON(t, c, leaf, NewContext("", nil)))

	// And a repeated compile in an unmarked context is stable
	ctx = NewContext("", nil)
	first := compileJSON(t, c, leaf, ctx)
	assert.Equal(t, first, compileJSON(t, c, leaf, ctx))
}

func TestCompile_Null(t *testing.T) {
	c := New(testSchema(t), Options{})

	assert.JSONEq(t, `{"bool":{"must_not":[{"exists":{"field":"tag"}}]}}`, compileJSON(t, c, expr.Null("tag"), nil))
	assert.JSONEq(t, `{"exists":{"field":"tag"}}`, compileJSON(t, c, expr.Exists("tag"), nil))
	assert.JSONEq(t, `{"bool":{"must_not":[{"exists":{"field":"tag"}}]}}`, compileJSON(t, c, expr.Eq("tag", nil), nil))
}

func TestCompile_Range(t *testing.T) {
	c := New(testSchema(t), Options{})
	cet := time.FixedZone("CET", 3600)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got := compileJSON(t, c, &expr.Range{Field: "created", From: from, IncludeFrom: true}, NewContext("", cet))
	assert.JSONEq(t, `{"range":{"created":{"gte":"2024-01-01T01:00:00+01:00"}}}`, got)

	got = compileJSON(t, c, expr.Between("price", 1, 5), nil)
	assert.JSONEq(t, `{"range":{"price":{"gte":1,"lte":5}}}`, got)

	_, err := c.Compile(expr.Gt("active", true), nil)
	assert.True(t, errors.IsValidation(err))
}

func TestCompile_DayEquality(t *testing.T) {
	c := New(testSchema(t), Options{})
	cet := time.FixedZone("CET", 3600)

	// Given a day comparison in a non-UTC zone
	e := expr.OnDay("created", time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC))

	// When compiled
	got := compileJSON(t, c, e, NewContext("", cet))

	// Then it is a half-open day range OR an exact match at the day boundary
	assert.JSONEq(t, `{"bool":{"should":[
		{"range":{"created":{"gte":"2024-03-05T00:00:00+01:00","lt":"2024-03-06T00:00:00+01:00"}}},
		{"term":{"created":{"value":"2024-03-05T00:00:00+01:00"}}}
	],"minimum_should_match":1}}`, got)
}

func TestCompile_DayComparisons(t *testing.T) {
	c := New(testSchema(t), Options{})
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   expr.Expr
		want string
	}{
		{"after", expr.DayOp("created", expr.OpGt, d), `{"range":{"created":{"gte":"2024-03-06T00:00:00Z"}}}`},
		{"on or after", expr.DayOp("created", expr.OpGe, d), `{"range":{"created":{"gte":"2024-03-05T00:00:00Z"}}}`},
		{"before", expr.DayOp("created", expr.OpLt, d), `{"range":{"created":{"lt":"2024-03-05T00:00:00Z"}}}`},
		{"on or before", expr.DayOp("created", expr.OpLe, d), `{"range":{"created":{"lt":"2024-03-06T00:00:00Z"}}}`},
		{"range", expr.DaysBetween("created", d, d.AddDate(0, 0, 2)), `{"range":{"created":{"gte":"2024-03-05T00:00:00Z","lt":"2024-03-08T00:00:00Z"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, compileJSON(t, c, tt.in, nil))
		})
	}

	_, err := c.Compile(expr.OnDay("price", d), nil)
	assert.True(t, errors.IsValidation(err))
}

func TestCompile_Value(t *testing.T) {
	c := New(testSchema(t), Options{})

	tests := []struct {
		name string
		in   expr.Expr
		want string
	}{
		{"analyzed text matches", expr.Eq("body", "red shoes"), `{"match":{"body":{"query":"red shoes","operator":"and"}}}`},
		{"keyword term", expr.Eq("tag", "x"), `{"term":{"tag":{"value":"x"}}}`},
		{"prefix", expr.StartsWith("sku", "AB"), `{"prefix":{"sku":{"value":"AB"}}}`},
		{"contains escapes", expr.Contains("sku", "a*b"), `{"wildcard":{"sku":{"value":"*a\\*b*"}}}`},
		{"ends with on text sibling", expr.EndsWith("title", "go"), `{"wildcard":{"title.en.keyword":{"value":"*go"}}}`},
		{"like keeps pattern", expr.Like("sku", "A?-*"), `{"wildcard":{"sku":{"value":"A?-*"}}}`},
		{"plain boolean", expr.Eq("sold", false), `{"term":{"sold":{"value":false}}}`},
		{"missing boolean counts as false", expr.Eq("active", false), `{"bool":{"should":[
			{"term":{"active":{"value":false}}},
			{"bool":{"must_not":[{"exists":{"field":"active"}}]}}
		],"minimum_should_match":1}}`},
		{"true boolean is a term", expr.Eq("active", true), `{"term":{"active":{"value":true}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, compileJSON(t, c, tt.in, nil))
		})
	}
}

func TestCompile_ValidationErrors(t *testing.T) {
	c := New(testSchema(t), Options{})

	tests := []struct {
		name string
		in   expr.Expr
	}{
		{"wildcard on non-sortable field", expr.StartsWith("tag", "x")},
		{"wildcard on analyzed text", expr.Contains("body", "x")},
		{"wildcard on number", expr.StartsWith("price", "1")},
		{"keyword on analyzed text", expr.Exact("body", "x")},
		{"unknown field", expr.Eq("nope", 1)},
		{"error inside operation", expr.And(expr.Eq("sku", "A"), expr.StartsWith("tag", "x"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.in, nil)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}
}

func TestCompile_Fulltext(t *testing.T) {
	c := New(testSchema(t), Options{DefaultFields: []string{"title", "body"}})

	t.Run("preprocessed with default fields", func(t *testing.T) {
		got := compileJSON(t, c, expr.Text("red shoes, boots"), NewContext("de", nil))
		assert.JSONEq(t, `{"query_string":{
			"query":"(red && shoes) || boots",
			"fields":["title.de","body"],
			"default_operator":"AND"}}`, got)
	})

	t.Run("blank query is no constraint", func(t *testing.T) {
		q, err := c.Compile(expr.Text("   "), nil)
		require.NoError(t, err)
		assert.Nil(t, q)
	})

	t.Run("nested fields scoped", func(t *testing.T) {
		got := compileJSON(t, c, expr.Text("red", "variants.color"), nil)
		assert.JSONEq(t, `{"nested":{"path":"variants","query":{"query_string":{
			"query":"red","fields":["variants.color"],"default_operator":"AND"}}}}`, got)
	})

	t.Run("mixed scopes rejected", func(t *testing.T) {
		_, err := c.Compile(expr.Text("red", "body", "variants.color"), nil)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestCompile_CustomTranslatorFirst(t *testing.T) {
	// Given a translator that claims every Keyword node
	custom := translatorFunc{
		supports: func(e expr.Expr, _ *Context) bool { return e.Kind() == expr.KindKeyword },
		translate: func(e expr.Expr, _ *Context, _ *Compiler) (plan.Query, error) {
			return &plan.MatchAllQuery{}, nil
		},
	}
	c := New(testSchema(t), Options{Translators: []Translator{custom}})

	// Then it wins over the built-in chain
	assert.JSONEq(t, `{"match_all":{}}`, compileJSON(t, c, expr.Exact("body", "x"), nil))
}

type translatorFunc struct {
	supports  func(expr.Expr, *Context) bool
	translate func(expr.Expr, *Context, *Compiler) (plan.Query, error)
}

func (f translatorFunc) Supports(e expr.Expr, ctx *Context) bool { return f.supports(e, ctx) }

func (f translatorFunc) Translate(e expr.Expr, ctx *Context, c *Compiler) (plan.Query, error) {
	return f.translate(e, ctx, c)
}
