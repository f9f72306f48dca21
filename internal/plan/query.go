// Package plan is the backend boolean query plan: query fragments, sort
// clauses, aggregations and the search request that carries them.
//
// Fragments render to Elasticsearch query DSL through Source. Other
// backends walk the typed fragments directly.
package plan

// Query is one compiled predicate.
type Query interface {
	// Source returns the Elasticsearch DSL of the fragment.
	Source() map[string]any
}

// BoolQuery combines clauses. Must and Filter clauses must all match,
// at least MinimumShouldMatch Should clauses must match, no MustNot clause
// may match.
type BoolQuery struct {
	Must               []Query
	Filter             []Query
	Should             []Query
	MustNot            []Query
	MinimumShouldMatch int
	Boost              float64
}

func (q *BoolQuery) Source() map[string]any {
	body := map[string]any{}
	put := func(key string, clauses []Query) {
		if len(clauses) == 0 {
			return
		}
		out := make([]any, len(clauses))
		for i, c := range clauses {
			out[i] = c.Source()
		}
		body[key] = out
	}
	put("must", q.Must)
	put("filter", q.Filter)
	put("should", q.Should)
	put("must_not", q.MustNot)
	if q.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = q.MinimumShouldMatch
	}
	boost(body, q.Boost)
	return map[string]any{"bool": body}
}

// IsNegationOnly reports whether q only carries MustNot clauses.
func (q *BoolQuery) IsNegationOnly() bool {
	return len(q.MustNot) > 0 && len(q.Must) == 0 && len(q.Filter) == 0 &&
		len(q.Should) == 0 && q.Boost == 0
}

// TermQuery matches an exact value.
type TermQuery struct {
	Field string
	Value any
	Boost float64
}

func (q *TermQuery) Source() map[string]any {
	inner := map[string]any{"value": q.Value}
	boost(inner, q.Boost)
	return map[string]any{"term": map[string]any{q.Field: inner}}
}

// TermsQuery matches any of Values exactly.
type TermsQuery struct {
	Field  string
	Values []any
	Boost  float64
}

func (q *TermsQuery) Source() map[string]any {
	inner := map[string]any{q.Field: q.Values}
	boost(inner, q.Boost)
	return map[string]any{"terms": inner}
}

// RangeQuery bounds a field. Nil bounds are omitted.
type RangeQuery struct {
	Field    string
	GT       any
	GTE      any
	LT       any
	LTE      any
	Format   string
	TimeZone string
	Boost    float64
}

func (q *RangeQuery) Source() map[string]any {
	inner := map[string]any{}
	for key, v := range map[string]any{"gt": q.GT, "gte": q.GTE, "lt": q.LT, "lte": q.LTE} {
		if v != nil {
			inner[key] = v
		}
	}
	if q.Format != "" {
		inner["format"] = q.Format
	}
	if q.TimeZone != "" {
		inner["time_zone"] = q.TimeZone
	}
	boost(inner, q.Boost)
	return map[string]any{"range": map[string]any{q.Field: inner}}
}

// ExistsQuery matches documents with any value for Field.
type ExistsQuery struct {
	Field string
}

func (q *ExistsQuery) Source() map[string]any {
	return map[string]any{"exists": map[string]any{"field": q.Field}}
}

// MatchQuery is an analyzed match on one field.
type MatchQuery struct {
	Field    string
	Query    string
	Operator string
	Boost    float64
}

func (q *MatchQuery) Source() map[string]any {
	inner := map[string]any{"query": q.Query}
	if q.Operator != "" {
		inner["operator"] = q.Operator
	}
	boost(inner, q.Boost)
	return map[string]any{"match": map[string]any{q.Field: inner}}
}

// QueryStringQuery runs a canonical query string. Empty Fields searches the
// index default fields.
type QueryStringQuery struct {
	Query           string
	Fields          []string
	DefaultOperator string
	Boost           float64
}

func (q *QueryStringQuery) Source() map[string]any {
	inner := map[string]any{"query": q.Query}
	if len(q.Fields) > 0 {
		inner["fields"] = q.Fields
	}
	if q.DefaultOperator != "" {
		inner["default_operator"] = q.DefaultOperator
	}
	boost(inner, q.Boost)
	return map[string]any{"query_string": inner}
}

// WildcardQuery matches a pattern with * and ? against an untokenized field.
type WildcardQuery struct {
	Field string
	Value string
	Boost float64
}

func (q *WildcardQuery) Source() map[string]any {
	inner := map[string]any{"value": q.Value}
	boost(inner, q.Boost)
	return map[string]any{"wildcard": map[string]any{q.Field: inner}}
}

// PrefixQuery matches values starting with Value.
type PrefixQuery struct {
	Field string
	Value string
	Boost float64
}

func (q *PrefixQuery) Source() map[string]any {
	inner := map[string]any{"value": q.Value}
	boost(inner, q.Boost)
	return map[string]any{"prefix": map[string]any{q.Field: inner}}
}

// NestedQuery evaluates Query against the nested objects under Path.
type NestedQuery struct {
	Path      string
	Query     Query
	ScoreMode string
	Boost     float64
}

func (q *NestedQuery) Source() map[string]any {
	inner := map[string]any{"path": q.Path, "query": q.Query.Source()}
	if q.ScoreMode != "" {
		inner["score_mode"] = q.ScoreMode
	}
	boost(inner, q.Boost)
	return map[string]any{"nested": inner}
}

// MatchAllQuery matches every document.
type MatchAllQuery struct {
	Boost float64
}

func (q *MatchAllQuery) Source() map[string]any {
	inner := map[string]any{}
	boost(inner, q.Boost)
	return map[string]any{"match_all": inner}
}

// MatchNoneQuery matches nothing.
type MatchNoneQuery struct{}

func (q *MatchNoneQuery) Source() map[string]any {
	return map[string]any{"match_none": map[string]any{}}
}

func boost(m map[string]any, b float64) {
	if b != 0 {
		m["boost"] = b
	}
}

// WithBoost returns q carrying boost b. Fragments without a boost slot are
// wrapped in a single-clause BoolQuery.
func WithBoost(q Query, b float64) Query {
	if q == nil || b == 0 {
		return q
	}
	switch t := q.(type) {
	case *BoolQuery:
		c := *t
		c.Boost = b
		return &c
	case *TermQuery:
		c := *t
		c.Boost = b
		return &c
	case *TermsQuery:
		c := *t
		c.Boost = b
		return &c
	case *RangeQuery:
		c := *t
		c.Boost = b
		return &c
	case *MatchQuery:
		c := *t
		c.Boost = b
		return &c
	case *QueryStringQuery:
		c := *t
		c.Boost = b
		return &c
	case *WildcardQuery:
		c := *t
		c.Boost = b
		return &c
	case *PrefixQuery:
		c := *t
		c.Boost = b
		return &c
	case *NestedQuery:
		c := *t
		c.Boost = b
		return &c
	case *MatchAllQuery:
		return &MatchAllQuery{Boost: b}
	}
	return &BoolQuery{Must: []Query{q}, Boost: b}
}
