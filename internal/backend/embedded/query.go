package embedded

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/querystring"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// translator turns plan fragments into bleve queries. Nested scopes are
// flattened: bleve indexes the objects of a nested array as one document,
// so a nested query matches when any object satisfies each clause.
type translator struct {
	types map[string]schema.Type
}

type boostable interface {
	SetBoost(b float64)
}

func withBoost(q query.Query, b float64) query.Query {
	if b == 0 {
		return q
	}
	if bq, ok := q.(boostable); ok {
		bq.SetBoost(b)
	}
	return q
}

func (t *translator) translate(q plan.Query) (query.Query, error) {
	switch q := q.(type) {
	case nil:
		return query.NewMatchAllQuery(), nil
	case *plan.MatchAllQuery:
		return withBoost(query.NewMatchAllQuery(), q.Boost), nil
	case *plan.MatchNoneQuery:
		return query.NewMatchNoneQuery(), nil
	case *plan.BoolQuery:
		return t.boolQuery(q)
	case *plan.TermQuery:
		out, err := t.term(q.Field, q.Value)
		if err != nil {
			return nil, err
		}
		return withBoost(out, q.Boost), nil
	case *plan.TermsQuery:
		clauses := make([]query.Query, 0, len(q.Values))
		for _, v := range q.Values {
			c, err := t.term(q.Field, v)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		}
		return withBoost(query.NewDisjunctionQuery(clauses), q.Boost), nil
	case *plan.RangeQuery:
		out, err := t.rangeQuery(q)
		if err != nil {
			return nil, err
		}
		return withBoost(out, q.Boost), nil
	case *plan.ExistsQuery:
		tq := query.NewTermQuery(q.Field)
		tq.SetField(presentField)
		return tq, nil
	case *plan.MatchQuery:
		mq := query.NewMatchQuery(q.Query)
		mq.SetField(q.Field)
		if strings.EqualFold(q.Operator, "and") {
			mq.SetOperator(query.MatchQueryOperatorAnd)
		}
		return withBoost(mq, q.Boost), nil
	case *plan.QueryStringQuery:
		out, err := t.queryString(q)
		if err != nil {
			return nil, err
		}
		return withBoost(out, q.Boost), nil
	case *plan.WildcardQuery:
		wq := query.NewWildcardQuery(q.Value)
		wq.SetField(q.Field)
		return withBoost(wq, q.Boost), nil
	case *plan.PrefixQuery:
		pq := query.NewPrefixQuery(q.Value)
		pq.SetField(q.Field)
		return withBoost(pq, q.Boost), nil
	case *plan.NestedQuery:
		inner, err := t.translate(q.Query)
		if err != nil {
			return nil, err
		}
		return withBoost(inner, q.Boost), nil
	}
	return nil, errors.Newf(errors.ErrCodeUnsupportedFeature, "embedded backend cannot run %T", q)
}

func (t *translator) all(qs []plan.Query) ([]query.Query, error) {
	out := make([]query.Query, 0, len(qs))
	for _, q := range qs {
		c, err := t.translate(q)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *translator) boolQuery(q *plan.BoolQuery) (query.Query, error) {
	must, err := t.all(append(append([]plan.Query(nil), q.Must...), q.Filter...))
	if err != nil {
		return nil, err
	}
	should, err := t.all(q.Should)
	if err != nil {
		return nil, err
	}
	mustNot, err := t.all(q.MustNot)
	if err != nil {
		return nil, err
	}
	if len(must) == 0 && len(should) == 0 {
		must = []query.Query{query.NewMatchAllQuery()}
	}
	bq := query.NewBooleanQuery(must, should, mustNot)
	if len(should) > 0 && q.MinimumShouldMatch > 0 {
		bq.SetMinShould(float64(q.MinimumShouldMatch))
	}
	return withBoost(bq, q.Boost), nil
}

// term matches one exact value, typed by the field.
func (t *translator) term(field string, v any) (query.Query, error) {
	switch t.types[field] {
	case schema.TypeLong, schema.TypeInteger, schema.TypeDouble, schema.TypeFloat:
		n, err := toFloat(v)
		if err != nil {
			return nil, fieldError(field, err)
		}
		incl := true
		nq := query.NewNumericRangeInclusiveQuery(&n, &n, &incl, &incl)
		nq.SetField(field)
		return nq, nil
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fieldError(field, fmt.Errorf("%v is not a boolean", v))
		}
		bq := query.NewBoolFieldQuery(b)
		bq.SetField(field)
		return bq, nil
	case schema.TypeDate:
		ts, err := toTime(v)
		if err != nil {
			return nil, fieldError(field, err)
		}
		incl := true
		dq := query.NewDateRangeInclusiveQuery(ts, ts, &incl, &incl)
		dq.SetField(field)
		return dq, nil
	}
	tq := query.NewTermQuery(fmt.Sprint(v))
	tq.SetField(field)
	return tq, nil
}

func (t *translator) rangeQuery(q *plan.RangeQuery) (query.Query, error) {
	lo, loIncl := q.GTE, true
	if q.GT != nil {
		lo, loIncl = q.GT, false
	}
	hi, hiIncl := q.LTE, true
	if q.LT != nil {
		hi, hiIncl = q.LT, false
	}

	switch t.types[q.Field] {
	case schema.TypeDate:
		var start, end time.Time
		var err error
		if lo != nil {
			if start, err = toTime(lo); err != nil {
				return nil, fieldError(q.Field, err)
			}
		}
		if hi != nil {
			if end, err = toTime(hi); err != nil {
				return nil, fieldError(q.Field, err)
			}
		}
		dq := query.NewDateRangeInclusiveQuery(start, end, &loIncl, &hiIncl)
		dq.SetField(q.Field)
		return dq, nil
	case schema.TypeKeyword, schema.TypeText:
		var min, max string
		if lo != nil {
			min = fmt.Sprint(lo)
		}
		if hi != nil {
			max = fmt.Sprint(hi)
		}
		rq := query.NewTermRangeInclusiveQuery(min, max, &loIncl, &hiIncl)
		rq.SetField(q.Field)
		return rq, nil
	}

	var min, max *float64
	if lo != nil {
		n, err := toFloat(lo)
		if err != nil {
			return nil, fieldError(q.Field, err)
		}
		min = &n
	}
	if hi != nil {
		n, err := toFloat(hi)
		if err != nil {
			return nil, fieldError(q.Field, err)
		}
		max = &n
	}
	nq := query.NewNumericRangeInclusiveQuery(min, max, &loIncl, &hiIncl)
	nq.SetField(q.Field)
	return nq, nil
}

// queryString parses the canonical query and matches each term against
// every field of q.
func (t *translator) queryString(q *plan.QueryStringQuery) (query.Query, error) {
	op := querystring.OpAnd
	if strings.EqualFold(q.DefaultOperator, "or") {
		op = querystring.OpOr
	}
	root, err := querystring.Parse(q.Query, op)
	if err != nil {
		return nil, err
	}
	return t.node(root, q.Fields), nil
}

func (t *translator) node(n *querystring.Node, fields []string) query.Query {
	switch n.Kind {
	case querystring.NodeAnd, querystring.NodeOr:
		clauses := make([]query.Query, len(n.Children))
		for i, c := range n.Children {
			clauses[i] = t.node(c, fields)
		}
		if n.Kind == querystring.NodeAnd {
			return query.NewConjunctionQuery(clauses)
		}
		return query.NewDisjunctionQuery(clauses)
	case querystring.NodeNot:
		return query.NewBooleanQuery(
			[]query.Query{query.NewMatchAllQuery()}, nil,
			[]query.Query{t.node(n.Children[0], fields)})
	}

	targets := fields
	if n.Field != "" {
		targets = []string{n.Field}
	}
	if len(targets) == 0 {
		// Unqualified terms search the composite of all text fields.
		targets = []string{""}
	}
	clauses := make([]query.Query, 0, len(targets))
	for _, f := range targets {
		clauses = append(clauses, t.termNode(n, f))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return query.NewDisjunctionQuery(clauses)
}

func (t *translator) termNode(n *querystring.Node, field string) query.Query {
	analyzed := field == "" || t.types[field] == schema.TypeText
	switch {
	case n.Phrase:
		pq := query.NewMatchPhraseQuery(n.Text)
		pq.SetField(field)
		return pq
	case n.Wildcard:
		text := n.Text
		if analyzed {
			text = strings.ToLower(text)
		}
		wq := query.NewWildcardQuery(text)
		wq.SetField(field)
		return wq
	}
	mq := query.NewMatchQuery(n.Text)
	mq.SetField(field)
	return mq
}

func fieldError(field string, err error) error {
	return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("field %q: %v", field, err), err)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("%v is not a number", v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	}
	if ms, err := toFloat(v); err == nil {
		return time.UnixMilli(int64(ms)), nil
	}
	return time.Time{}, fmt.Errorf("%v is not a date", v)
}
