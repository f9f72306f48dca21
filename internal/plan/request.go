package plan

import "encoding/json"

// Sort orders hits by a field, or by relevance when Score is set.
type Sort struct {
	Field string
	Desc  bool
	Score bool

	// Missing places documents without a value: "_first" or "_last".
	Missing string

	// NestedPath and NestedFilter select which nested objects contribute
	// the sort value.
	NestedPath   string
	NestedFilter Query
}

func (s Sort) order() string {
	if s.Desc {
		return "desc"
	}
	return "asc"
}

func (s Sort) Source() map[string]any {
	if s.Score {
		return map[string]any{"_score": map[string]any{"order": s.order()}}
	}
	inner := map[string]any{"order": s.order()}
	if s.Missing != "" {
		inner["missing"] = s.Missing
	}
	if s.NestedPath != "" {
		nested := map[string]any{"path": s.NestedPath}
		if s.NestedFilter != nil {
			nested["filter"] = s.NestedFilter.Source()
		}
		inner["nested"] = nested
	}
	return map[string]any{s.Field: inner}
}

// SearchRequest is everything sent with one search call.
type SearchRequest struct {
	Query          Query
	From           int
	Size           int
	Sort           []Sort
	Aggregations   []Aggregation
	TrackTotalHits bool
}

// Source renders the request body.
func (r *SearchRequest) Source() map[string]any {
	body := map[string]any{
		"from": r.From,
		"size": r.Size,
	}
	if r.Query != nil {
		body["query"] = r.Query.Source()
	} else {
		body["query"] = (&MatchAllQuery{}).Source()
	}
	if len(r.Sort) > 0 {
		sorts := make([]any, len(r.Sort))
		for i, s := range r.Sort {
			sorts[i] = s.Source()
		}
		body["sort"] = sorts
	}
	if len(r.Aggregations) > 0 {
		aggs := make(map[string]any, len(r.Aggregations))
		for _, a := range r.Aggregations {
			aggs[a.AggregationName()] = a.Source()
		}
		body["aggs"] = aggs
	}
	if r.TrackTotalHits {
		body["track_total_hits"] = true
	}
	return body
}

// MarshalJSON encodes the request body.
func (r *SearchRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Source())
}
