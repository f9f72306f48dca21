package plan

// NestedAggregationKey names the sub-aggregation that holds the buckets of
// an aggregation over a nested field.
const NestedAggregationKey = "inner"

// AggregationKind identifies the bucket layout of an aggregation.
type AggregationKind string

const (
	AggTerms         AggregationKind = "terms"
	AggRange         AggregationKind = "range"
	AggDateHistogram AggregationKind = "date_histogram"
)

// Aggregation is one requested bucket aggregation.
type Aggregation interface {
	AggregationName() string
	Kind() AggregationKind
	Source() map[string]any
}

// TermsAggregation buckets by distinct value.
type TermsAggregation struct {
	Name       string
	Field      string
	Size       int
	NestedPath string
}

func (a *TermsAggregation) AggregationName() string { return a.Name }
func (a *TermsAggregation) Kind() AggregationKind  { return AggTerms }

func (a *TermsAggregation) Source() map[string]any {
	inner := map[string]any{"field": a.Field}
	if a.Size > 0 {
		inner["size"] = a.Size
	}
	return nested(a.NestedPath, map[string]any{"terms": inner})
}

// RangeBucket is one requested range. Nil bounds are open.
type RangeBucket struct {
	Key  string
	From *float64
	To   *float64
}

// RangeAggregation buckets numeric values into the given ranges.
type RangeAggregation struct {
	Name       string
	Field      string
	Ranges     []RangeBucket
	NestedPath string
}

func (a *RangeAggregation) AggregationName() string { return a.Name }
func (a *RangeAggregation) Kind() AggregationKind  { return AggRange }

func (a *RangeAggregation) Source() map[string]any {
	ranges := make([]any, len(a.Ranges))
	for i, r := range a.Ranges {
		m := map[string]any{}
		if r.Key != "" {
			m["key"] = r.Key
		}
		if r.From != nil {
			m["from"] = *r.From
		}
		if r.To != nil {
			m["to"] = *r.To
		}
		ranges[i] = m
	}
	return nested(a.NestedPath, map[string]any{
		"range": map[string]any{"field": a.Field, "ranges": ranges},
	})
}

// DateHistogramAggregation buckets dates by calendar interval. Keys are
// rendered in TimeZone.
type DateHistogramAggregation struct {
	Name             string
	Field            string
	CalendarInterval string
	TimeZone         string
	Format           string
	NestedPath       string
}

func (a *DateHistogramAggregation) AggregationName() string { return a.Name }
func (a *DateHistogramAggregation) Kind() AggregationKind  { return AggDateHistogram }

func (a *DateHistogramAggregation) Source() map[string]any {
	inner := map[string]any{
		"field":             a.Field,
		"calendar_interval": a.CalendarInterval,
		"min_doc_count":     0,
	}
	if a.TimeZone != "" {
		inner["time_zone"] = a.TimeZone
	}
	if a.Format != "" {
		inner["format"] = a.Format
	}
	return nested(a.NestedPath, map[string]any{"date_histogram": inner})
}

func nested(path string, agg map[string]any) map[string]any {
	if path == "" {
		return agg
	}
	return map[string]any{
		"nested": map[string]any{"path": path},
		"aggs":   map[string]any{NestedAggregationKey: agg},
	}
}
