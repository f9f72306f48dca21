package embedded

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

const defaultFacetSize = 10

// Search runs req against index, which may be an alias over several
// indexes. Totals are always exact.
func (st *Store) Search(ctx context.Context, index string, req *plan.SearchRequest) (*backend.SearchResponse, error) {
	ps, err := st.resolve(ctx, "search", index)
	if err != nil {
		return nil, err
	}
	tr := &translator{types: mergedTypes(ps)}

	q, err := tr.translate(req.Query)
	if err != nil {
		return nil, err
	}
	size := req.Size
	if size < 0 {
		size = 0
	}
	sr := bleve.NewSearchRequestOptions(q, size, req.From, false)
	sr.Fields = []string{sourceField}

	if len(req.Sort) > 0 {
		sr.SortByCustom(sortOrder(req.Sort, tr.types))
	}
	kinds := make(map[string]plan.AggregationKind, len(req.Aggregations))
	for _, a := range req.Aggregations {
		fr, err := facetRequest(a)
		if err != nil {
			return nil, err
		}
		sr.AddFacet(a.AggregationName(), fr)
		kinds[a.AggregationName()] = a.Kind()
	}

	var searcher bleve.Index = ps[0].idx
	if len(ps) > 1 {
		indexes := make([]bleve.Index, len(ps))
		for i, p := range ps {
			indexes[i] = p.idx
		}
		searcher = bleve.NewIndexAlias(indexes...)
	}

	res, err := searcher.SearchInContext(ctx, sr)
	if err != nil {
		return nil, errors.BackendError("search", err)
	}

	out := &backend.SearchResponse{
		Hits:         make([]backend.Hit, 0, len(res.Hits)),
		Total:        int64(res.Total),
		Took:         res.Took,
		Aggregations: make(map[string]backend.Aggregation, len(kinds)),
	}
	for _, h := range res.Hits {
		hit := backend.Hit{ID: h.ID, Index: h.Index, Score: h.Score}
		if hit.Index == "" {
			hit.Index = ps[0].name
		}
		if raw, ok := h.Fields[sourceField].(string); ok {
			_ = json.Unmarshal([]byte(raw), &hit.Source)
		}
		out.Hits = append(out.Hits, hit)
	}
	for _, a := range req.Aggregations {
		name := a.AggregationName()
		out.Aggregations[name] = convertFacet(a, res.Facets[name])
	}
	return out, nil
}

func mergedTypes(ps []*physIndex) map[string]schema.Type {
	if len(ps) == 1 {
		return ps[0].types
	}
	out := map[string]schema.Type{}
	for _, p := range ps {
		for k, v := range p.types {
			out[k] = v
		}
	}
	return out
}

func sortOrder(sorts []plan.Sort, types map[string]schema.Type) search.SortOrder {
	order := make(search.SortOrder, 0, len(sorts))
	for _, s := range sorts {
		if s.Score {
			order = append(order, &search.SortScore{Desc: s.Desc})
			continue
		}
		sf := &search.SortField{Field: s.Field, Desc: s.Desc, Missing: search.SortFieldMissingLast}
		if s.Missing == "_first" {
			sf.Missing = search.SortFieldMissingFirst
		}
		switch t := types[s.Field]; {
		case t.IsNumeric():
			sf.Type = search.SortFieldAsNumber
		case t == schema.TypeDate:
			sf.Type = search.SortFieldAsDate
		default:
			sf.Type = search.SortFieldAsString
		}
		order = append(order, sf)
	}
	return order
}

func facetRequest(a plan.Aggregation) (*bleve.FacetRequest, error) {
	switch a := a.(type) {
	case *plan.TermsAggregation:
		size := a.Size
		if size <= 0 {
			size = defaultFacetSize
		}
		return bleve.NewFacetRequest(a.Field, size), nil
	case *plan.RangeAggregation:
		fr := bleve.NewFacetRequest(a.Field, len(a.Ranges))
		for _, r := range a.Ranges {
			fr.AddNumericRange(rangeKey(r), r.From, r.To)
		}
		return fr, nil
	}
	return nil, errors.Newf(errors.ErrCodeUnsupportedFeature,
		"embedded backend does not support %s aggregations", a.Kind())
}

// rangeKey names a range bucket the way Elasticsearch does when no key is
// given: "<from>-<to>" with "*" for open ends.
func rangeKey(r plan.RangeBucket) string {
	if r.Key != "" {
		return r.Key
	}
	bound := func(f *float64) string {
		if f == nil {
			return "*"
		}
		return strconv.FormatFloat(*f, 'f', 1, 64)
	}
	return bound(r.From) + "-" + bound(r.To)
}

func convertFacet(a plan.Aggregation, fr *search.FacetResult) backend.Aggregation {
	out := backend.Aggregation{Kind: a.Kind()}
	if fr == nil {
		return out
	}
	switch a := a.(type) {
	case *plan.TermsAggregation:
		if fr.Terms == nil {
			return out
		}
		for _, tf := range fr.Terms.Terms() {
			out.Buckets = append(out.Buckets, backend.Bucket{Key: tf.Term, DocCount: int64(tf.Count)})
		}
	case *plan.RangeAggregation:
		counts := make(map[string]int64, len(fr.NumericRanges))
		for _, nr := range fr.NumericRanges {
			counts[nr.Name] = int64(nr.Count)
		}
		// Requested order, with empty ranges reported as zero.
		for _, r := range a.Ranges {
			key := rangeKey(r)
			out.Buckets = append(out.Buckets, backend.Bucket{Key: key, DocCount: counts[key], From: r.From, To: r.To})
		}
	}
	return out
}
