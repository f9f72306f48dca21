package elastic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/plan"
)

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total *struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Index  string         `json:"_index"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

type rawBucket struct {
	Key         any      `json:"key"`
	KeyAsString string   `json:"key_as_string"`
	DocCount    int64    `json:"doc_count"`
	From        *float64 `json:"from"`
	To          *float64 `json:"to"`
}

// Search runs req against index, which may be an alias.
func (c *Client) Search(ctx context.Context, index string, req *plan.SearchRequest) (*backend.SearchResponse, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if _, err := c.do(ctx, "search", esapi.SearchRequest{
		Index: []string{index},
		Body:  body,
	}, &resp); err != nil {
		return nil, err
	}

	out := &backend.SearchResponse{
		Hits:         make([]backend.Hit, 0, len(resp.Hits.Hits)),
		Took:         time.Duration(resp.Took) * time.Millisecond,
		Aggregations: make(map[string]backend.Aggregation, len(req.Aggregations)),
	}
	if t := resp.Hits.Total; t != nil {
		out.Total = t.Value
		out.TotalIsLowerBound = t.Relation == "gte"
	}
	for _, h := range resp.Hits.Hits {
		hit := backend.Hit{ID: h.ID, Index: h.Index, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}

	for _, a := range req.Aggregations {
		raw, ok := resp.Aggregations[a.AggregationName()]
		if !ok {
			continue
		}
		buckets, err := parseBuckets(raw)
		if err != nil {
			return nil, err
		}
		out.Aggregations[a.AggregationName()] = backend.Aggregation{Kind: a.Kind(), Buckets: buckets}
	}
	return out, nil
}

// parseBuckets reads the buckets of one aggregation result, descending
// into the nested wrapper when present.
func parseBuckets(raw json.RawMessage) ([]backend.Bucket, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, decodeError("aggregation", err)
	}
	if inner, ok := obj[plan.NestedAggregationKey]; ok {
		if _, hasBuckets := obj["buckets"]; !hasBuckets {
			return parseBuckets(inner)
		}
	}
	rawBuckets, ok := obj["buckets"]
	if !ok {
		return nil, nil
	}

	var list []rawBucket
	if err := json.Unmarshal(rawBuckets, &list); err != nil {
		return nil, decodeError("aggregation buckets", err)
	}

	out := make([]backend.Bucket, len(list))
	for i, b := range list {
		out[i] = backend.Bucket{
			Key:         b.Key,
			KeyAsString: b.KeyAsString,
			DocCount:    b.DocCount,
			From:        b.From,
			To:          b.To,
		}
	}
	return out, nil
}
