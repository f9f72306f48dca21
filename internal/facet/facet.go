// Package facet converts raw aggregation buckets into typed facets.
package facet

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/plan"
)

// Bucket is one labeled count of a facet.
type Bucket struct {
	// Key is the raw bucket key. Date histogram keys are epoch
	// milliseconds.
	Key   any
	Label string
	Count int64

	// From and To bound range buckets; nil is open.
	From *float64
	To   *float64
}

// Facet is the converted result of one aggregation.
type Facet struct {
	Name    string
	Kind    plan.AggregationKind
	Total   int64
	Buckets []Bucket
}

// LabelResolver turns a bucket key into a display label. ok is false when
// the resolver has no label for the key.
type LabelResolver interface {
	ResolveLabel(field string, key any, locale string) (label string, ok bool)
}

// LabelResolverFunc adapts a function to LabelResolver.
type LabelResolverFunc func(field string, key any, locale string) (string, bool)

func (f LabelResolverFunc) ResolveLabel(field string, key any, locale string) (string, bool) {
	return f(field, key, locale)
}

// Converter maps aggregation buckets to facets. It is safe for concurrent
// use when its resolver is.
type Converter struct {
	resolver LabelResolver
}

// NewConverter returns a Converter. resolver may be nil.
func NewConverter(resolver LabelResolver) *Converter {
	return &Converter{resolver: resolver}
}

// Convert maps one aggregation. Zero-count buckets are dropped and the
// name is cut at the first "." to recover the logical field.
func (c *Converter) Convert(name string, agg backend.Aggregation, locale string) Facet {
	field, _, _ := strings.Cut(name, ".")
	f := Facet{Name: field, Kind: agg.Kind, Buckets: make([]Bucket, 0, len(agg.Buckets))}

	for _, b := range agg.Buckets {
		if b.DocCount <= 0 {
			continue
		}
		key := b.Key
		raw := rawLabel(b)
		if agg.Kind == plan.AggDateHistogram {
			key = epochMillis(b)
		}
		label := raw
		if c.resolver != nil {
			if l, ok := c.resolver.ResolveLabel(field, key, locale); ok {
				label = l
			}
		}
		f.Buckets = append(f.Buckets, Bucket{Key: key, Label: label, Count: b.DocCount, From: b.From, To: b.To})
		f.Total += b.DocCount
	}
	return f
}

// ConvertAll maps every aggregation of a response, ordered by name.
func (c *Converter) ConvertAll(aggs map[string]backend.Aggregation, locale string) []Facet {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Facet, 0, len(names))
	for _, name := range names {
		out = append(out, c.Convert(name, aggs[name], locale))
	}
	return out
}

func rawLabel(b backend.Bucket) string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	if b.Key == nil {
		return ""
	}
	return fmt.Sprint(b.Key)
}

// epochMillis reads a date histogram key. The zoned key_as_string wins;
// the numeric key is the fallback.
func epochMillis(b backend.Bucket) int64 {
	if b.KeyAsString != "" {
		if t, err := time.Parse(time.RFC3339, b.KeyAsString); err == nil {
			return t.UnixMilli()
		}
	}
	switch k := b.Key.(type) {
	case float64:
		return int64(k)
	case int64:
		return k
	case int:
		return int64(k)
	}
	return 0
}
