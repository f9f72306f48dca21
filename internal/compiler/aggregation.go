package compiler

import (
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// RangeSpec is one bucket of a range aggregation.
type RangeSpec struct {
	Key  string
	From *float64
	To   *float64
}

// AggregationSpec requests a facet over a logical field.
type AggregationSpec struct {
	// Name keys the aggregation in the response. Empty uses Field.
	Name  string
	Field string
	Kind  plan.AggregationKind

	// Size caps the number of terms buckets.
	Size int

	// Ranges are the buckets of a range aggregation.
	Ranges []RangeSpec

	// Interval is the calendar interval of a date histogram, e.g. "month".
	Interval string
}

// dateHistogramFormat yields zoned ISO timestamps in bucket keys.
const dateHistogramFormat = "strict_date_time"

// CompileAggregations translates aggregation specs. Only aggregatable
// fields may be aggregated.
func (c *Compiler) CompileAggregations(specs []AggregationSpec, ctx *Context) ([]plan.Aggregation, error) {
	if ctx == nil {
		ctx = NewContext("", nil)
	}
	out := make([]plan.Aggregation, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		rf, err := c.resolver.Resolve(s.Field, ctx, true)
		if err != nil {
			return nil, err
		}
		if !rf.Field.Aggregatable || rf.Analyzed {
			return nil, invalid("field %q is not aggregatable", rf.Field.Path())
		}
		name := s.Name
		if name == "" {
			name = s.Field
		}
		if seen[name] {
			return nil, invalid("duplicate aggregation %q", name)
		}
		seen[name] = true

		switch s.Kind {
		case plan.AggTerms, "":
			out = append(out, &plan.TermsAggregation{
				Name: name, Field: rf.Path, Size: s.Size, NestedPath: rf.NestedPath,
			})
		case plan.AggRange:
			if !rf.Field.Type.IsNumeric() {
				return nil, invalid("range aggregation on non-numeric field %q", rf.Field.Path())
			}
			ranges := make([]plan.RangeBucket, len(s.Ranges))
			for i, r := range s.Ranges {
				ranges[i] = plan.RangeBucket{Key: r.Key, From: r.From, To: r.To}
			}
			out = append(out, &plan.RangeAggregation{
				Name: name, Field: rf.Path, Ranges: ranges, NestedPath: rf.NestedPath,
			})
		case plan.AggDateHistogram:
			if rf.Field.Type != schema.TypeDate {
				return nil, invalid("date histogram on non-date field %q", rf.Field.Path())
			}
			interval := s.Interval
			if interval == "" {
				interval = "day"
			}
			out = append(out, &plan.DateHistogramAggregation{
				Name:             name,
				Field:            rf.Path,
				CalendarInterval: interval,
				TimeZone:         ctx.location().String(),
				Format:           dateHistogramFormat,
				NestedPath:       rf.NestedPath,
			})
		default:
			return nil, errors.Newf(errors.ErrCodeUnsupportedFeature, "unsupported aggregation kind %q", s.Kind)
		}
	}
	return out, nil
}
