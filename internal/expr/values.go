package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// valueKey returns a string identifying v for deduplication. Numbers are
// keyed by value whatever their Go type, so 1 and float64(1) collide;
// other values of different types never do.
func valueKey(v any) string {
	if f, ok := toFloat(v); ok {
		return "num\x00" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	switch t := v.(type) {
	case time.Time:
		return "time\x00" + t.UTC().Format(time.RFC3339Nano)
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%T\x00%v", v, v)
}

// dedupe removes repeated values, keeping first occurrences in order.
func dedupe(values []any) []any {
	seen := make(map[string]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		k := valueKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// union returns a ∪ b in first-seen order.
func union(a, b []any) []any {
	merged := make([]any, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return dedupe(merged)
}

// intersect returns the values of a also present in b, in a's order.
func intersect(a, b []any) []any {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[valueKey(v)] = struct{}{}
	}
	out := make([]any, 0, len(a))
	for _, v := range dedupe(a) {
		if _, ok := inB[valueKey(v)]; ok {
			out = append(out, v)
		}
	}
	return out
}

// sameValue reports whether two leaf values are equal.
func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values of compatible types: numbers of any Go
// numeric type, strings and time.Time. ok is false when the values cannot
// be ordered against each other.
func Compare(a, b any) (cmp int, ok bool) {
	if fa, okA := toFloat(a); okA {
		fb, okB := toFloat(b)
		if !okB {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch ta := a.(type) {
	case time.Time:
		tb, okB := b.(time.Time)
		if !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	case string:
		tb, okB := b.(string)
		if !okB {
			return 0, false
		}
		return strings.Compare(ta, tb), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
