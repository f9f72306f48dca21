package facet

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLabelCacheSize is the number of resolved labels kept in memory.
const DefaultLabelCacheSize = 4096

type labelEntry struct {
	label string
	ok    bool
}

// CachedResolver fronts a LabelResolver with an LRU cache. Misses are
// cached too, so unknown keys do not hit the inner resolver again.
type CachedResolver struct {
	inner LabelResolver
	cache *lru.Cache[string, labelEntry]
}

// NewCachedResolver wraps inner with a cache of size entries.
func NewCachedResolver(inner LabelResolver, size int) *CachedResolver {
	if size <= 0 {
		size = DefaultLabelCacheSize
	}
	cache, _ := lru.New[string, labelEntry](size)
	return &CachedResolver{inner: inner, cache: cache}
}

func (c *CachedResolver) ResolveLabel(field string, key any, locale string) (string, bool) {
	k := fmt.Sprintf("%s\x00%s\x00%T\x00%v", field, locale, key, key)
	if e, ok := c.cache.Get(k); ok {
		return e.label, e.ok
	}
	label, ok := c.inner.ResolveLabel(field, key, locale)
	c.cache.Add(k, labelEntry{label: label, ok: ok})
	return label, ok
}

// Purge drops all cached labels, e.g. after label data changed.
func (c *CachedResolver) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached entries.
func (c *CachedResolver) Len() int {
	return c.cache.Len()
}
