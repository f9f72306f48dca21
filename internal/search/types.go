// Package search is the entry point callers use: it compiles expression
// trees, runs them against an alias and converts the response, and it
// routes document writes through the index lifecycle manager.
package search

import (
	"time"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/compiler"
	"github.com/Aman-CERP/searchkit/internal/facet"
	"github.com/Aman-CERP/searchkit/internal/index"
	"github.com/Aman-CERP/searchkit/internal/plan"
)

// Params configures one search call.
type Params struct {
	// From is the offset of the first hit.
	From int

	// Size is the page size. Nil uses Config.DefaultSize; zero returns
	// totals and facets without hits.
	Size *int

	Sort []compiler.SortSpec

	// Locale selects language variants of multilingual fields, e.g. "de-CH".
	Locale string

	Aggregations []compiler.AggregationSpec

	// TrackTotalHits asks for an exact total instead of a lower bound.
	TrackTotalHits bool
}

// Result is the converted outcome of a search.
type Result struct {
	Hits  []backend.Hit
	Total int64

	// TotalIsLowerBound is set when the backend stopped counting.
	TotalIsLowerBound bool

	Facets []facet.Facet
	Took   time.Duration

	// Query is the compiled plan, for explain output. Nil matches all.
	Query plan.Query
}

// Config configures a Service.
type Config struct {
	// Location anchors dates and day boundaries. Nil means UTC.
	Location *time.Location

	// InBatchSize splits long In lists during optimization. Zero disables.
	InBatchSize int

	DefaultSize int
	MaxSize     int

	// BulkBatchSize caps the documents sent in one bulk call by the
	// AddAll/RemoveAll operations; BulkWorkers bounds calls in flight.
	BulkBatchSize int
	BulkWorkers   int

	// StrictBulk turns any rejected document of a bulk write into an
	// ErrCodeBulkPartial error. The per-document result is still returned.
	StrictBulk bool

	Compiler compiler.Options
	Index    index.Options

	LabelCacheSize int
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		DefaultSize:    10,
		MaxSize:        10000,
		InBatchSize:    1024,
		BulkBatchSize:  index.DefaultBatchSize,
		BulkWorkers:    index.DefaultWorkers,
		Compiler:       compiler.DefaultOptions(),
		LabelCacheSize: facet.DefaultLabelCacheSize,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultSize <= 0 {
		c.DefaultSize = def.DefaultSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.BulkBatchSize <= 0 {
		c.BulkBatchSize = def.BulkBatchSize
	}
	if c.BulkWorkers <= 0 {
		c.BulkWorkers = def.BulkWorkers
	}
	if c.LabelCacheSize <= 0 {
		c.LabelCacheSize = def.LabelCacheSize
	}
	return c
}
