// Package backend defines the contracts between searchkit and a search
// engine: a document store, a query executor, index administration and a
// mapping emitter. Implementations live in subpackages.
package backend

import (
	"context"
	"time"

	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// Mode controls when index changes become visible to searches.
type Mode int

const (
	// ModeAsync returns as soon as the backend accepted the change. It
	// becomes searchable after the backend's own refresh interval.
	ModeAsync Mode = iota

	// ModeBlocking waits until the change is searchable.
	ModeBlocking
)

func (m Mode) String() string {
	if m == ModeBlocking {
		return "blocking"
	}
	return "async"
}

// Document is one indexable document.
type Document struct {
	ID     string
	Source map[string]any
}

// BulkAction is the kind of one bulk operation.
type BulkAction int

const (
	BulkIndex BulkAction = iota
	BulkDelete
)

func (a BulkAction) String() string {
	if a == BulkDelete {
		return "delete"
	}
	return "index"
}

// BulkOp is one operation of a bulk call. Source is unused for deletes.
type BulkOp struct {
	Action BulkAction
	ID     string
	Source map[string]any
}

// ItemResult is the outcome for one document of a bulk call.
type ItemResult struct {
	ID     string
	OK     bool
	Status int
	Error  string
}

// BulkResult reports the per-document outcome of a bulk call.
type BulkResult struct {
	Items []ItemResult
}

// Failed returns the items that did not succeed.
func (r *BulkResult) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if !it.OK {
			out = append(out, it)
		}
	}
	return out
}

// Successes maps each document id to whether its operation succeeded.
func (r *BulkResult) Successes() map[string]bool {
	out := make(map[string]bool, len(r.Items))
	for _, it := range r.Items {
		out[it.ID] = it.OK
	}
	return out
}

// Hit is one matching document.
type Hit struct {
	ID     string
	Index  string
	Score  float64
	Source map[string]any
}

// Bucket is one raw aggregation bucket. From and To are set for range
// buckets and nil when open.
type Bucket struct {
	Key         any
	KeyAsString string
	DocCount    int64
	From        *float64
	To          *float64
}

// Aggregation holds the raw buckets of one aggregation.
type Aggregation struct {
	Kind    plan.AggregationKind
	Buckets []Bucket
}

// SearchResponse is the raw result of a search call.
type SearchResponse struct {
	Hits  []Hit
	Total int64

	// TotalIsLowerBound is set when the backend stopped counting early.
	TotalIsLowerBound bool

	Aggregations map[string]Aggregation
	Took         time.Duration
}

// IndexSettings are the per-index preset values applied at creation.
type IndexSettings struct {
	Shards int

	// Replicas is left to the backend default when nil.
	Replicas *int

	MaxResultWindow int
	RefreshInterval string
}

// AliasActionKind is the kind of one alias change.
type AliasActionKind int

const (
	AliasAdd AliasActionKind = iota
	AliasRemove
)

// AliasAction adds or removes Alias on Index.
type AliasAction struct {
	Kind  AliasActionKind
	Index string
	Alias string
}

// DocumentStore writes documents.
type DocumentStore interface {
	Index(ctx context.Context, index string, doc Document, mode Mode) error
	Delete(ctx context.Context, index, id string, mode Mode) error
	Bulk(ctx context.Context, index string, ops []BulkOp, mode Mode) (*BulkResult, error)
}

// QueryExecutor runs compiled searches.
type QueryExecutor interface {
	Search(ctx context.Context, index string, req *plan.SearchRequest) (*SearchResponse, error)
}

// IndexAdmin manages physical indexes and aliases.
type IndexAdmin interface {
	CreateIndex(ctx context.Context, name string, settings IndexSettings, mapping any) error
	DeleteIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)

	// GetAlias returns the physical indexes behind alias; empty when the
	// alias does not exist.
	GetAlias(ctx context.Context, alias string) ([]string, error)

	// UpdateAliases applies all actions in one atomic call.
	UpdateAliases(ctx context.Context, actions []AliasAction) error

	Refresh(ctx context.Context, index string) error
}

// MappingEmitter turns a schema into the backend's native mapping document.
type MappingEmitter interface {
	Mapping(s *schema.Schema) (any, error)
}

// Connector is a complete backend.
type Connector interface {
	DocumentStore
	QueryExecutor
	IndexAdmin
	MappingEmitter
	Close() error
}
