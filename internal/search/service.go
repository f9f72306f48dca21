package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/compiler"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/facet"
	"github.com/Aman-CERP/searchkit/internal/index"
	"github.com/Aman-CERP/searchkit/internal/plan"
	"github.com/Aman-CERP/searchkit/internal/schema"
	"github.com/Aman-CERP/searchkit/internal/telemetry"
)

// Service runs searches and writes against aliases of one backend.
// It is safe for concurrent use.
type Service struct {
	conn     backend.Connector
	schema   *schema.Schema
	compiler *compiler.Compiler
	manager  *index.Manager
	facets   *facet.Converter
	labels   *facet.CachedResolver
	metrics  *telemetry.QueryMetrics
	cfg      Config

	closeOnce sync.Once
}

// Option configures the service.
type Option func(*Service)

// WithLabelResolver resolves facet bucket labels through r, behind an LRU
// cache of Config.LabelCacheSize entries.
func WithLabelResolver(r facet.LabelResolver) Option {
	return func(s *Service) {
		if r == nil {
			return
		}
		s.labels = facet.NewCachedResolver(r, s.cfg.LabelCacheSize)
		s.facets = facet.NewConverter(s.labels)
	}
}

// WithMetrics records every search into m.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a Service over conn for documents described by sch.
func New(conn backend.Connector, sch *schema.Schema, cfg Config, opts ...Option) (*Service, error) {
	if conn == nil {
		return nil, errors.ConfigError("search service needs a backend connector", nil)
	}
	if sch == nil {
		return nil, errors.ConfigError("search service needs a schema", nil)
	}
	cfg = cfg.withDefaults()

	idxOpts := cfg.Index
	idxOpts.Schema = sch
	manager, err := index.NewManager(conn, idxOpts)
	if err != nil {
		return nil, err
	}

	s := &Service{
		conn:     conn,
		schema:   sch,
		compiler: compiler.New(sch, cfg.Compiler),
		manager:  manager,
		facets:   facet.NewConverter(nil),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Manager returns the index lifecycle manager writes go through.
func (s *Service) Manager() *index.Manager { return s.manager }

// Compiler returns the expression compiler.
func (s *Service) Compiler() *compiler.Compiler { return s.compiler }

// PurgeLabels drops cached facet labels.
func (s *Service) PurgeLabels() {
	if s.labels != nil {
		s.labels.Purge()
	}
}

// Search compiles e and runs it against alias.
func (s *Service) Search(ctx context.Context, alias string, e expr.Expr, p Params) (*Result, error) {
	start := time.Now()
	if alias == "" {
		return nil, invalidInput("alias is required", nil)
	}
	req, err := s.Prepare(e, p)
	if err != nil {
		return nil, err
	}

	var resp *backend.SearchResponse
	err = s.manager.Call(ctx, "search", func(c context.Context) error {
		var err error
		resp, err = s.conn.Search(c, alias, req)
		return err
	})
	if err != nil {
		slog.Warn("search_failed",
			slog.String("alias", alias),
			errors.FormatForLog(err))
		return nil, err
	}

	res := &Result{
		Hits:              resp.Hits,
		Total:             resp.Total,
		TotalIsLowerBound: resp.TotalIsLowerBound,
		Facets:            s.facets.ConvertAll(resp.Aggregations, p.Locale),
		Took:              time.Since(start),
		Query:             req.Query,
	}

	if s.metrics != nil {
		s.metrics.Record(queryEvent(alias, e, res))
	}
	slog.Debug("search_executed",
		slog.String("alias", alias),
		slog.Int64("total", res.Total),
		slog.Int("hits", len(res.Hits)),
		slog.Duration("took", res.Took))
	return res, nil
}

// Prepare optimizes and compiles e into the request Search would send,
// without running it.
func (s *Service) Prepare(e expr.Expr, p Params) (*plan.SearchRequest, error) {
	if p.From < 0 {
		return nil, invalidInput(fmt.Sprintf("from must not be negative, got %d", p.From), nil)
	}
	size := s.cfg.DefaultSize
	if p.Size != nil {
		size = *p.Size
	}
	if size < 0 || size > s.cfg.MaxSize {
		return nil, invalidInput(fmt.Sprintf("size must be between 0 and %d, got %d", s.cfg.MaxSize, size), nil).
			WithSuggestion("Page through results with from/size")
	}

	optimized := expr.Optimize(e, expr.WithBatchSize(s.cfg.InBatchSize))
	cctx := compiler.NewContext(p.Locale, s.cfg.Location)

	query, err := s.compiler.Compile(optimized, cctx)
	if err != nil {
		return nil, err
	}
	sorts, err := s.compiler.CompileSort(p.Sort, cctx)
	if err != nil {
		return nil, err
	}
	aggs, err := s.compiler.CompileAggregations(p.Aggregations, cctx)
	if err != nil {
		return nil, err
	}
	return &plan.SearchRequest{
		Query:          query,
		From:           p.From,
		Size:           size,
		Sort:           sorts,
		Aggregations:   aggs,
		TrackTotalHits: p.TrackTotalHits,
	}, nil
}

// AddToIndex indexes one document through alias.
func (s *Service) AddToIndex(ctx context.Context, alias string, doc backend.Document, mode index.Mode) error {
	if doc.ID == "" {
		return invalidInput("document id is required", nil)
	}
	return s.manager.AddToIndex(ctx, alias, doc, mode)
}

// RemoveFromIndex deletes one document through alias.
func (s *Service) RemoveFromIndex(ctx context.Context, alias, id string, mode index.Mode) error {
	if id == "" {
		return invalidInput("document id is required", nil)
	}
	return s.manager.RemoveFromIndex(ctx, alias, id, mode)
}

// AddAllToIndex indexes docs in batches and reports every document. With
// StrictBulk any rejected document also yields ErrCodeBulkPartial.
func (s *Service) AddAllToIndex(ctx context.Context, alias string, docs []backend.Document, mode index.Mode) (*backend.BulkResult, error) {
	for i, d := range docs {
		if d.ID == "" {
			return nil, invalidInput(fmt.Sprintf("document %d has no id", i), nil)
		}
	}
	return s.batched(ctx, len(docs), func(c context.Context, lo, hi int) (*backend.BulkResult, error) {
		return s.manager.BulkAddToIndex(c, alias, docs[lo:hi], mode)
	})
}

// RemoveAllFromIndex deletes ids in batches. Missing documents count as
// removed.
func (s *Service) RemoveAllFromIndex(ctx context.Context, alias string, ids []string, mode index.Mode) (*backend.BulkResult, error) {
	return s.batched(ctx, len(ids), func(c context.Context, lo, hi int) (*backend.BulkResult, error) {
		return s.manager.BulkRemoveFromIndex(c, alias, ids[lo:hi], mode)
	})
}

// batched runs fn over [0,n) in chunks of BulkBatchSize with at most
// BulkWorkers calls in flight, then merges results in input order.
func (s *Service) batched(ctx context.Context, n int, fn func(context.Context, int, int) (*backend.BulkResult, error)) (*backend.BulkResult, error) {
	if n == 0 {
		return &backend.BulkResult{}, nil
	}
	size := s.cfg.BulkBatchSize
	parts := make([]*backend.BulkResult, (n+size-1)/size)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BulkWorkers)
	for i := range parts {
		i := i
		lo, hi := i*size, min((i+1)*size, n)
		g.Go(func() error {
			res, err := fn(gctx, lo, hi)
			if err != nil {
				return err
			}
			parts[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &backend.BulkResult{Items: make([]backend.ItemResult, 0, n)}
	for _, p := range parts {
		out.Items = append(out.Items, p.Items...)
	}
	if failed := out.Failed(); len(failed) > 0 {
		slog.Warn("bulk_partial_failure",
			slog.Int("failed", len(failed)),
			slog.Int("total", n),
			slog.String("first_id", failed[0].ID),
			slog.String("first_error", failed[0].Error))
		if s.cfg.StrictBulk {
			return out, errors.New(errors.ErrCodeBulkPartial,
				fmt.Sprintf("%d of %d documents were rejected", len(failed), n), nil).
				WithDetail("first_id", failed[0].ID).
				WithDetail("first_error", failed[0].Error)
		}
	}
	return out, nil
}

// CreateAndInitializeIndex builds a generation of alias from src. See
// index.Manager.CreateAndInitializeIndex.
func (s *Service) CreateAndInitializeIndex(ctx context.Context, alias string, rebuildIfExists bool,
	src index.DocumentSource, listener index.ProgressListener, mode index.Mode) (*index.Generation, error) {
	return s.manager.CreateAndInitializeIndex(ctx, alias, rebuildIfExists, src, listener, mode)
}

// ResolveAlias returns the physical index behind alias.
func (s *Service) ResolveAlias(ctx context.Context, alias string) (string, error) {
	return s.manager.ResolveAlias(ctx, alias)
}

// Close flushes metrics and closes the backend connector.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.metrics != nil {
			if merr := s.metrics.Close(); merr != nil {
				slog.Warn("metrics_flush_failed", slog.String("error", merr.Error()))
			}
		}
		err = s.conn.Close()
	})
	return err
}

func invalidInput(message string, cause error) *errors.SearchError {
	return errors.New(errors.ErrCodeInvalidInput, message, cause)
}

// queryEvent classifies e for telemetry.
func queryEvent(alias string, e expr.Expr, res *Result) telemetry.QueryEvent {
	var text, structured bool
	var fields []string
	expr.Walk(e, func(n expr.Expr) bool {
		switch n := n.(type) {
		case *expr.Fulltext:
			text = true
			fields = append(fields, n.Fields...)
		default:
			if f := expr.FieldOf(n); f != "" {
				structured = true
				fields = append(fields, f)
			}
		}
		return true
	})
	qt := telemetry.QueryTypeStructured
	switch {
	case text && structured:
		qt = telemetry.QueryTypeMixed
	case text:
		qt = telemetry.QueryTypeFulltext
	}
	exprString := ""
	if e != nil {
		exprString = e.String()
	}
	return telemetry.QueryEvent{
		Alias:       alias,
		Expression:  exprString,
		QueryType:   qt,
		Fields:      fields,
		ResultCount: res.Total,
		Latency:     res.Took,
		Timestamp:   time.Now(),
	}
}
