package integration

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/backend/embedded"
	"github.com/Aman-CERP/searchkit/internal/compiler"
	"github.com/Aman-CERP/searchkit/internal/config"
	"github.com/Aman-CERP/searchkit/internal/expr"
	"github.com/Aman-CERP/searchkit/internal/index"
	"github.com/Aman-CERP/searchkit/internal/search"
	"github.com/Aman-CERP/searchkit/internal/ui"
)

// Integration tests run the whole stack: config file, embedded store on
// disk, search service, background builder and progress renderer.

const projectConfig = `backend:
  kind: embedded
search:
  default_fields: [title]
  time_zone: Europe/Zurich
presets:
  default:
    batch_size: 2
    workers: 2
schema:
  version: 2
  languages: [en, de]
  fields:
    - {name: title, type: text, multilingual: true, sortable: true}
    - {name: tag, type: keyword, aggregatable: true}
    - {name: price, type: double, sortable: true, aggregatable: true}
    - {name: created, type: date}
    - name: variants
      type: nested
      fields:
        - {name: sku, type: keyword}
        - {name: stock, type: integer}
`

type env struct {
	cfg     *config.Config
	dataDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.ProjectFile)
	require.NoError(t, os.WriteFile(path, []byte(projectConfig), 0o600))
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	cfg.Index.StateDir = filepath.Join(dir, "state")
	return &env{cfg: cfg, dataDir: filepath.Join(dir, "data")}
}

// open starts a service over the on-disk store.
func (e *env) open(t *testing.T) *search.Service {
	t.Helper()
	sch, err := e.cfg.BuildSchema()
	require.NoError(t, err)
	scfg, err := e.cfg.SearchConfig(nil)
	require.NoError(t, err)
	st, err := embedded.New(embedded.Options{Dir: e.dataDir, KeywordSuffix: e.cfg.Search.KeywordSuffix})
	require.NoError(t, err)
	svc, err := search.New(st, sch, scfg)
	require.NoError(t, err)
	return svc
}

func products() []backend.Document {
	return []backend.Document{
		{ID: "1", Source: map[string]any{
			"title": map[string]any{"en": "Red shoe", "de": "Roter Schuh"}, "tag": "shoe", "price": 10.0,
			"created":  "2024-03-01T23:30:00Z",
			"variants": []any{map[string]any{"sku": "R-42", "stock": 3}, map[string]any{"sku": "R-43", "stock": 0}},
		}},
		{ID: "2", Source: map[string]any{
			"title": map[string]any{"en": "Blue hat"}, "tag": "hat", "price": 25.0,
			"created":  "2024-03-02T10:00:00Z",
			"variants": []any{map[string]any{"sku": "B-1", "stock": 7}},
		}},
		{ID: "3", Source: map[string]any{
			"title": map[string]any{"en": "Green shoe"}, "tag": "shoe", "price": 40.0,
		}},
	}
}

func ids(t *testing.T, res *search.Result) []string {
	t.Helper()
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.ID
	}
	sort.Strings(out)
	return out
}

func TestIntegration_BuildReopenAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	e := newEnv(t)
	ctx := context.Background()

	// Given an alias built from the project config
	svc := e.open(t)
	gen, err := svc.CreateAndInitializeIndex(ctx, "products", false, index.SliceSource(products()), nil, index.ModeBlocking)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Version)
	require.NoError(t, svc.Close())

	// When the store is opened again from disk
	svc = e.open(t)
	t.Cleanup(func() { _ = svc.Close() })

	live, err := svc.ResolveAlias(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, gen.Index, live)

	// Then structured, nested, day and text searches all work
	tests := []struct {
		name string
		expr expr.Expr
		want []string
	}{
		{"keyword", expr.Eq("tag", "shoe"), []string{"1", "3"}},
		{"nested", expr.Eq("variants.sku", "B-1"), []string{"2"}},
		{"day in configured zone", expr.OnDay("created", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)), []string{"1", "2"}},
		{"text", expr.Text("hat"), []string{"2"}},
		{"negated range", expr.Not(expr.Between("price", 20.0, nil)), []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Search(ctx, "products", tt.expr, search.Params{Locale: "en"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, res))
		})
	}
}

// gatedSource blocks after `after` documents until released.
type gatedSource struct {
	docs    []backend.Document
	after   int
	reached chan struct{}
	release chan struct{}
}

func (s *gatedSource) Count(context.Context) (int, error) { return len(s.docs), nil }

func (s *gatedSource) Each(ctx context.Context, fn func(backend.Document) error) error {
	for i, d := range s.docs {
		if i == s.after {
			close(s.reached)
			select {
			case <-s.release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func TestIntegration_RebuildCapturesConcurrentWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	e := newEnv(t)
	ctx := context.Background()
	svc := e.open(t)
	t.Cleanup(func() { _ = svc.Close() })

	_, err := svc.CreateAndInitializeIndex(ctx, "products", false, index.SliceSource(products()), nil, index.ModeBlocking)
	require.NoError(t, err)
	old, err := svc.ResolveAlias(ctx, "products")
	require.NoError(t, err)

	// Given a rebuild in the background, paused after two documents
	src := &gatedSource{docs: products(), after: 2, reached: make(chan struct{}), release: make(chan struct{})}
	out := &bytes.Buffer{}
	renderer := ui.NewRenderer(ui.NewConfig(out, ui.WithForcePlain(true), ui.WithNoColor(true)))
	builder := async.NewBackgroundBuilder(async.BuilderConfig{
		StateDir: e.cfg.Index.StateDir,
		Alias:    "products",
		Listener: renderer,
	})
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		_, err := svc.CreateAndInitializeIndex(ctx, "products", true, src, l, index.ModeBlocking)
		return err
	}
	builder.Start(ctx)
	<-src.reached

	// When documents are written and removed meanwhile
	require.NoError(t, svc.AddToIndex(ctx, "products", backend.Document{ID: "9", Source: map[string]any{"tag": "shoe", "price": 1.0}}, index.ModeBlocking))
	require.NoError(t, svc.RemoveFromIndex(ctx, "products", "1", index.ModeBlocking))

	// Then the live generation already serves them
	res, err := svc.Search(ctx, "products", expr.Eq("tag", "shoe"), search.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "9"}, ids(t, res))
	assert.True(t, builder.IsRunning())
	_, marked := async.IncompleteBuild(e.cfg.Index.StateDir, "products")
	assert.True(t, marked)

	// And after the cutover the new generation has them too
	close(src.release)
	require.NoError(t, builder.Wait())
	snap := builder.Progress().Snapshot()
	renderer.Complete(snap)

	live, err := svc.ResolveAlias(ctx, "products")
	require.NoError(t, err)
	assert.NotEqual(t, old, live)
	assert.Equal(t, live, snap.Index)
	assert.Equal(t, string(async.StatusReady), snap.Status)
	assert.GreaterOrEqual(t, snap.DeltaReplayed, 2)

	res, err = svc.Search(ctx, "products", expr.Eq("tag", "shoe"), search.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "9"}, ids(t, res))

	_, marked = async.IncompleteBuild(e.cfg.Index.StateDir, "products")
	assert.False(t, marked, "marker removed after success")
	exists, err := svc.Manager().Connector().IndexExists(ctx, old)
	require.NoError(t, err)
	assert.False(t, exists, "old generation retired")
	assert.Contains(t, out.String(), "Complete: products -> "+live)
}

func TestIntegration_ConcurrentSearches_NoRace(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	e := newEnv(t)
	ctx := context.Background()
	svc := e.open(t)
	t.Cleanup(func() { _ = svc.Close() })
	_, err := svc.CreateAndInitializeIndex(ctx, "products", false, index.SliceSource(products()), nil, index.ModeBlocking)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Search(ctx, "products", expr.Eq("tag", "shoe"), search.Params{
				Sort:         []compiler.SortSpec{{Field: "price"}},
				Aggregations: []compiler.AggregationSpec{{Field: "tag"}},
			})
			errs <- err
		}()
		go func(i int) {
			defer wg.Done()
			errs <- svc.AddToIndex(ctx, "products", backend.Document{
				ID: "c" + string(rune('a'+i)), Source: map[string]any{"tag": "bulk"},
			}, index.ModeAsync)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

type failingSource struct{}

func (failingSource) Count(context.Context) (int, error) { return 3, nil }

func (failingSource) Each(_ context.Context, fn func(backend.Document) error) error {
	if err := fn(products()[0]); err != nil {
		return err
	}
	return errors.New("source connection reset")
}

func TestIntegration_AsyncBuilderFailureReported(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.open(t)
	t.Cleanup(func() { _ = svc.Close() })

	// Given a source that breaks off after one document
	builder := async.NewBackgroundBuilder(async.BuilderConfig{StateDir: e.cfg.Index.StateDir, Alias: "products"})
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		_, err := svc.CreateAndInitializeIndex(ctx, "products", false, failingSource{}, l, index.ModeBlocking)
		return err
	}

	// When it runs
	builder.Start(ctx)
	err := builder.Wait()

	// Then the failure is reported and nothing is left behind
	require.Error(t, err)
	snap := builder.Progress().Snapshot()
	assert.Equal(t, string(async.StatusError), snap.Status)
	assert.NotEmpty(t, snap.ErrorMessage)
	_, err = svc.ResolveAlias(ctx, "products")
	assert.Error(t, err)
	_, marked := async.IncompleteBuild(e.cfg.Index.StateDir, "products")
	assert.False(t, marked)
}
