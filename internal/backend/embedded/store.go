// Package embedded is an in-process backend built on bleve. It keeps
// indexes in memory or under a directory and maintains its own alias
// table, so the index lifecycle can run without a cluster.
package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

const (
	aliasFile = "aliases.json"
	typesKey  = "searchkit_types"
)

// Options configures a Store.
type Options struct {
	// Dir holds one bleve index per subdirectory plus the alias table.
	// Empty keeps everything in memory.
	Dir string

	// KeywordSuffix names the untokenized sibling of text fields.
	KeywordSuffix string
}

type physIndex struct {
	name  string
	idx   bleve.Index
	types map[string]schema.Type
}

// Store implements backend.Connector on bleve.
type Store struct {
	mu            sync.RWMutex
	dir           string
	keywordSuffix string
	indexes       map[string]*physIndex
	aliases       map[string]map[string]struct{}
	closed        bool
}

var _ backend.Connector = (*Store)(nil)

// New opens a Store. With a directory, existing indexes and aliases are
// loaded from it.
func New(opts Options) (*Store, error) {
	st := &Store{
		dir:           opts.Dir,
		keywordSuffix: opts.KeywordSuffix,
		indexes:       map[string]*physIndex{},
		aliases:       map[string]map[string]struct{}{},
	}
	if st.keywordSuffix == "" {
		st.keywordSuffix = "keyword"
	}
	if st.dir == "" {
		return st, nil
	}

	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("cannot create index directory %s", st.dir), err)
	}
	if err := st.load(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func (st *Store) load() error {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return errors.BackendError("open store", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		idx, err := bleve.Open(filepath.Join(st.dir, e.Name()))
		if err != nil {
			slog.Warn("embedded_index_open_failed",
				slog.String("index", e.Name()),
				slog.String("error", err.Error()))
			continue
		}
		p := &physIndex{name: e.Name(), idx: idx, types: map[string]schema.Type{}}
		if raw, err := idx.GetInternal([]byte(typesKey)); err == nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, &p.types)
		}
		st.indexes[p.name] = p
	}

	raw, err := os.ReadFile(filepath.Join(st.dir, aliasFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.BackendError("open store", err)
	}
	var table map[string][]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return errors.New(errors.ErrCodeBackendFailure, "alias table is corrupt", err)
	}
	for alias, names := range table {
		set := map[string]struct{}{}
		for _, n := range names {
			if _, ok := st.indexes[n]; ok {
				set[n] = struct{}{}
			}
		}
		if len(set) > 0 {
			st.aliases[alias] = set
		}
	}
	return nil
}

// Close closes every index.
func (st *Store) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil
	}
	st.closed = true
	var first error
	for _, p := range st.indexes {
		if err := p.idx.Close(); err != nil && first == nil {
			first = errors.BackendError("close", err)
		}
	}
	return first
}

// CreateIndex creates a physical index. mapping must come from
// Store.Mapping or be nil for a dynamic mapping.
func (st *Store) CreateIndex(ctx context.Context, name string, _ backend.IndexSettings, m any) error {
	if err := ctx.Err(); err != nil {
		return errors.BackendError("create index", err)
	}
	var mm *Mapping
	switch v := m.(type) {
	case nil:
	case *Mapping:
		mm = v
	default:
		return errors.Newf(errors.ErrCodeInvalidSchema, "embedded backend cannot use mapping of type %T", m)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	if _, ok := st.indexes[name]; ok {
		return errors.Newf(errors.ErrCodeBackendFailure, "index %q already exists", name)
	}
	if _, ok := st.aliases[name]; ok {
		return errors.Newf(errors.ErrCodeBackendFailure, "an alias named %q already exists", name)
	}

	im := bleve.NewIndexMapping()
	types := map[string]schema.Type{}
	if mm != nil {
		im = mm.index
		types = mm.Types
	}

	var (
		idx bleve.Index
		err error
	)
	if st.dir == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.New(filepath.Join(st.dir, name), im)
	}
	if err != nil {
		return errors.BackendError("create index", err)
	}
	idx.SetName(name)

	if raw, err := json.Marshal(types); err == nil {
		_ = idx.SetInternal([]byte(typesKey), raw)
	}
	st.indexes[name] = &physIndex{name: name, idx: idx, types: types}
	slog.Debug("embedded_index_created", slog.String("index", name))
	return nil
}

// DeleteIndex removes an index and every alias entry pointing at it. A
// missing index is not an error.
func (st *Store) DeleteIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errors.BackendError("delete index", err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}
	p, ok := st.indexes[name]
	if !ok {
		return nil
	}
	delete(st.indexes, name)
	for alias, set := range st.aliases {
		delete(set, name)
		if len(set) == 0 {
			delete(st.aliases, alias)
		}
	}
	if err := p.idx.Close(); err != nil {
		return errors.BackendError("delete index", err)
	}
	if st.dir != "" {
		if err := os.RemoveAll(filepath.Join(st.dir, name)); err != nil {
			return errors.BackendError("delete index", err)
		}
	}
	return st.saveAliases()
}

// IndexExists reports whether name is an index or an alias.
func (st *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.BackendError("index exists", err)
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, isIndex := st.indexes[name]
	_, isAlias := st.aliases[name]
	return isIndex || isAlias, nil
}

// GetAlias returns the indexes behind alias, sorted.
func (st *Store) GetAlias(ctx context.Context, alias string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.BackendError("get alias", err)
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return sortedNames(st.aliases[alias]), nil
}

// UpdateAliases validates all actions and then applies them together.
// Removing an alias that is not set fails the whole call.
func (st *Store) UpdateAliases(ctx context.Context, actions []backend.AliasAction) error {
	if err := ctx.Err(); err != nil {
		return errors.BackendError("update aliases", err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkOpen(); err != nil {
		return err
	}

	next := make(map[string]map[string]struct{}, len(st.aliases))
	for alias, set := range st.aliases {
		cp := make(map[string]struct{}, len(set))
		for n := range set {
			cp[n] = struct{}{}
		}
		next[alias] = cp
	}

	for _, a := range actions {
		if _, ok := st.indexes[a.Index]; !ok {
			return errors.Newf(errors.ErrCodeBackendFailure, "update aliases: index %q not found", a.Index)
		}
		switch a.Kind {
		case backend.AliasAdd:
			if _, clash := st.indexes[a.Alias]; clash {
				return errors.Newf(errors.ErrCodeBackendFailure, "update aliases: %q is an index", a.Alias)
			}
			if next[a.Alias] == nil {
				next[a.Alias] = map[string]struct{}{}
			}
			next[a.Alias][a.Index] = struct{}{}
		case backend.AliasRemove:
			if _, ok := next[a.Alias][a.Index]; !ok {
				return errors.New(errors.ErrCodeAliasNotFound,
					fmt.Sprintf("update aliases: alias %q is not set on %q", a.Alias, a.Index), nil)
			}
			delete(next[a.Alias], a.Index)
			if len(next[a.Alias]) == 0 {
				delete(next, a.Alias)
			}
		}
	}

	prev := st.aliases
	st.aliases = next
	if err := st.saveAliases(); err != nil {
		st.aliases = prev
		return err
	}
	return nil
}

// Refresh is a no-op; bleve makes changes searchable when the call that
// wrote them returns.
func (st *Store) Refresh(ctx context.Context, index string) error {
	_, err := st.resolve(ctx, "refresh", index)
	return err
}

func (st *Store) checkOpen() error {
	if st.closed {
		return errors.Newf(errors.ErrCodeBackendUnavailable, "embedded store is closed")
	}
	return nil
}

// resolve returns the indexes behind name, which is an index or an alias.
func (st *Store) resolve(ctx context.Context, op, name string) ([]*physIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.BackendError(op, err)
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if err := st.checkOpen(); err != nil {
		return nil, err
	}
	if p, ok := st.indexes[name]; ok {
		return []*physIndex{p}, nil
	}
	set, ok := st.aliases[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeAliasNotFound, "%s: no such index or alias %q", op, name)
	}
	out := make([]*physIndex, 0, len(set))
	for _, n := range sortedNames(set) {
		out = append(out, st.indexes[n])
	}
	return out, nil
}

// writable returns the single index writes to name go to.
func (st *Store) writable(ctx context.Context, op, name string) (*physIndex, error) {
	ps, err := st.resolve(ctx, op, name)
	if err != nil {
		return nil, err
	}
	if len(ps) != 1 {
		return nil, errors.New(errors.ErrCodeAliasAmbiguous,
			fmt.Sprintf("%s: alias %q points to %d indexes", op, name, len(ps)), nil)
	}
	return ps[0], nil
}

// saveAliases persists the alias table. Callers hold st.mu.
func (st *Store) saveAliases() error {
	if st.dir == "" {
		return nil
	}
	table := make(map[string][]string, len(st.aliases))
	for alias, set := range st.aliases {
		table[alias] = sortedNames(set)
	}
	raw, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return errors.InternalError("encoding alias table failed", err)
	}
	tmp := filepath.Join(st.dir, aliasFile+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.BackendError("save aliases", err)
	}
	if err := os.Rename(tmp, filepath.Join(st.dir, aliasFile)); err != nil {
		return errors.BackendError("save aliases", err)
	}
	return nil
}

func sortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
