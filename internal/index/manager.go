package index

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

const (
	// DefaultTimeout bounds every backend call made by the manager.
	DefaultTimeout = time.Minute

	DefaultBatchSize = 500
	DefaultWorkers   = 4

	// maxReplayPasses bounds delta replay before the cutover lock is
	// taken; whatever is left is replayed under the lock.
	maxReplayPasses = 8
)

// Options configures a Manager.
type Options struct {
	Schema *schema.Schema

	// Presets supplies per-alias settings. Nil uses defaults.
	Presets PresetProvider

	// StateDir holds the cross-process rebuild lock files. Empty disables
	// cross-process locking.
	StateDir string

	Timeout time.Duration
	Now     func() time.Time
}

// aliasState is the in-process record of one alias.
type aliasState struct {
	// writes is held shared by every write and exclusively by the cutover,
	// so no write lands between the last delta drain and the alias switch.
	writes sync.RWMutex

	mu       sync.Mutex
	state    State
	live     *Generation
	building *Generation
	delta    *DeltaBuffer
	version  int
}

// Manager runs the index lifecycle of any number of aliases on one
// connector. It is safe for concurrent use.
type Manager struct {
	conn backend.Connector
	opts Options

	mu      sync.Mutex
	aliases map[string]*aliasState
}

// NewManager returns a Manager for conn.
func NewManager(conn backend.Connector, opts Options) (*Manager, error) {
	if conn == nil {
		return nil, errors.ConfigError("index manager needs a backend connector", nil)
	}
	if opts.Schema == nil {
		return nil, errors.ConfigError("index manager needs a schema", nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Presets == nil {
		opts.Presets = PresetFunc(func(string) Preset { return Preset{} })
	}
	return &Manager{conn: conn, opts: opts, aliases: map[string]*aliasState{}}, nil
}

func (m *Manager) alias(name string) *aliasState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.aliases[name]
	if !ok {
		st = &aliasState{}
		m.aliases[name] = st
	}
	return st
}

// call runs fn under the manager timeout. An expired timeout becomes
// ErrCodeBackendTimeout even when the backend reported something else.
func (m *Manager) call(ctx context.Context, op string, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	err := fn(cctx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && cctx.Err() == context.DeadlineExceeded && errors.GetCode(err) != errors.ErrCodeBackendTimeout {
		return errors.New(errors.ErrCodeBackendTimeout,
			fmt.Sprintf("%s timed out after %s", op, m.opts.Timeout), err).WithDetail("operation", op)
	}
	if errors.GetCode(err) == "" {
		return errors.BackendError(op, err)
	}
	return err
}

// Call runs fn under the manager timeout with the same error mapping the
// manager applies to its own backend calls.
func (m *Manager) Call(ctx context.Context, op string, fn func(context.Context) error) error {
	return m.call(ctx, op, fn)
}

// Connector returns the backend the manager runs on.
func (m *Manager) Connector() backend.Connector { return m.conn }

func (m *Manager) getAlias(ctx context.Context, alias string) ([]string, error) {
	var names []string
	err := m.call(ctx, "get alias", func(c context.Context) error {
		var err error
		names, err = m.conn.GetAlias(c, alias)
		return err
	})
	return names, err
}

// ResolveAlias returns the one physical index behind alias.
func (m *Manager) ResolveAlias(ctx context.Context, alias string) (string, error) {
	names, err := m.getAlias(ctx, alias)
	if err != nil {
		return "", err
	}
	switch len(names) {
	case 0:
		return "", errors.New(errors.ErrCodeAliasNotFound, fmt.Sprintf("alias %q does not exist", alias), nil).
			WithSuggestion("Create the index first with 'searchkit index create'")
	case 1:
		return names[0], nil
	}
	return "", errors.New(errors.ErrCodeAliasAmbiguous,
		fmt.Sprintf("alias %q points to %d indexes", alias, len(names)), nil).
		WithDetail("indexes", fmt.Sprint(names))
}

// State returns the in-process lifecycle state of alias.
func (m *Manager) State(alias string) State {
	st := m.alias(alias)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// SetVersion sets the schema version recorded on the next generation of
// alias. Zero reverts to the schema's own version.
func (m *Manager) SetVersion(alias string, version int) {
	st := m.alias(alias)
	st.mu.Lock()
	st.version = version
	st.mu.Unlock()
}

func (m *Manager) targetVersion(st *aliasState) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.version > 0 {
		return st.version
	}
	return m.opts.Schema.Version
}

// Generations returns the live generation of alias and, during a
// rebuild, the one being built.
func (m *Manager) Generations(ctx context.Context, alias string) ([]Generation, error) {
	names, err := m.getAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	st := m.alias(alias)
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]Generation, 0, len(names)+1)
	for _, n := range names {
		g := Generation{Alias: alias, Index: n, Version: VersionOf(n), State: StateLive}
		if st.live != nil && st.live.Index == n {
			g.CreatedAt = st.live.CreatedAt
		}
		g.StateName = g.State.String()
		out = append(out, g)
	}
	if st.building != nil {
		g := *st.building
		g.State = st.state
		g.StateName = g.State.String()
		out = append(out, g)
	}
	return out, nil
}

// NeedsRebuild reports whether the live generation of alias was built for
// an older schema version than the one the next build would use.
func (m *Manager) NeedsRebuild(ctx context.Context, alias string) (bool, error) {
	live, err := m.ResolveAlias(ctx, alias)
	if err != nil {
		return false, err
	}
	return VersionOf(live) < m.targetVersion(m.alias(alias)), nil
}

var generationPattern = regexp.MustCompile(`-v(\d+)-[0-9a-f]{8}$`)

// generationName builds "<alias>-v<version>-<8 hex>".
func generationName(alias string, version int) string {
	return fmt.Sprintf("%s-v%d-%s", alias, version, uuid.NewString()[:8])
}

// VersionOf extracts the schema version from a generation name, or 0 when
// the name was not produced by the manager.
func VersionOf(index string) int {
	m := generationPattern.FindStringSubmatch(index)
	if m == nil {
		return 0
	}
	v, _ := strconv.Atoi(m[1])
	return v
}

// DeleteAlias removes alias and deletes every index behind it.
func (m *Manager) DeleteAlias(ctx context.Context, alias string) error {
	st := m.alias(alias)
	st.mu.Lock()
	if st.state.busy() {
		st.mu.Unlock()
		return rebuildInProgress(alias)
	}
	st.mu.Unlock()

	st.writes.Lock()
	defer st.writes.Unlock()

	names, err := m.getAlias(ctx, alias)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New(errors.ErrCodeAliasNotFound, fmt.Sprintf("alias %q does not exist", alias), nil)
	}
	actions := make([]backend.AliasAction, len(names))
	for i, n := range names {
		actions[i] = backend.AliasAction{Kind: backend.AliasRemove, Index: n, Alias: alias}
	}
	if err := m.call(ctx, "update aliases", func(c context.Context) error {
		return m.conn.UpdateAliases(c, actions)
	}); err != nil {
		return err
	}
	for _, n := range names {
		if err := m.call(ctx, "delete index", func(c context.Context) error {
			return m.conn.DeleteIndex(c, n)
		}); err != nil {
			return err
		}
	}

	st.mu.Lock()
	st.state = StateNoIndex
	st.live = nil
	st.mu.Unlock()
	slog.Info("alias_deleted", slog.String("alias", alias), slog.Int("indexes", len(names)))
	return nil
}

func rebuildInProgress(alias string) error {
	return errors.New(errors.ErrCodeRebuildInProgress,
		fmt.Sprintf("an index build for alias %q is already running", alias), nil)
}
