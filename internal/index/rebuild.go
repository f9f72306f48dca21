package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

// emitter serializes events from population workers.
type emitter struct {
	mu    sync.Mutex
	alias string
	index string
	l     ProgressListener
}

func (e *emitter) emit(ev Event) {
	ev.Alias = e.alias
	if ev.Index == "" {
		ev.Index = e.index
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.l.OnEvent(ev)
}

// build carries one run of CreateAndInitializeIndex.
type build struct {
	m       *Manager
	st      *aliasState
	gen     *Generation
	old     string
	src     DocumentSource
	preset  Preset
	mode    Mode
	events  *emitter
	created bool

	// replayed is set once a PhaseProcessDelta event went out.
	replayed bool

	processed atomic.Int64
	failed    atomic.Int64
	total     int
}

// CreateAndInitializeIndex builds a new generation for alias from src and
// points the alias at it.
//
// Without an existing alias the index is created, populated and aliased.
// With one, rebuildIfExists must be set, otherwise ErrCodeAliasExists is
// returned before anything is changed. A rebuild keeps the old generation
// live and writable; writes made meanwhile are captured and replayed onto
// the new generation before a single alias update switches readers over.
// The old generation is deleted only after the switch succeeded.
//
// Events are delivered to listener in phase order, ending with PhaseEnd or
// PhaseError. mode applies to the population and replay writes.
func (m *Manager) CreateAndInitializeIndex(ctx context.Context, alias string, rebuildIfExists bool,
	src DocumentSource, listener ProgressListener, mode Mode) (*Generation, error) {
	if listener == nil {
		listener = nopListener{}
	}
	if src == nil {
		src = SliceSource(nil)
	}
	st := m.alias(alias)

	st.mu.Lock()
	if st.state.busy() {
		st.mu.Unlock()
		return nil, rebuildInProgress(alias)
	}
	prev := st.state
	st.state = StateCreating
	st.mu.Unlock()

	release := func() {
		st.mu.Lock()
		st.state = prev
		st.mu.Unlock()
	}

	existing, err := m.getAlias(ctx, alias)
	if err != nil {
		release()
		return nil, err
	}
	switch {
	case len(existing) > 1:
		release()
		return nil, errors.New(errors.ErrCodeAliasAmbiguous,
			fmt.Sprintf("alias %q points to %d indexes", alias, len(existing)), nil)
	case len(existing) == 1 && !rebuildIfExists:
		release()
		return nil, errors.New(errors.ErrCodeAliasExists, fmt.Sprintf("alias %q already exists", alias), nil).
			WithDetail("index", existing[0]).
			WithSuggestion("Pass the rebuild flag to build a new generation")
	}

	if m.opts.StateDir != "" {
		lock := NewRebuildLock(m.opts.StateDir, alias)
		ok, err := lock.TryLock()
		if err != nil {
			release()
			return nil, errors.InternalError("rebuild lock failed", err)
		}
		if !ok {
			release()
			return nil, rebuildInProgress(alias)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Warn("rebuild_lock_release_failed", slog.String("alias", alias), slog.String("error", err.Error()))
			}
		}()
	}

	version := m.targetVersion(st)
	b := &build{
		m:      m,
		st:     st,
		src:    src,
		preset: m.preset(alias),
		mode:   mode,
		gen: &Generation{
			Alias:     alias,
			Index:     generationName(alias, version),
			Version:   version,
			CreatedAt: m.opts.Now(),
		},
	}
	b.events = &emitter{alias: alias, index: b.gen.Index, l: listener}
	if len(existing) == 1 {
		b.old = existing[0]
	}
	return b.run(ctx)
}

func (m *Manager) preset(alias string) Preset {
	p := m.opts.Presets.Preset(alias)
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	return p
}

func (b *build) rebuilding() bool { return b.old != "" }

func (b *build) setState(s State) {
	b.st.mu.Lock()
	b.st.state = s
	b.gen.State = s
	b.gen.StateName = s.String()
	b.st.mu.Unlock()
}

func (b *build) run(ctx context.Context) (*Generation, error) {
	alias := b.gen.Alias
	slog.Info("index_build_started",
		slog.String("alias", alias),
		slog.String("index", b.gen.Index),
		slog.Bool("rebuild", b.rebuilding()))

	// Capture starts under the write lock so every write either finished
	// before or is captured.
	b.st.writes.Lock()
	b.st.mu.Lock()
	b.st.building = b.gen
	if b.rebuilding() {
		b.st.delta = NewDeltaBuffer()
		if b.st.live == nil || b.st.live.Index != b.old {
			b.st.live = &Generation{Alias: alias, Index: b.old, Version: VersionOf(b.old), State: StateLive, StateName: StateLive.String()}
		}
	}
	b.st.mu.Unlock()
	b.st.writes.Unlock()
	if b.rebuilding() {
		b.setState(StateRebuilding)
	}

	b.events.emit(Event{Phase: PhaseCreateIndex})
	mapping, err := b.m.conn.Mapping(b.m.opts.Schema)
	if err != nil {
		return b.fail(ctx, err)
	}
	if err := b.m.call(ctx, "create index", func(c context.Context) error {
		return b.m.conn.CreateIndex(c, b.gen.Index, b.preset.Settings, mapping)
	}); err != nil {
		return b.fail(ctx, err)
	}
	b.created = true

	if !b.rebuilding() {
		b.setState(StatePopulating)
	}
	if err := b.populate(ctx); err != nil {
		return b.fail(ctx, err)
	}

	if b.rebuilding() {
		if err := b.replay(ctx, maxReplayPasses); err != nil {
			return b.fail(ctx, err)
		}
	}
	if !b.replayed {
		b.events.emit(Event{Phase: PhaseProcessDelta})
	}
	if err := b.m.call(ctx, "refresh", func(c context.Context) error {
		return b.m.conn.Refresh(c, b.gen.Index)
	}); err != nil {
		return b.fail(ctx, err)
	}

	switch outcome, err := b.switchAlias(ctx); outcome {
	case switchNotApplied:
		return b.fail(ctx, err)
	case switchUnknown:
		return b.abandon(ctx, err, false)
	}

	if b.rebuilding() {
		b.setState(StateRetiring)
		b.events.emit(Event{Phase: PhaseDeleteOldIndex, Index: b.old})
		if err := b.m.call(context.WithoutCancel(ctx), "delete index", func(c context.Context) error {
			return b.m.conn.DeleteIndex(c, b.old)
		}); err != nil {
			// The alias already serves the new generation; only report.
			b.setState(StateLive)
			slog.Warn("old_generation_delete_failed",
				slog.String("alias", alias),
				slog.String("index", b.old),
				errors.FormatForLog(err))
			b.events.emit(Event{Phase: PhaseError, Index: b.old, Err: err})
			return b.gen, err
		}
	}

	b.setState(StateLive)
	b.events.emit(Event{Phase: PhaseEnd, Processed: int(b.processed.Load()), Total: b.total, Failed: int(b.failed.Load())})
	slog.Info("index_build_finished",
		slog.String("alias", alias),
		slog.String("index", b.gen.Index),
		slog.Int64("documents", b.processed.Load()),
		slog.Int64("failed", b.failed.Load()))
	return b.gen, nil
}

// fail abandons a build that has not switched the alias: the new
// generation is deleted and the alias state restored.
func (b *build) fail(ctx context.Context, err error) (*Generation, error) {
	return b.abandon(ctx, err, b.created)
}

// abandon ends a build with PhaseError. The new generation is deleted only
// when deleteNew is set.
func (b *build) abandon(ctx context.Context, err error, deleteNew bool) (*Generation, error) {
	alias := b.gen.Alias
	if deleteNew {
		if derr := b.m.call(context.WithoutCancel(ctx), "delete index", func(c context.Context) error {
			return b.m.conn.DeleteIndex(c, b.gen.Index)
		}); derr != nil {
			slog.Warn("abandoned_generation_delete_failed",
				slog.String("alias", alias),
				slog.String("index", b.gen.Index),
				errors.FormatForLog(derr))
		}
	}

	b.st.writes.Lock()
	b.st.mu.Lock()
	b.st.delta = nil
	b.st.building = nil
	if b.rebuilding() {
		b.st.state = StateLive
	} else {
		b.st.state = StateNoIndex
		b.st.live = nil
	}
	b.st.mu.Unlock()
	b.st.writes.Unlock()

	slog.Error("index_build_failed",
		slog.String("alias", alias),
		slog.String("index", b.gen.Index),
		errors.FormatForLog(err))
	b.events.emit(Event{Phase: PhaseError, Processed: int(b.processed.Load()), Total: b.total, Err: err})
	return nil, err
}

// populate streams the source into the new generation in batches, with
// at most preset.Workers bulk calls in flight.
func (b *build) populate(ctx context.Context) error {
	src := b.src
	total, err := src.Count(ctx)
	if err != nil {
		total = -1
	}
	b.total = total
	b.events.emit(Event{Phase: PhaseAddDocuments, Total: total})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.preset.Workers)

	flush := func(ops []backend.BulkOp) {
		g.Go(func() error {
			res, err := b.m.bulk(gctx, b.gen.Index, ops, b.mode)
			if err != nil {
				return err
			}
			failed := res.Failed()
			for _, it := range failed {
				slog.Warn("document_rejected",
					slog.String("index", b.gen.Index),
					slog.String("id", it.ID),
					slog.Int("status", it.Status),
					slog.String("error", it.Error))
			}
			b.failed.Add(int64(len(failed)))
			n := b.processed.Add(int64(len(ops)))
			b.events.emit(Event{Phase: PhaseAddDocuments, Processed: int(n), Total: total, Failed: int(b.failed.Load())})
			return nil
		})
	}

	batch := make([]backend.BulkOp, 0, b.preset.BatchSize)
	err = src.Each(gctx, func(d backend.Document) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		batch = append(batch, backend.BulkOp{Action: backend.BulkIndex, ID: d.ID, Source: d.Source})
		if len(batch) >= b.preset.BatchSize {
			flush(batch)
			batch = make([]backend.BulkOp, 0, b.preset.BatchSize)
		}
		return nil
	})
	if err == nil && len(batch) > 0 {
		flush(batch)
	}
	if werr := g.Wait(); werr != nil {
		return werr
	}
	if err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "reading documents failed", err)
	}
	return nil
}

// replay drains captured writes onto the new generation until a drain
// comes back empty or passes run out.
func (b *build) replay(ctx context.Context, passes int) error {
	for i := 0; i < passes; i++ {
		ops := b.st.delta.Drain()
		if len(ops) == 0 {
			return nil
		}
		if err := b.applyDelta(ctx, ops); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) applyDelta(ctx context.Context, ops []backend.BulkOp) error {
	res, err := b.m.bulk(ctx, b.gen.Index, ops, b.mode)
	if err != nil {
		return err
	}
	failed := res.Failed()
	b.failed.Add(int64(len(failed)))
	b.replayed = true
	b.events.emit(Event{Phase: PhaseProcessDelta, Processed: len(ops) - len(failed), Total: len(ops), Failed: len(failed)})
	slog.Debug("delta_replayed",
		slog.String("index", b.gen.Index),
		slog.Int("operations", len(ops)),
		slog.Int("failed", len(failed)))
	return nil
}

type switchOutcome int

const (
	switchApplied switchOutcome = iota
	switchNotApplied

	// switchUnknown means the alias update failed and its effect could not
	// be read back. Both generations are kept.
	switchUnknown
)

// switchAlias replays the last captured writes and repoints the alias
// while writers are held off.
func (b *build) switchAlias(ctx context.Context) (switchOutcome, error) {
	b.st.writes.Lock()
	defer b.st.writes.Unlock()

	if b.rebuilding() {
		if ops := b.st.delta.Drain(); len(ops) > 0 {
			if err := b.applyDelta(ctx, ops); err != nil {
				return switchNotApplied, err
			}
			if err := b.m.call(ctx, "refresh", func(c context.Context) error {
				return b.m.conn.Refresh(c, b.gen.Index)
			}); err != nil {
				return switchNotApplied, err
			}
		}
		b.setState(StateCuttingOver)
	} else {
		b.setState(StateSettingAlias)
	}

	b.events.emit(Event{Phase: PhaseSetAlias})
	actions := []backend.AliasAction{{Kind: backend.AliasAdd, Index: b.gen.Index, Alias: b.gen.Alias}}
	if b.rebuilding() {
		actions = append([]backend.AliasAction{{Kind: backend.AliasRemove, Index: b.old, Alias: b.gen.Alias}}, actions...)
	}
	if err := b.m.call(ctx, "update aliases", func(c context.Context) error {
		return b.m.conn.UpdateAliases(c, actions)
	}); err != nil {
		if outcome := b.verifySwitch(ctx, err); outcome != switchApplied {
			return outcome, err
		}
	}

	b.st.mu.Lock()
	b.st.live = b.gen
	b.st.building = nil
	b.st.delta = nil
	b.st.mu.Unlock()
	slog.Info("alias_switched",
		slog.String("alias", b.gen.Alias),
		slog.String("index", b.gen.Index),
		slog.String("previous", b.old))
	return switchApplied, nil
}

// verifySwitch reads the alias back after a failed update. A timed out
// update may still have been applied by the backend.
func (b *build) verifySwitch(ctx context.Context, updateErr error) switchOutcome {
	alias := b.gen.Alias
	names, err := b.m.getAlias(context.WithoutCancel(ctx), alias)
	if err != nil {
		slog.Error("alias_switch_unverified",
			slog.String("alias", alias),
			slog.String("index", b.gen.Index),
			slog.String("previous", b.old),
			errors.FormatForLog(updateErr),
			slog.String("verify_error", err.Error()))
		return switchUnknown
	}

	switch {
	case len(names) == 1 && names[0] == b.gen.Index:
		slog.Warn("alias_switch_applied_despite_error",
			slog.String("alias", alias),
			slog.String("index", b.gen.Index),
			slog.String("error", updateErr.Error()))
		return switchApplied
	case b.rebuilding() && len(names) == 1 && names[0] == b.old:
		return switchNotApplied
	case !b.rebuilding() && len(names) == 0:
		return switchNotApplied
	}
	slog.Error("alias_switch_unverified",
		slog.String("alias", alias),
		slog.String("index", b.gen.Index),
		slog.String("previous", b.old),
		slog.Any("current", names),
		slog.String("error", updateErr.Error()))
	return switchUnknown
}
