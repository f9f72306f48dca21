package index

import (
	"context"

	"github.com/Aman-CERP/searchkit/internal/backend"
)

// AddToIndex indexes doc through alias. During a rebuild the write goes
// to the live generation and is captured for the new one.
func (m *Manager) AddToIndex(ctx context.Context, alias string, doc backend.Document, mode Mode) error {
	return m.writeOne(ctx, alias, backend.BulkOp{Action: backend.BulkIndex, ID: doc.ID, Source: doc.Source}, mode)
}

// RemoveFromIndex deletes the document id through alias. It fails with
// ErrCodeAliasAmbiguous, before touching anything, when alias points to
// more than one index.
func (m *Manager) RemoveFromIndex(ctx context.Context, alias, id string, mode Mode) error {
	return m.writeOne(ctx, alias, backend.BulkOp{Action: backend.BulkDelete, ID: id}, mode)
}

// BulkAddToIndex indexes docs in one bulk call and reports each document.
func (m *Manager) BulkAddToIndex(ctx context.Context, alias string, docs []backend.Document, mode Mode) (*backend.BulkResult, error) {
	ops := make([]backend.BulkOp, len(docs))
	for i, d := range docs {
		ops[i] = backend.BulkOp{Action: backend.BulkIndex, ID: d.ID, Source: d.Source}
	}
	return m.writeBulk(ctx, alias, ops, mode)
}

// BulkRemoveFromIndex deletes ids in one bulk call.
func (m *Manager) BulkRemoveFromIndex(ctx context.Context, alias string, ids []string, mode Mode) (*backend.BulkResult, error) {
	ops := make([]backend.BulkOp, len(ids))
	for i, id := range ids {
		ops[i] = backend.BulkOp{Action: backend.BulkDelete, ID: id}
	}
	return m.writeBulk(ctx, alias, ops, mode)
}

// writeTarget returns the physical index writes to alias go to and the
// capture buffer, if a rebuild is running. The caller holds st.writes.
func (m *Manager) writeTarget(ctx context.Context, st *aliasState, alias string) (string, *DeltaBuffer, error) {
	st.mu.Lock()
	if st.delta != nil && st.live != nil {
		target, delta := st.live.Index, st.delta
		st.mu.Unlock()
		return target, delta, nil
	}
	st.mu.Unlock()

	target, err := m.ResolveAlias(ctx, alias)
	if err != nil {
		return "", nil, err
	}
	st.mu.Lock()
	if st.state == StateNoIndex {
		st.state = StateLive
	}
	if st.live == nil || st.live.Index != target {
		st.live = &Generation{Alias: alias, Index: target, Version: VersionOf(target), State: StateLive, StateName: StateLive.String()}
	}
	st.mu.Unlock()
	return target, nil, nil
}

func (m *Manager) writeOne(ctx context.Context, alias string, op backend.BulkOp, mode Mode) error {
	st := m.alias(alias)
	st.writes.RLock()
	defer st.writes.RUnlock()

	target, delta, err := m.writeTarget(ctx, st, alias)
	if err != nil {
		return err
	}
	if op.Action == backend.BulkDelete {
		err = m.call(ctx, "delete", func(c context.Context) error {
			return m.conn.Delete(c, target, op.ID, mode)
		})
	} else {
		err = m.call(ctx, "index", func(c context.Context) error {
			return m.conn.Index(c, target, backend.Document{ID: op.ID, Source: op.Source}, mode)
		})
	}
	if err != nil {
		return err
	}
	if delta != nil {
		delta.Capture(op)
	}
	return nil
}

func (m *Manager) writeBulk(ctx context.Context, alias string, ops []backend.BulkOp, mode Mode) (*backend.BulkResult, error) {
	st := m.alias(alias)
	st.writes.RLock()
	defer st.writes.RUnlock()

	target, delta, err := m.writeTarget(ctx, st, alias)
	if err != nil {
		return nil, err
	}
	res, err := m.bulk(ctx, target, ops, mode)
	if err != nil {
		return nil, err
	}
	if delta != nil {
		ok := res.Successes()
		for _, op := range ops {
			if ok[op.ID] {
				delta.Capture(op)
			}
		}
	}
	return res, nil
}

func (m *Manager) bulk(ctx context.Context, index string, ops []backend.BulkOp, mode Mode) (*backend.BulkResult, error) {
	var res *backend.BulkResult
	err := m.call(ctx, "bulk", func(c context.Context) error {
		var err error
		res, err = m.conn.Bulk(c, index, ops, mode)
		return err
	})
	return res, err
}
