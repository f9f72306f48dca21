package embedded

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

// Index writes one document. Changes are searchable on return in either
// mode.
func (st *Store) Index(ctx context.Context, index string, doc backend.Document, _ backend.Mode) error {
	p, err := st.writable(ctx, "index", index)
	if err != nil {
		return err
	}
	body, err := prepare(doc.Source)
	if err != nil {
		return err
	}
	if err := p.idx.Index(doc.ID, body); err != nil {
		return errors.BackendError("index", err)
	}
	return nil
}

// Delete removes one document. A missing document is not an error.
func (st *Store) Delete(ctx context.Context, index, id string, _ backend.Mode) error {
	p, err := st.writable(ctx, "delete", index)
	if err != nil {
		return err
	}
	if err := p.idx.Delete(id); err != nil {
		return errors.BackendError("delete", err)
	}
	return nil
}

// Bulk applies ops in one bleve batch. Documents that cannot be encoded
// fail individually; a failing batch fails the call.
func (st *Store) Bulk(ctx context.Context, index string, ops []backend.BulkOp, _ backend.Mode) (*backend.BulkResult, error) {
	p, err := st.writable(ctx, "bulk", index)
	if err != nil {
		return nil, err
	}
	result := &backend.BulkResult{Items: make([]backend.ItemResult, 0, len(ops))}
	if len(ops) == 0 {
		return result, nil
	}

	batch := p.idx.NewBatch()
	for _, op := range ops {
		item := backend.ItemResult{ID: op.ID, OK: true, Status: http.StatusOK}
		switch op.Action {
		case backend.BulkDelete:
			batch.Delete(op.ID)
		default:
			body, err := prepare(op.Source)
			if err == nil {
				err = batch.Index(op.ID, body)
			}
			if err != nil {
				item = backend.ItemResult{ID: op.ID, Status: http.StatusBadRequest, Error: err.Error()}
			} else {
				item.Status = http.StatusCreated
			}
		}
		result.Items = append(result.Items, item)
	}
	if err := p.idx.Batch(batch); err != nil {
		return nil, errors.BackendError("bulk", err)
	}
	return result, nil
}

// prepare adds the stored source and the list of present paths to a
// document.
func prepare(src map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, errors.ValidationError("document cannot be encoded", err)
	}
	out := make(map[string]any, len(src)+2)
	for k, v := range src {
		out[k] = v
	}
	out[sourceField] = string(raw)

	present := map[string]struct{}{}
	collectPaths("", src, present)
	paths := make([]string, 0, len(present))
	for p := range present {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out[presentField] = paths
	return out, nil
}

// collectPaths records every path with a non-null value. Empty arrays
// count as absent.
func collectPaths(prefix string, v any, into map[string]struct{}) {
	switch t := v.(type) {
	case nil:
	case map[string]any:
		if prefix != "" && len(t) > 0 {
			into[prefix] = struct{}{}
		}
		for k, child := range t {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			collectPaths(path, child, into)
		}
	case []any:
		for _, el := range t {
			collectPaths(prefix, el, into)
		}
	case []map[string]any:
		for _, el := range t {
			collectPaths(prefix, el, into)
		}
	case []string:
		if len(t) > 0 {
			into[prefix] = struct{}{}
		}
	default:
		into[prefix] = struct{}{}
	}
}
