package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

// Index writes one document.
func (c *Client) Index(ctx context.Context, index string, doc backend.Document, mode backend.Mode) error {
	body, err := jsonBody(doc.Source)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "index", esapi.IndexRequest{
		Index:      index,
		DocumentID: doc.ID,
		Body:       body,
		Refresh:    refreshParam(mode),
	}, nil)
	return err
}

// Delete removes one document. A missing document is not an error.
func (c *Client) Delete(ctx context.Context, index, id string, mode backend.Mode) error {
	_, err := c.do(ctx, "delete", esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
		Refresh:    refreshParam(mode),
	}, nil, http.StatusNotFound)
	return err
}

type bulkItem struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

// Bulk sends ops as one NDJSON request and reports every item. Deleting a
// missing document counts as success.
func (c *Client) Bulk(ctx context.Context, index string, ops []backend.BulkOp, mode backend.Mode) (*backend.BulkResult, error) {
	if len(ops) == 0 {
		return &backend.BulkResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		meta := map[string]any{op.Action.String(): map[string]any{"_id": op.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, errors.InternalError("encoding bulk metadata failed", err)
		}
		if op.Action == backend.BulkIndex {
			if err := enc.Encode(op.Source); err != nil {
				return nil, errors.InternalError("encoding bulk document failed", err).WithDetail("id", op.ID)
			}
		}
	}

	var resp bulkResponse
	if _, err := c.do(ctx, "bulk", esapi.BulkRequest{
		Index:   index,
		Body:    &buf,
		Refresh: refreshParam(mode),
	}, &resp); err != nil {
		return nil, err
	}

	result := &backend.BulkResult{Items: make([]backend.ItemResult, 0, len(resp.Items))}
	for i, entry := range resp.Items {
		for action, item := range entry {
			id := item.ID
			if id == "" && i < len(ops) {
				id = ops[i].ID
			}
			ok := item.Status >= 200 && item.Status < 300
			if action == "delete" && item.Status == http.StatusNotFound {
				ok = true
			}
			it := backend.ItemResult{ID: id, OK: ok, Status: item.Status}
			if !ok {
				it.Error = itemError(item.Error)
			}
			result.Items = append(result.Items, it)
		}
	}
	return result, nil
}

func itemError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var cause errorCause
	if err := json.Unmarshal(raw, &cause); err == nil && cause.Reason != "" {
		return cause.Type + ": " + cause.Reason
	}
	return string(raw)
}
