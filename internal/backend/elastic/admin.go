package elastic

import (
	"context"
	"net/http"
	"sort"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Aman-CERP/searchkit/internal/backend"
)

// CreateIndex creates name with settings and mapping in one call.
func (c *Client) CreateIndex(ctx context.Context, name string, settings backend.IndexSettings, mapping any) error {
	body := map[string]any{"settings": indexSettings(settings)}
	if mapping != nil {
		body["mappings"] = mapping
	}
	r, err := jsonBody(body)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "create index", esapi.IndicesCreateRequest{Index: name, Body: r}, nil)
	return err
}

func indexSettings(s backend.IndexSettings) map[string]any {
	out := map[string]any{}
	if s.Shards > 0 {
		out["number_of_shards"] = s.Shards
	}
	if s.Replicas != nil {
		out["number_of_replicas"] = *s.Replicas
	}
	if s.MaxResultWindow > 0 {
		out["max_result_window"] = s.MaxResultWindow
	}
	if s.RefreshInterval != "" {
		out["refresh_interval"] = s.RefreshInterval
	}
	return map[string]any{"index": out}
}

// DeleteIndex removes name. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	_, err := c.do(ctx, "delete index", esapi.IndicesDeleteRequest{Index: []string{name}}, nil, http.StatusNotFound)
	return err
}

// IndexExists reports whether a physical index or alias named name exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	status, err := c.do(ctx, "index exists", esapi.IndicesExistsRequest{Index: []string{name}}, nil,
		http.StatusOK, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// GetAlias returns the indexes alias points to, sorted.
func (c *Client) GetAlias(ctx context.Context, alias string) ([]string, error) {
	var resp map[string]struct {
		Aliases map[string]any `json:"aliases"`
	}
	status, err := c.do(ctx, "get alias", esapi.IndicesGetAliasRequest{Name: []string{alias}}, &resp, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	indexes := make([]string, 0, len(resp))
	for name := range resp {
		indexes = append(indexes, name)
	}
	sort.Strings(indexes)
	return indexes, nil
}

// UpdateAliases applies actions in a single _aliases request, which
// Elasticsearch executes atomically.
func (c *Client) UpdateAliases(ctx context.Context, actions []backend.AliasAction) error {
	if len(actions) == 0 {
		return nil
	}
	list := make([]any, len(actions))
	for i, a := range actions {
		kind := "add"
		if a.Kind == backend.AliasRemove {
			kind = "remove"
		}
		list[i] = map[string]any{kind: map[string]any{"index": a.Index, "alias": a.Alias}}
	}
	r, err := jsonBody(map[string]any{"actions": list})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "update aliases", esapi.IndicesUpdateAliasesRequest{Body: r}, nil)
	return err
}

// Refresh makes all changes to index searchable.
func (c *Client) Refresh(ctx context.Context, index string) error {
	_, err := c.do(ctx, "refresh", esapi.IndicesRefreshRequest{Index: []string{index}}, nil)
	return err
}
