// Package elastic is the Elasticsearch connector, built on the official
// go-elasticsearch client.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// Config configures the connection.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string

	// KeywordSuffix names the untokenized sibling of text fields in the
	// emitted mapping.
	KeywordSuffix string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client implements backend.Connector against an Elasticsearch cluster.
type Client struct {
	es      *elasticsearch.Client
	emitter *MappingEmitter
}

var _ backend.Connector = (*Client)(nil)

// New connects to the cluster described by cfg. No request is sent until
// the first call.
func New(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "elasticsearch: no addresses configured")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "elasticsearch client creation failed", err)
	}
	return &Client{es: es, emitter: NewMappingEmitter(cfg.KeywordSuffix)}, nil
}

// Mapping emits the Elasticsearch mapping for s.
func (c *Client) Mapping(s *schema.Schema) (any, error) {
	return c.emitter.Mapping(s)
}

// Close is a no-op; the HTTP transport owns its connections.
func (c *Client) Close() error {
	return nil
}

// do runs req and decodes a successful JSON body into out, which may be
// nil. Status codes listed in accept count as success with no body decoded.
func (c *Client) do(ctx context.Context, op string, req esapi.Request, out any, accept ...int) (int, error) {
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return 0, errors.BackendError(op, err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(res.Body)

	for _, code := range accept {
		if res.StatusCode == code {
			return res.StatusCode, nil
		}
	}
	if res.IsError() {
		err := responseError(op, res.StatusCode, res.Body)
		slog.Debug("elasticsearch request failed",
			slog.String("operation", op),
			slog.Int("status", res.StatusCode),
			slog.String("error", err.Error()))
		return res.StatusCode, err
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res.StatusCode, decodeError(op, err)
		}
	}
	return res.StatusCode, nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.InternalError("encoding request body failed", err)
	}
	return bytes.NewReader(b), nil
}

func refreshParam(mode backend.Mode) string {
	if mode == backend.ModeBlocking {
		return "wait_for"
	}
	return "false"
}

func decodeError(what string, err error) error {
	return errors.New(errors.ErrCodeBackendFailure, what+": decoding response failed", err)
}
