package elastic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Aman-CERP/searchkit/internal/errors"
)

// errorCause mirrors the nested error object of an Elasticsearch response.
type errorCause struct {
	Type      string       `json:"type"`
	Reason    string       `json:"reason"`
	RootCause []errorCause `json:"root_cause"`
	CausedBy  *errorCause  `json:"caused_by"`
}

type errorResponse struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// syntaxErrorTypes are the error types Elasticsearch uses when it rejects
// the query itself rather than failing to run it.
var syntaxErrorTypes = map[string]bool{
	"query_shard_exception":     true,
	"parse_exception":           true,
	"parsing_exception":         true,
	"x_content_parse_exception": true,
}

// responseError classifies an error response. Query rejections become
// ErrCodeQuerySyntax, overload and unavailability ErrCodeBackendUnavailable.
func responseError(op string, status int, body io.Reader) error {
	raw, _ := io.ReadAll(body)

	var resp errorResponse
	var cause errorCause
	if err := json.Unmarshal(raw, &resp); err == nil && len(resp.Error) > 0 {
		if err := json.Unmarshal(resp.Error, &cause); err != nil {
			// Some endpoints report the error as a plain string.
			var s string
			_ = json.Unmarshal(resp.Error, &s)
			cause.Reason = s
		}
	}

	if syntax := findSyntaxError(&cause); syntax != nil {
		return errors.New(errors.ErrCodeQuerySyntax,
			fmt.Sprintf("%s: query rejected: %s", op, syntax.Reason), nil).
			WithDetail("operation", op).
			WithDetail("type", syntax.Type).
			WithSuggestion("Check the query string syntax")
	}

	reason := cause.Reason
	if reason == "" {
		reason = http.StatusText(status)
	}
	code := errors.ErrCodeBackendFailure
	switch {
	case cause.Type == "index_not_found_exception":
		code = errors.ErrCodeAliasNotFound
	case status == http.StatusTooManyRequests || status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		code = errors.ErrCodeBackendUnavailable
	}
	e := errors.New(code, fmt.Sprintf("%s failed with status %d: %s", op, status, reason), nil).
		WithDetail("operation", op).
		WithDetail("status", fmt.Sprint(status))
	if cause.Type != "" {
		e = e.WithDetail("type", cause.Type)
	}
	return e
}

// findSyntaxError walks root causes and the caused_by chain.
func findSyntaxError(c *errorCause) *errorCause {
	if c == nil {
		return nil
	}
	for i := range c.RootCause {
		if found := findSyntaxError(&c.RootCause[i]); found != nil {
			return found
		}
	}
	if syntaxErrorTypes[c.Type] {
		return c
	}
	return findSyntaxError(c.CausedBy)
}
