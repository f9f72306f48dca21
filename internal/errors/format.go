package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI renders err for a terminal: the message, a hint when one
// is known, the details in key order and the code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se := asSearchErrorOrInternal(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	for _, k := range sortedKeys(se.Details) {
		fmt.Fprintf(&sb, "  %s: %s\n", k, se.Details[k])
	}
	if se.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", se.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", se.Code)
	return sb.String()
}

// jsonError is the machine-readable form printed by commands run with
// --json.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON encodes err as {"error": {...}}. Errors outside this package
// are reported as internal.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	se := asSearchErrorOrInternal(err)
	je := jsonError{
		Code:       se.Code,
		Message:    se.Message,
		Category:   string(se.Category),
		Details:    se.Details,
		Suggestion: se.Suggestion,
		Retryable:  se.Retryable,
	}
	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}
	return json.Marshal(struct {
		Error jsonError `json:"error"`
	}{je})
}

// FormatForLog returns err as one "error" attribute. A SearchError
// becomes a group with its code and category next to the message.
func FormatForLog(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	se, ok := asSearchError(err)
	if !ok {
		return slog.String("error", err.Error())
	}

	attrs := []any{
		slog.String("code", se.Code),
		slog.String("message", se.Message),
		slog.String("category", string(se.Category)),
		slog.Bool("retryable", se.Retryable),
	}
	if se.Cause != nil {
		attrs = append(attrs, slog.String("cause", se.Cause.Error()))
	}
	if len(se.Details) > 0 {
		details := make([]any, 0, len(se.Details))
		for _, k := range sortedKeys(se.Details) {
			details = append(details, slog.String(k, se.Details[k]))
		}
		attrs = append(attrs, slog.Group("details", details...))
	}
	return slog.Group("error", attrs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asSearchErrorOrInternal(err error) *SearchError {
	if se, ok := asSearchError(err); ok {
		return se
	}
	return Wrap(ErrCodeInternal, err)
}

func asSearchError(err error) (*SearchError, bool) {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}
