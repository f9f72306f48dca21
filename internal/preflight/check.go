package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/config"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status as its name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// probeIndex is looked up to see whether the backend answers. It need not
// exist.
const probeIndex = "searchkit-preflight-probe"

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
	conn    backend.Connector
	timeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithConnector enables the backend check against conn.
func WithConnector(conn backend.Connector, timeout time.Duration) Option {
	return func(c *Checker) {
		c.conn = conn
		c.timeout = timeout
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:  os.Stdout,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check that applies to cfg.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	results := []CheckResult{
		c.CheckSchema(cfg),
		c.CheckWritePermissions("state_dir", cfg.Index.StateDir),
	}
	if cfg.Backend.Kind == config.BackendEmbedded && cfg.Backend.DataDir != "" {
		results = append(results,
			c.CheckWritePermissions("data_dir", cfg.Backend.DataDir),
			c.CheckDiskSpace(cfg.Backend.DataDir),
			c.CheckFileDescriptors())
	}
	if c.conn != nil {
		results = append(results, c.CheckBackend(ctx, cfg.Backend.Kind))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "searchkit system check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, failures []string
	for _, r := range results {
		if r.IsCritical() {
			failures = append(failures, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printList(c.output, "error(s)", failures)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(items), label)
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", it)
	}
}

// CheckSchema builds the schema described by cfg.
func (c *Checker) CheckSchema(cfg *config.Config) CheckResult {
	result := CheckResult{Name: "schema", Required: true}

	sch, err := cfg.BuildSchema()
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d fields, version %d", sch.Len(), sch.Version)
	return result
}

// CheckWritePermissions checks that dir exists or can be created and
// accepts new files.
func (c *Checker) CheckWritePermissions(name, dir string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: true,
		Details:  dir,
	}
	if dir == "" {
		result.Status = StatusWarn
		result.Message = "not configured"
		return result
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create directory: %v", err)
		return result
	}

	testFile := filepath.Join(dir, ".searchkit-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "writable"
	return result
}

// CheckBackend asks the backend whether a probe index exists. Any answer
// counts as reachable.
func (c *Checker) CheckBackend(ctx context.Context, kind string) CheckResult {
	result := CheckResult{Name: "backend", Required: true}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if _, err := c.conn.IndexExists(ctx, probeIndex); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s not reachable", kind)
		result.Details = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s reachable in %s", kind, time.Since(start).Round(time.Millisecond))
	return result
}
