package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/backend/embedded"
	"github.com/Aman-CERP/searchkit/internal/config"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{
			name:     "required pass is not critical",
			result:   CheckResult{Status: StatusPass, Required: true},
			expected: false,
		},
		{
			name:     "required fail is critical",
			result:   CheckResult{Status: StatusFail, Required: true},
			expected: true,
		},
		{
			name:     "optional fail is not critical",
			result:   CheckResult{Status: StatusFail, Required: false},
			expected: false,
		},
		{
			name:     "required warn is not critical",
			result:   CheckResult{Status: StatusWarn, Required: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(
		WithVerbose(true),
		WithOutput(buf),
	)

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
	assert.Nil(t, checker.conn)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{
			name:     "no results",
			results:  []CheckResult{},
			expected: false,
		},
		{
			name: "all pass",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusPass, Required: true},
			},
			expected: false,
		},
		{
			name: "warning only",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn, Required: false},
			},
			expected: false,
		},
		{
			name: "optional failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: false},
			},
			expected: false,
		},
		{
			name: "required failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: true},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_CreatesDirectory(t *testing.T) {
	// Given: a directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "state", "nested")

	// When: checking write permissions
	result := New().CheckWritePermissions("state_dir", dir)

	// Then: it is created and passes
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "state_dir", result.Name)
	assert.True(t, result.Required)
	assert.DirExists(t, dir)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	// Given: a read-only directory (skip on CI/root)
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	tmpDir := t.TempDir()
	readOnlyDir := filepath.Join(tmpDir, "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0555))
	defer func() { _ = os.Chmod(readOnlyDir, 0755) }() // Restore for cleanup

	// When: checking write permissions
	result := New().CheckWritePermissions("data_dir", readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace_MissingPathUsesParent(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "not", "yet"))

	assert.NotEqual(t, StatusFail, result.Status, result.Message)
	assert.Contains(t, result.Message, "free")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Backend.DataDir = filepath.Join(dir, "data")
	cfg.Index.StateDir = filepath.Join(dir, "state")
	cfg.Schema.Fields = []schema.FieldSpec{{Name: "tag", Type: schema.TypeKeyword}}
	return cfg
}

// downConnector fails every admin call.
type downConnector struct {
	backend.Connector
}

func (downConnector) IndexExists(context.Context, string) (bool, error) {
	return false, errors.New(errors.ErrCodeBackendUnavailable, "connection refused", nil)
}

func TestChecker_RunAll(t *testing.T) {
	st, err := embedded.New(embedded.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tests := []struct {
		name     string
		conn     backend.Connector
		mutate   func(*config.Config)
		wantFail string
	}{
		{name: "healthy embedded", conn: st},
		{name: "without connector"},
		{name: "backend down", conn: downConnector{st}, wantFail: "backend"},
		{
			name:     "empty schema",
			conn:     st,
			mutate:   func(c *config.Config) { c.Schema.Fields = nil },
			wantFail: "schema",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a configuration and optionally a backend
			cfg := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			var opts []Option
			if tt.conn != nil {
				opts = append(opts, WithConnector(tt.conn, time.Second))
			}
			checker := New(opts...)

			// When: running all checks
			results := checker.RunAll(context.Background(), cfg)

			// Then: every applicable check is present
			names := map[string]CheckStatus{}
			for _, r := range results {
				names[r.Name] = r.Status
			}
			for _, n := range []string{"schema", "state_dir", "data_dir", "disk_space", "file_descriptors"} {
				assert.Contains(t, names, n)
			}
			_, hasBackend := names["backend"]
			assert.Equal(t, tt.conn != nil, hasBackend)

			if tt.wantFail == "" {
				assert.False(t, checker.HasCriticalFailures(results), "%+v", results)
				return
			}
			assert.Equal(t, StatusFail, names[tt.wantFail])
			assert.True(t, checker.HasCriticalFailures(results))
		})
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "file_descriptors", Status: StatusWarn, Message: "256 (minimum: 1024)"},
		{Name: "backend", Status: StatusFail, Message: "elasticsearch not reachable", Details: "dial tcp", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output contains formatted results
	output := buf.String()
	assert.Contains(t, output, "[PASS] disk_space")
	assert.Contains(t, output, "[WARN]")
	assert.Contains(t, output, "[FAIL] backend")
	assert.Contains(t, output, "dial tcp")
	assert.Contains(t, output, "Status: FAILED")
	assert.Contains(t, output, "1 error(s)")
	assert.Contains(t, output, "1 warning(s)")
}

func TestCheckStatus_MarshalText(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "schema", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{
			name: "all pass",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusPass},
			},
			expected: "ready",
		},
		{
			name: "with warnings",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusWarn},
			},
			expected: "ready_with_warnings",
		},
		{
			name: "with critical failure",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusFail, Required: true},
			},
			expected: "failed",
		},
		{
			name: "with optional failure",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusFail, Required: false},
			},
			expected: "ready_with_warnings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}
