package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/errors"
)

func TestDoctor(t *testing.T) {
	cfgPath, _ := setup(t)

	// Given a valid embedded setup, every required check passes
	out, err := run(t, "doctor", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "[PASS] schema")
	assert.Contains(t, out, "[PASS] backend")

	// And the JSON report carries the same checks
	out, err = run(t, "doctor", "-c", cfgPath, "--json")
	require.NoError(t, err, out)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)
	assert.NotEmpty(t, report.Checks)
}

func TestDoctor_UnreachableBackend(t *testing.T) {
	// Given an elasticsearch backend nobody listens on
	path := filepath.Join(t.TempDir(), "es.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`backend:
  kind: elasticsearch
  addresses: [http://127.0.0.1:1]
  timeout: 2s
index:
  state_dir: `+filepath.Join(t.TempDir(), "state")+`
schema:
  fields:
    - {name: tag, type: keyword}
`), 0o600))

	// When the checks run
	out, err := run(t, "doctor", "-c", path)

	// Then the backend check fails the command
	assert.Contains(t, out, "[FAIL] backend")
	assert.Equal(t, errors.ErrCodeBackendUnavailable, errors.GetCode(err))
}
