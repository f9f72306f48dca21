package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/config"
	"github.com/Aman-CERP/searchkit/internal/errors"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ProjectFile)

	// Given no file, init writes the example config
	out, err := run(t, "config", "init", "-c", path)
	require.NoError(t, err, out)
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	sch, err := cfg.BuildSchema()
	require.NoError(t, err)
	assert.Equal(t, 4, sch.Len())

	// When run again without --force it refuses
	_, err = run(t, "config", "init", "-c", path)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))

	// And with --force the old file is backed up
	out, err = run(t, "config", "init", "-c", path, "--force")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Backed up")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ProjectFile)
	_, err := run(t, "config", "init", "-c", path)
	require.NoError(t, err)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = run(t, "config", "init", "-c", path, "--force")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	out, err := run(t, "config", "restore", "-c", path)
	require.NoError(t, err, out)

	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(restored))
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`backend:
  kind: elasticsearch
  addresses: [http://localhost:9200]
  username: elastic
  password: hunter2
`), 0o600))

	out, err := run(t, "config", "show", "-c", path)

	require.NoError(t, err, out)
	assert.Contains(t, out, "username: elastic")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}

func TestConfigValidate(t *testing.T) {
	cfgPath, _ := setup(t)

	out, err := run(t, "config", "validate", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Configuration OK")
	assert.Contains(t, out, "4 fields")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("search:\n  default_operator: XOR\n"), 0o600))
	_, err = run(t, "config", "validate", "-c", bad)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("version: 1\n"), 0o600))
	_, err = run(t, "config", "validate", "-c", empty)
	assert.True(t, strings.Contains(err.Error(), "schema.fields"))
}

func TestConfigInit_User(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, err := run(t, "config", "init", "--user")

	require.NoError(t, err, out)
	assert.True(t, config.UserConfigExists())
	assert.Contains(t, out, config.GetUserConfigPath())
}
