package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// isolate points the user config at an empty directory and clears the
// environment overrides the tests touch.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range []string{
		"SEARCHKIT_BACKEND", "SEARCHKIT_ES_ADDRESSES", "SEARCHKIT_TIME_ZONE",
		"SEARCHKIT_TIMEOUT", "SEARCHKIT_LOG_LEVEL", "SEARCHKIT_DEFAULT_SIZE", "SEARCHKIT_STRICT_BULK",
	} {
		t.Setenv(k, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, BackendEmbedded, cfg.Backend.Kind)
	assert.Equal(t, "1m", cfg.Backend.Timeout)
	assert.Equal(t, "UTC", cfg.Search.TimeZone)
	assert.Equal(t, "keyword", cfg.Search.KeywordSuffix)
	assert.Equal(t, 10, cfg.Search.DefaultSize)
	assert.True(t, cfg.Search.QueryString.AutoBracket)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	xdg := isolate(t)
	project := t.TempDir()

	// Given a user config, a project config and an environment override
	writeFile(t, filepath.Join(xdg, "searchkit", "config.yaml"), `
backend:
  timeout: 30s
search:
  default_size: 20
  max_size: 500
`)
	writeFile(t, filepath.Join(project, ProjectFile), `
search:
  default_size: 25
presets:
  products:
    shards: 3
    batch_size: 200
`)
	t.Setenv("SEARCHKIT_TIME_ZONE", "Europe/Zurich")

	// When loading
	cfg, err := Load(project)

	// Then later sources win and untouched keys keep their values
	require.NoError(t, err)
	assert.Equal(t, "30s", cfg.Backend.Timeout)
	assert.Equal(t, 25, cfg.Search.DefaultSize)
	assert.Equal(t, 500, cfg.Search.MaxSize)
	assert.Equal(t, "Europe/Zurich", cfg.Search.TimeZone)
	assert.Equal(t, "keyword", cfg.Search.KeywordSuffix)
	assert.Equal(t, 3, cfg.Presets["products"].Shards)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "bad yaml", content: "search: [unclosed"},
		{name: "bad level", content: "logging:\n  level: loud\n"},
		{name: "bad size env", env: map[string]string{"SEARCHKIT_DEFAULT_SIZE": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			if tt.content != "" {
				writeFile(t, filepath.Join(dir, ProjectFile), tt.content)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(dir)

			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetCode(err))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "solr" }, true},
		{"elasticsearch without addresses", func(c *Config) { c.Backend.Kind = BackendElasticsearch }, true},
		{"elasticsearch with addresses", func(c *Config) {
			c.Backend.Kind = BackendElasticsearch
			c.Backend.Addresses = []string{"http://localhost:9200"}
		}, false},
		{"api key and username", func(c *Config) {
			c.Backend.Kind = BackendElasticsearch
			c.Backend.Addresses = []string{"http://localhost:9200"}
			c.Backend.APIKey = "k"
			c.Backend.Username = "u"
		}, true},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = "0s" }, true},
		{"unknown time zone", func(c *Config) { c.Search.TimeZone = "Mars/Base" }, true},
		{"bad operator", func(c *Config) { c.Search.DefaultOperator = "XOR" }, true},
		{"default above max", func(c *Config) { c.Search.DefaultSize = 20; c.Search.MaxSize = 10 }, true},
		{"long escape", func(c *Config) { c.Search.QueryString.Escape = "ab" }, true},
		{"negative preset", func(c *Config) { c.Presets = map[string]PresetConfig{"p": {Shards: -1}} }, true},
		{"negative replicas", func(c *Config) {
			r := -1
			c.Presets = map[string]PresetConfig{"p": {Replicas: &r}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SearchConfig(t *testing.T) {
	// Given a configuration with a zone, presets and no escape character
	cfg := NewConfig()
	cfg.Search.TimeZone = "Europe/Berlin"
	cfg.Search.QueryString.Escape = ""
	cfg.Search.DefaultOperator = "or"
	replicas := 1
	cfg.Presets = map[string]PresetConfig{
		DefaultPreset: {Replicas: &replicas},
		"products":    {Shards: 2, RefreshInterval: "5s", Workers: 8},
	}

	// When assembling the search configuration
	sc, err := cfg.SearchConfig(nil)

	// Then every section is carried over
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", sc.Location.String())
	assert.Equal(t, "OR", sc.Compiler.DefaultOperator)
	assert.Equal(t, rune(0), sc.Compiler.QueryString.EscapeChar)
	assert.Equal(t, time.Minute, sc.Index.Timeout)
	p := sc.Index.Presets.Preset("products")
	assert.Equal(t, 2, p.Settings.Shards)
	assert.Equal(t, "5s", p.Settings.RefreshInterval)
	assert.Equal(t, 8, p.Workers)
	require.NotNil(t, sc.Index.Presets.Preset("orders").Settings.Replicas)
	assert.Equal(t, 1, *sc.Index.Presets.Preset("orders").Settings.Replicas)
	assert.Nil(t, p.Settings.Replicas, "replicas left unset")
}

func TestConfig_BuildSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFile)
	writeFile(t, path, `
schema:
  version: 3
  languages: [de, en]
  fields:
    - name: title
      type: text
      multilingual: true
    - name: variants
      type: nested
      fields:
        - name: sku
          type: keyword
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	sch, err := cfg.BuildSchema()

	require.NoError(t, err)
	assert.Equal(t, 3, sch.Version)
	f, ok := sch.Lookup("variants.sku")
	require.True(t, ok)
	assert.Equal(t, schema.TypeKeyword, f.Type)

	_, err = NewConfig().BuildSchema()
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestPresetStore_Fallback(t *testing.T) {
	store := NewPresetStore(map[string]PresetConfig{DefaultPreset: {Shards: 1}, "a": {Shards: 5}})

	assert.Equal(t, 5, store.Preset("a").Settings.Shards)
	assert.Equal(t, 1, store.Preset("b").Settings.Shards)

	store.Replace(nil)
	assert.Equal(t, 0, store.Preset("a").Settings.Shards)
	assert.Empty(t, store.Aliases())
}

func TestPresetWatcher_ReloadsOnChange(t *testing.T) {
	// Given a watched config file
	path := filepath.Join(t.TempDir(), ProjectFile)
	writeFile(t, path, "presets:\n  products:\n    shards: 1\n")
	presets, err := ReadPresets(path)
	require.NoError(t, err)
	store := NewPresetStore(presets)

	w, err := NewPresetWatcher(path, store, 10*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// When the file is rewritten
	writeFile(t, path, "presets:\n  products:\n    shards: 4\n")

	// Then the store serves the new preset
	assert.Eventually(t, func() bool {
		return store.Preset("products").Settings.Shards == 4
	}, 2*time.Second, 10*time.Millisecond)

	// And an invalid edit keeps the previous presets
	reloads := w.Reloads()
	writeFile(t, path, "presets:\n  products:\n    shards: -2\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, store.Preset("products").Settings.Shards)
	assert.Equal(t, reloads, w.Reloads())
}

func TestBackup_PrunesAndRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Given no file, nothing is backed up
	got, err := Backup(path, base)
	require.NoError(t, err)
	assert.Empty(t, got)

	// When backing up five versions
	for i := 0; i < 5; i++ {
		writeFile(t, path, "version: "+string(rune('1'+i))+"\n")
		_, err := Backup(path, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	// Then only the newest three remain, newest first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "version: 5\n", string(data))

	// And restoring the oldest brings back its content
	require.NoError(t, Restore(path, backups[2], base.Add(time.Minute)))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 3\n", string(data))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "version: 1\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindProjectRoot(nested)

	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(root)
	gotReal, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotReal)
}
