package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/telemetry"
)

const testConfig = `backend:
  kind: embedded
  data_dir: {{dir}}/data
search:
  default_fields: [title]
index:
  state_dir: {{dir}}/state
presets:
  default:
    batch_size: 2
    workers: 2
schema:
  version: 1
  languages: [en, de]
  fields:
    - {name: title, type: text, multilingual: true, sortable: true}
    - {name: tag, type: keyword, aggregatable: true}
    - {name: price, type: double, sortable: true, aggregatable: true}
    - {name: created, type: date}
`

const testDocs = `{"id":"1","title":{"en":"Red shoe","de":"Roter Schuh"},"tag":"shoe","price":10,"created":"2024-03-01T10:00:00Z"}
{"id":"2","title":{"en":"Blue hat"},"tag":"hat","price":25,"created":"2024-03-02T10:00:00Z"}
{"id":"3","title":{"en":"Green shoe"},"tag":"shoe","price":40}
`

// setup writes a config and document file into a temp directory and
// returns the config path.
func setup(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "searchkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.ReplaceAll(testConfig, "{{dir}}", dir)), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.ndjson"), []byte(testDocs), 0o600))
	return cfgPath, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append(args, "--no-color"))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func buildProducts(t *testing.T, cfgPath, dir string) {
	t.Helper()
	out, err := run(t, "index", "create", "products", "-c", cfgPath,
		"--source", filepath.Join(dir, "docs.ndjson"), "--plain")
	require.NoError(t, err, out)
	require.Contains(t, out, "Complete: products -> products-v1-")
}

func TestIndexCreateAndSearch(t *testing.T) {
	// Given a built alias
	cfgPath, dir := setup(t)
	buildProducts(t, cfgPath, dir)

	tests := []struct {
		name  string
		args  []string
		total int64
		ids   []string
	}{
		{"filter", []string{"--filter", "tag=shoe", "--sort", "price"}, 2, []string{"1", "3"}},
		{"range descending", []string{"--filter", "price=20..50", "--sort", "-price"}, 2, []string{"3", "2"}},
		{"free text", []string{"hat", "--locale", "en"}, 1, []string{"2"}},
		{"day filter", []string{"--filter", "created>=2024-03-02"}, 1, []string{"2"}},
		{"paging", []string{"--sort", "price", "--from", "1", "--size", "1"}, 3, []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When searching with JSON output
			args := append([]string{"search", "products", "-c", cfgPath, "--json"}, tt.args...)
			out, err := run(t, args...)

			// Then the hits come back in order
			require.NoError(t, err, out)
			var res resultJSON
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.total, res.Total)
			ids := make([]string, len(res.Hits))
			for i, h := range res.Hits {
				ids[i] = h.ID
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	// And every search was recorded for stats
	out, err := run(t, "stats", "-c", cfgPath, "--json")
	require.NoError(t, err)
	var snap telemetry.QueryMetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, int64(len(tests)), snap.TotalQueries)
	assert.Equal(t, int64(len(tests)), snap.AliasCounts["products"])
}

func TestSearch_Facets(t *testing.T) {
	cfgPath, dir := setup(t)
	buildProducts(t, cfgPath, dir)

	out, err := run(t, "search", "products", "-c", cfgPath, "--facet", "tag", "--size", "1")

	require.NoError(t, err, out)
	assert.Contains(t, out, "3 hits")
	assert.Regexp(t, `shoe\s+2`, out)
	assert.Regexp(t, `hat\s+1`, out)
}

func TestSearch_SizeZeroReturnsFacetsOnly(t *testing.T) {
	cfgPath, dir := setup(t)
	buildProducts(t, cfgPath, dir)

	out, err := run(t, "search", "products", "-c", cfgPath, "--facet", "tag", "--size", "0", "--json")

	require.NoError(t, err, out)
	var res resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(3), res.Total)
	assert.Empty(t, res.Hits)
	require.Len(t, res.Facets, 1)
	assert.Equal(t, "tag", res.Facets[0].Name)
}

func TestSearch_Explain(t *testing.T) {
	cfgPath, _ := setup(t)

	// explain compiles without touching the backend
	out, err := run(t, "search", "products", "-c", cfgPath, "--explain",
		"--filter", "tag=shoe|hat", "--filter", "price<20")

	require.NoError(t, err, out)
	assert.Contains(t, out, "Expression:")
	assert.Contains(t, out, `"terms"`)
	assert.Contains(t, out, `"range"`)
}

func TestSearch_Errors(t *testing.T) {
	cfgPath, _ := setup(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown filter field", []string{"--filter", "nope=1"}, errors.ErrCodeUnknownField},
		{"bad filter value", []string{"--filter", "price>cheap"}, errors.ErrCodeInvalidExpression},
		{"unknown facet field", []string{"--facet", "nope"}, errors.ErrCodeUnknownField},
		{"bad facet size", []string{"--facet", "tag:x"}, errors.ErrCodeInvalidInput},
		{"missing alias", nil, errors.ErrCodeAliasNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"search", "products", "-c", cfgPath}, tt.args...)...)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestExecute_ReportsErrors(t *testing.T) {
	cfgPath, _ := setup(t)

	tests := []struct {
		name  string
		extra []string
		check func(t *testing.T, stderr string)
	}{
		{
			name:  "json output gets a json error",
			extra: []string{"--json"},
			check: func(t *testing.T, stderr string) {
				var body struct {
					Error struct {
						Code     string `json:"code"`
						Category string `json:"category"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal([]byte(stderr), &body), stderr)
				assert.Equal(t, errors.ErrCodeUnknownField, body.Error.Code)
				assert.Equal(t, string(errors.CategoryValidation), body.Error.Category)
			},
		},
		{
			name: "terminal output gets text",
			check: func(t *testing.T, stderr string) {
				assert.Contains(t, stderr, "Error: ")
				assert.Contains(t, stderr, "Code: "+errors.ErrCodeUnknownField)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd()
			stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
			root.SetOut(stdout)
			root.SetErr(stderr)
			root.SetArgs(append([]string{"search", "products", "-c", cfgPath, "--filter", "nope=1", "--no-color"}, tt.extra...))

			err := execute(context.Background(), root)

			require.Error(t, err)
			assert.Empty(t, stdout.String())
			tt.check(t, stderr.String())
		})
	}
}

func TestIndexCreate_ExistingAliasNeedsRebuild(t *testing.T) {
	// Given a built alias
	cfgPath, dir := setup(t)
	buildProducts(t, cfgPath, dir)
	first, err := run(t, "alias", "resolve", "products", "-c", cfgPath)
	require.NoError(t, err)

	// When creating it again
	_, err = run(t, "index", "create", "products", "-c", cfgPath, "--source", filepath.Join(dir, "docs.ndjson"), "--plain")

	// Then it is refused
	assert.Equal(t, errors.ErrCodeAliasExists, errors.GetCode(err))

	// When rebuilding instead
	out, err := run(t, "index", "rebuild", "products", "-c", cfgPath, "--source", filepath.Join(dir, "docs.ndjson"), "--plain")
	require.NoError(t, err, out)

	// Then the alias serves a new generation
	second, err := run(t, "alias", "resolve", "products", "-c", cfgPath)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "products-v1-"))
}

func TestIndexWrites(t *testing.T) {
	cfgPath, dir := setup(t)
	buildProducts(t, cfgPath, dir)

	more := filepath.Join(dir, "more.ndjson")
	require.NoError(t, os.WriteFile(more, []byte(`{"id":"4","tag":"shoe","price":5}`+"\n"), 0o600))

	out, err := run(t, "index", "add", "products", "-c", cfgPath, "--source", more, "--wait")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 documents indexed")

	out, err = run(t, "index", "remove", "products", "1", "3", "-c", cfgPath, "--wait")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 documents removed")

	out, err = run(t, "search", "products", "-c", cfgPath, "--filter", "tag=shoe", "--json")
	require.NoError(t, err, out)
	var res resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "4", res.Hits[0].ID)
}

func TestAliasStatusAndDelete(t *testing.T) {
	cfgPath, dir := setup(t)
	buildProducts(t, cfgPath, dir)

	out, err := run(t, "alias", "status", "products", "-c", cfgPath, "--json")
	require.NoError(t, err, out)
	var status struct {
		Live          string `json:"live"`
		SchemaVersion int    `json:"schema_version"`
		NeedsRebuild  bool   `json:"needs_rebuild"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, strings.HasPrefix(status.Live, "products-v1-"))
	assert.Equal(t, 1, status.SchemaVersion)
	assert.False(t, status.NeedsRebuild)

	// deletion needs confirmation
	_, err = run(t, "alias", "delete", "products", "-c", cfgPath)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))

	_, err = run(t, "alias", "delete", "products", "-c", cfgPath, "--yes")
	require.NoError(t, err)
	_, err = run(t, "alias", "resolve", "products", "-c", cfgPath)
	assert.Equal(t, errors.ErrCodeAliasNotFound, errors.GetCode(err))
}

func TestMapping(t *testing.T) {
	cfgPath, _ := setup(t)

	out, err := run(t, "mapping", "-c", cfgPath)

	require.NoError(t, err, out)
	var m struct {
		Version int               `json:"version"`
		Types   map[string]string `json:"types"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, "keyword", m.Types["tag"])
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw       string
		field     string
		desc      bool
		relevance bool
	}{
		{"price", "price", false, false},
		{"+price", "price", false, false},
		{"-price", "price", true, false},
		{"_score", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := parseSort(tt.raw)
			assert.Equal(t, tt.field, got.Field)
			assert.Equal(t, tt.desc, got.Desc)
			assert.Equal(t, tt.relevance, got.Relevance)
		})
	}
}
