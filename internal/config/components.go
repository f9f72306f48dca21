package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/compiler"
	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/index"
	"github.com/Aman-CERP/searchkit/internal/querystring"
	"github.com/Aman-CERP/searchkit/internal/schema"
	"github.com/Aman-CERP/searchkit/internal/search"
)

// DefaultPreset is the presets key used for aliases without their own entry.
const DefaultPreset = "default"

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Search.TimeZone)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("unknown time zone %q", c.Search.TimeZone), err)
	}
	return loc, nil
}

// Timeout returns the backend call timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return index.DefaultTimeout
	}
	return d
}

// BuildSchema validates the schema section.
func (c *Config) BuildSchema() (*schema.Schema, error) {
	if len(c.Schema.Fields) == 0 {
		return nil, errors.ConfigError("schema.fields must not be empty", nil).
			WithSuggestion("Describe the document fields under schema.fields in " + ProjectFile)
	}
	return schema.New(c.Schema.Version, c.Schema.Languages, c.Schema.Fields)
}

// QueryString returns the preprocessor configuration.
func (c *Config) QueryString() querystring.Config {
	qs := querystring.DefaultConfig()
	src := c.Search.QueryString
	if src.Delimiters != "" {
		qs.Delimiters = src.Delimiters
	}
	if src.Separators != "" {
		qs.Separators = src.Separators
	}
	qs.EscapeChar = 0
	if r := []rune(src.Escape); len(r) == 1 {
		qs.EscapeChar = r[0]
	}
	for k, v := range src.Replacements {
		qs.Replacements[strings.ToLower(k)] = v
	}
	qs.DefaultOperator = strings.ToUpper(c.Search.DefaultOperator)
	qs.AutoBracket = src.AutoBracket
	return qs
}

// SearchConfig assembles the search service configuration. presets feeds
// index creation; nil uses the presets of c as loaded.
func (c *Config) SearchConfig(presets index.PresetProvider) (search.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return search.Config{}, err
	}
	if presets == nil {
		presets = NewPresetStore(c.Presets)
	}
	return search.Config{
		Location:       loc,
		InBatchSize:    c.Search.InBatchSize,
		DefaultSize:    c.Search.DefaultSize,
		MaxSize:        c.Search.MaxSize,
		BulkBatchSize:  c.Search.BulkBatchSize,
		BulkWorkers:    c.Search.BulkWorkers,
		StrictBulk:     c.Search.StrictBulk,
		LabelCacheSize: c.Search.LabelCacheSize,
		Compiler: compiler.Options{
			KeywordSuffix:   c.Search.KeywordSuffix,
			QueryString:     c.QueryString(),
			DefaultOperator: strings.ToUpper(c.Search.DefaultOperator),
			DefaultFields:   c.Search.DefaultFields,
		},
		Index: index.Options{
			Presets:  presets,
			StateDir: c.Index.StateDir,
			Timeout:  c.Timeout(),
		},
	}, nil
}

// Preset converts p for the lifecycle manager.
func (p PresetConfig) Preset() index.Preset {
	return index.Preset{
		Settings: backend.IndexSettings{
			Shards:          p.Shards,
			Replicas:        p.Replicas,
			MaxResultWindow: p.MaxResultWindow,
			RefreshInterval: p.RefreshInterval,
		},
		BatchSize: p.BatchSize,
		Workers:   p.Workers,
	}
}

// PresetStore serves per-alias presets and can be swapped at runtime. It
// is safe for concurrent use.
type PresetStore struct {
	mu      sync.RWMutex
	presets map[string]PresetConfig
}

var _ index.PresetProvider = (*PresetStore)(nil)

// NewPresetStore returns a store holding a copy of presets.
func NewPresetStore(presets map[string]PresetConfig) *PresetStore {
	s := &PresetStore{}
	s.Replace(presets)
	return s
}

// Preset returns the preset of alias, else the "default" entry, else the
// zero preset.
func (s *PresetStore) Preset(alias string) index.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.presets[alias]; ok {
		return p.Preset()
	}
	return s.presets[DefaultPreset].Preset()
}

// Replace swaps in a copy of presets.
func (s *PresetStore) Replace(presets map[string]PresetConfig) {
	cp := make(map[string]PresetConfig, len(presets))
	for k, v := range presets {
		cp[k] = v
	}
	s.mu.Lock()
	s.presets = cp
	s.mu.Unlock()
}

// Aliases returns the aliases with an explicit preset.
func (s *PresetStore) Aliases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.presets))
	for k := range s.presets {
		out = append(out, k)
	}
	return out
}
