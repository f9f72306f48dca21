package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/searchkit/internal/errors"
	"github.com/Aman-CERP/searchkit/internal/schema"
)

// ProjectFile is the project configuration file name.
const ProjectFile = ".searchkit.yaml"

// Backend kinds.
const (
	BackendEmbedded      = "embedded"
	BackendElasticsearch = "elasticsearch"
)

// Config is the complete searchkit configuration.
type Config struct {
	Version int                     `yaml:"version" json:"version"`
	Backend BackendConfig           `yaml:"backend" json:"backend"`
	Search  SearchConfig            `yaml:"search" json:"search"`
	Index   IndexConfig             `yaml:"index" json:"index"`
	Presets map[string]PresetConfig `yaml:"presets,omitempty" json:"presets,omitempty"`
	Logging LoggingConfig           `yaml:"logging" json:"logging"`
	Schema  SchemaConfig            `yaml:"schema" json:"schema"`
}

// BackendConfig selects and configures the search engine connector.
type BackendConfig struct {
	// Kind is "embedded" (bleve, in-process) or "elasticsearch".
	Kind string `yaml:"kind" json:"kind"`

	Addresses []string `yaml:"addresses,omitempty" json:"addresses,omitempty"`
	Username  string   `yaml:"username,omitempty" json:"username,omitempty"`
	Password  string   `yaml:"password,omitempty" json:"-"`
	APIKey    string   `yaml:"api_key,omitempty" json:"-"`

	// DataDir holds the embedded indexes. Empty keeps them in memory.
	DataDir string `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`

	// Timeout bounds every backend call, e.g. "30s".
	Timeout string `yaml:"timeout" json:"timeout"`
}

// SearchConfig tunes compilation and paging.
type SearchConfig struct {
	// TimeZone anchors day comparisons, e.g. "Europe/Zurich".
	TimeZone string `yaml:"time_zone" json:"time_zone"`

	KeywordSuffix   string   `yaml:"keyword_suffix" json:"keyword_suffix"`
	DefaultFields   []string `yaml:"default_fields,omitempty" json:"default_fields,omitempty"`
	DefaultOperator string   `yaml:"default_operator" json:"default_operator"`

	// InBatchSize splits long value lists into several terms queries.
	InBatchSize int `yaml:"in_batch_size" json:"in_batch_size"`
	DefaultSize int `yaml:"default_size" json:"default_size"`
	MaxSize     int `yaml:"max_size" json:"max_size"`

	BulkBatchSize int  `yaml:"bulk_batch_size" json:"bulk_batch_size"`
	BulkWorkers   int  `yaml:"bulk_workers" json:"bulk_workers"`
	StrictBulk    bool `yaml:"strict_bulk" json:"strict_bulk"`

	LabelCacheSize int `yaml:"label_cache_size" json:"label_cache_size"`

	QueryString QueryStringConfig `yaml:"query_string" json:"query_string"`
}

// QueryStringConfig configures the free-text preprocessor.
type QueryStringConfig struct {
	Delimiters string `yaml:"delimiters,omitempty" json:"delimiters,omitempty"`
	Separators string `yaml:"separators,omitempty" json:"separators,omitempty"`

	// Escape is a single character. Empty disables escaping.
	Escape string `yaml:"escape" json:"escape"`

	// Replacements add to or override the built-in operator synonyms.
	Replacements map[string]string `yaml:"replacements,omitempty" json:"replacements,omitempty"`

	AutoBracket bool `yaml:"auto_bracket" json:"auto_bracket"`
}

// IndexConfig configures the lifecycle manager.
type IndexConfig struct {
	// StateDir holds rebuild lock files and build markers.
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

// PresetConfig is the per-alias index preset.
type PresetConfig struct {
	Shards          int    `yaml:"shards,omitempty" json:"shards,omitempty"`
	Replicas        *int   `yaml:"replicas,omitempty" json:"replicas,omitempty"`
	MaxResultWindow int    `yaml:"max_result_window,omitempty" json:"max_result_window,omitempty"`
	RefreshInterval string `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`
	BatchSize       int    `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	Workers         int    `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// SchemaConfig describes the documents of every alias.
type SchemaConfig struct {
	Version   int                `yaml:"version" json:"version"`
	Languages []string           `yaml:"languages,omitempty" json:"languages,omitempty"`
	Fields    []schema.FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			Kind:    BackendEmbedded,
			DataDir: filepath.Join(defaultStateRoot(), "data"),
			Timeout: "1m",
		},
		Search: SearchConfig{
			TimeZone:        "UTC",
			KeywordSuffix:   "keyword",
			DefaultOperator: "AND",
			InBatchSize:     1024,
			DefaultSize:     10,
			MaxSize:         10000,
			BulkBatchSize:   500,
			BulkWorkers:     4,
			LabelCacheSize:  4096,
			QueryString: QueryStringConfig{
				Escape:      `\`,
				AutoBracket: true,
			},
		},
		Index: IndexConfig{
			StateDir: filepath.Join(defaultStateRoot(), "state"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Schema: SchemaConfig{Version: 1},
	}
}

func defaultStateRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".searchkit")
	}
	return filepath.Join(home, ".searchkit")
}

// GetUserConfigPath returns the user configuration file:
// $XDG_CONFIG_HOME/searchkit/config.yaml, else ~/.config/searchkit/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "searchkit", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "searchkit", "config.yaml")
	}
	return filepath.Join(home, ".config", "searchkit", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load reads configuration for the project in dir. Later sources win:
//  1. defaults
//  2. user config
//  3. project config (.searchkit.yaml or .searchkit.yml in dir)
//  4. SEARCHKIT_* environment variables
//
// The result is validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads defaults overlaid with the single file at path, without
// user config or environment.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project file in dir, or "" if there is none.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectFile, ".searchkit.yml"} {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML decodes path over c. Keys missing from the file keep their
// current values; presets merge per alias.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrCodeConfigNotFound, fmt.Sprintf("config file %s not found", path), err)
		}
		return errors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithSuggestion("Check the YAML syntax of " + path)
	}
	return nil
}

// applyEnvOverrides applies SEARCHKIT_* variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SEARCHKIT_BACKEND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("SEARCHKIT_ES_ADDRESSES"); v != "" {
		c.Backend.Addresses = splitList(v)
	}
	if v := os.Getenv("SEARCHKIT_ES_USERNAME"); v != "" {
		c.Backend.Username = v
	}
	if v := os.Getenv("SEARCHKIT_ES_PASSWORD"); v != "" {
		c.Backend.Password = v
	}
	if v := os.Getenv("SEARCHKIT_ES_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("SEARCHKIT_DATA_DIR"); v != "" {
		c.Backend.DataDir = v
	}
	if v := os.Getenv("SEARCHKIT_TIMEOUT"); v != "" {
		c.Backend.Timeout = v
	}
	if v := os.Getenv("SEARCHKIT_TIME_ZONE"); v != "" {
		c.Search.TimeZone = v
	}
	if v := os.Getenv("SEARCHKIT_STATE_DIR"); v != "" {
		c.Index.StateDir = v
	}
	if v := os.Getenv("SEARCHKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SEARCHKIT_DEFAULT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("SEARCHKIT_DEFAULT_SIZE must be an integer, got %q", v), err)
		}
		c.Search.DefaultSize = n
	}
	if v := os.Getenv("SEARCHKIT_STRICT_BULK"); v != "" {
		c.Search.StrictBulk = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend.Kind) {
	case BackendEmbedded:
	case BackendElasticsearch:
		if len(c.Backend.Addresses) == 0 {
			return errors.ConfigError("backend.addresses must not be empty for elasticsearch", nil).
				WithSuggestion("Set backend.addresses or SEARCHKIT_ES_ADDRESSES")
		}
		if c.Backend.APIKey != "" && c.Backend.Username != "" {
			return errors.ConfigError("backend.api_key and backend.username are mutually exclusive", nil)
		}
	default:
		return errors.ConfigError(fmt.Sprintf("backend.kind must be 'embedded' or 'elasticsearch', got %q", c.Backend.Kind), nil)
	}
	if d, err := time.ParseDuration(c.Backend.Timeout); err != nil || d <= 0 {
		return errors.ConfigError(fmt.Sprintf("backend.timeout must be a positive duration, got %q", c.Backend.Timeout), err)
	}
	if _, err := time.LoadLocation(c.Search.TimeZone); err != nil {
		return errors.ConfigError(fmt.Sprintf("search.time_zone %q is not a known zone", c.Search.TimeZone), err)
	}
	if op := strings.ToUpper(c.Search.DefaultOperator); op != "AND" && op != "OR" {
		return errors.ConfigError(fmt.Sprintf("search.default_operator must be AND or OR, got %q", c.Search.DefaultOperator), nil)
	}
	if c.Search.DefaultSize < 0 || c.Search.MaxSize < 0 || c.Search.InBatchSize < 0 {
		return errors.ConfigError("search sizes must be non-negative", nil)
	}
	if c.Search.MaxSize > 0 && c.Search.DefaultSize > c.Search.MaxSize {
		return errors.ConfigError(fmt.Sprintf("search.default_size %d exceeds search.max_size %d", c.Search.DefaultSize, c.Search.MaxSize), nil)
	}
	if len([]rune(c.Search.QueryString.Escape)) > 1 {
		return errors.ConfigError(fmt.Sprintf("search.query_string.escape must be one character, got %q", c.Search.QueryString.Escape), nil)
	}
	if err := validatePresets(c.Presets); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.ConfigError(fmt.Sprintf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level), nil)
	}
	return nil
}

func validatePresets(presets map[string]PresetConfig) error {
	for alias, p := range presets {
		if p.Shards < 0 || (p.Replicas != nil && *p.Replicas < 0) || p.BatchSize < 0 || p.Workers < 0 || p.MaxResultWindow < 0 {
			return errors.ConfigError(fmt.Sprintf("presets.%s: values must be non-negative", alias), nil)
		}
	}
	return nil
}

// WriteFile writes a configuration file, creating its directory.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.ConfigError("failed to write config file", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir to the first directory holding a
// project config file or .git. Without either it returns startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	for dir := absDir; ; {
		if ProjectConfigPath(dir) != "" || dirExists(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
