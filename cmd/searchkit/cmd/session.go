package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/searchkit/internal/backend"
	"github.com/Aman-CERP/searchkit/internal/backend/elastic"
	"github.com/Aman-CERP/searchkit/internal/backend/embedded"
	"github.com/Aman-CERP/searchkit/internal/config"
	"github.com/Aman-CERP/searchkit/internal/logging"
	"github.com/Aman-CERP/searchkit/internal/schema"
	"github.com/Aman-CERP/searchkit/internal/search"
	"github.com/Aman-CERP/searchkit/internal/telemetry"
)

// metricsFile holds the persisted query statistics in the state directory.
const metricsFile = "query_metrics.json"

// loadConfig returns the configuration and the file it came from. With
// --config only that file is read; otherwise the project root is searched
// from the working directory.
func loadConfig() (*config.Config, string, error) {
	if configFile != "" {
		cfg, err := config.LoadFile(configFile)
		return cfg, configFile, err
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", err
	}
	return cfg, config.ProjectConfigPath(root), nil
}

// newConnector opens the backend cfg selects.
func newConnector(cfg *config.Config) (backend.Connector, error) {
	if cfg.Backend.Kind == config.BackendElasticsearch {
		return elastic.New(elastic.Config{
			Addresses:     cfg.Backend.Addresses,
			Username:      cfg.Backend.Username,
			Password:      cfg.Backend.Password,
			APIKey:        cfg.Backend.APIKey,
			KeywordSuffix: cfg.Search.KeywordSuffix,
		})
	}
	return embedded.New(embedded.Options{
		Dir:           cfg.Backend.DataDir,
		KeywordSuffix: cfg.Search.KeywordSuffix,
	})
}

type sessionOptions struct {
	// metrics records searches into the state directory.
	metrics bool

	// watchPresets reloads presets while a long build runs.
	watchPresets bool
}

// session bundles what a command needs to talk to the backend.
type session struct {
	cfg     *config.Config
	path    string
	schema  *schema.Schema
	svc     *search.Service
	presets *config.PresetStore

	cleanups []func()
}

func openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, path: path, presets: config.NewPresetStore(cfg.Presets)}

	if !debugMode && cfg.Logging.File != "" {
		cleanup, err := logging.SetupDefault(logging.Config{
			Level:     cfg.Logging.Level,
			FilePath:  cfg.Logging.File,
			MaxSizeMB: cfg.Logging.MaxSizeMB,
			MaxFiles:  cfg.Logging.MaxFiles,
		})
		if err != nil {
			return nil, err
		}
		s.cleanups = append(s.cleanups, cleanup)
	}

	if s.schema, err = cfg.BuildSchema(); err != nil {
		s.Close()
		return nil, err
	}
	scfg, err := cfg.SearchConfig(s.presets)
	if err != nil {
		s.Close()
		return nil, err
	}
	conn, err := newConnector(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	var svcOpts []search.Option
	if opts.metrics {
		store := telemetry.NewFileStore(filepath.Join(cfg.Index.StateDir, metricsFile))
		cfgm := telemetry.DefaultQueryMetricsConfig()
		cfgm.FlushInterval = 0
		svcOpts = append(svcOpts, search.WithMetrics(telemetry.NewQueryMetricsWithConfig(store, cfgm)))
	}
	if s.svc, err = search.New(conn, s.schema, scfg, svcOpts...); err != nil {
		_ = conn.Close()
		s.Close()
		return nil, err
	}

	if opts.watchPresets && path != "" {
		w, err := config.NewPresetWatcher(path, s.presets, config.DefaultReloadDebounce)
		if err != nil {
			slog.Warn("preset_watch_unavailable", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			wctx, cancel := context.WithCancel(ctx)
			go w.Run(wctx)
			s.cleanups = append(s.cleanups, func() {
				cancel()
				_ = w.Close()
			})
		}
	}

	slog.Debug("session_opened",
		slog.String("backend", cfg.Backend.Kind),
		slog.String("config", path),
		slog.Int("schema_version", s.schema.Version))
	return s, nil
}

// Close releases the service and everything openSession started, last
// started first.
func (s *session) Close() {
	if s.svc != nil {
		if err := s.svc.Close(); err != nil {
			slog.Warn("session_close_failed", slog.String("error", err.Error()))
		}
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}
