package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/searchkit/internal/errors"
)

// DefaultReloadDebounce coalesces the burst of events an editor save
// produces.
const DefaultReloadDebounce = 200 * time.Millisecond

// PresetWatcher reloads the presets section of a config file into a
// PresetStore whenever the file changes.
type PresetWatcher struct {
	path     string
	store    *PresetStore
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	reloads int

	stopOnce sync.Once
}

// NewPresetWatcher starts watching path. The parent directory is watched
// so files replaced by rename are picked up too.
func NewPresetWatcher(path string, store *PresetStore, debounce time.Duration) (*PresetWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.ConfigError("failed to resolve config path", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.InternalError("failed to create file watcher", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, errors.ConfigError(fmt.Sprintf("failed to watch %s", filepath.Dir(abs)), err)
	}
	return &PresetWatcher{path: abs, store: store, debounce: debounce, fsw: fsw}, nil
}

// Run processes file events until ctx is done or Close is called.
func (w *PresetWatcher) Run(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}
		case <-fire:
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("preset_watch_error", slog.String("path", w.path), slog.String("error", err.Error()))
		}
	}
}

func (w *PresetWatcher) reload() {
	presets, err := ReadPresets(w.path)
	if err != nil {
		slog.Warn("presets_reload_failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return
	}
	w.store.Replace(presets)

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	slog.Info("presets_reloaded",
		slog.String("path", w.path),
		slog.Int("aliases", len(presets)))
}

// Reloads returns how many successful reloads happened.
func (w *PresetWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Close stops watching. Run returns afterwards.
func (w *PresetWatcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

// ReadPresets parses only the presets section of path. Invalid presets
// are rejected as a whole so a half-edited file never replaces good ones.
func ReadPresets(path string) (map[string]PresetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read %s", path), err)
	}
	var doc struct {
		Presets map[string]PresetConfig `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
	}
	if err := validatePresets(doc.Presets); err != nil {
		return nil, err
	}
	return doc.Presets, nil
}
