package async

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Aman-CERP/searchkit/internal/index"
)

// BuildFunc performs the build, reporting through listener.
type BuildFunc func(ctx context.Context, listener index.ProgressListener) error

// BuilderConfig configures the BackgroundBuilder.
type BuilderConfig struct {
	// StateDir receives the in-progress marker. Empty disables it.
	StateDir string
	Alias    string

	// Listener receives every event after the tracker saw it.
	Listener index.ProgressListener
}

// BackgroundBuilder runs one index build in a background goroutine with
// progress tracking.
type BackgroundBuilder struct {
	config   BuilderConfig
	progress *BuildProgress

	// BuildFunc is the build to run, usually a closure over
	// index.Manager.CreateAndInitializeIndex.
	BuildFunc BuildFunc

	stopCh chan struct{}
	doneCh chan struct{}

	mu       sync.Mutex
	running  bool
	started  bool
	stopOnce sync.Once
	err      error
}

// NewBackgroundBuilder creates a new background builder.
func NewBackgroundBuilder(cfg BuilderConfig) *BackgroundBuilder {
	return &BackgroundBuilder{
		config:   cfg,
		progress: NewBuildProgress(cfg.Listener),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this build.
func (b *BackgroundBuilder) Progress() *BuildProgress {
	return b.progress
}

// IsRunning returns true if the build is currently running.
func (b *BackgroundBuilder) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins the build in a background goroutine and returns
// immediately. A builder runs at most once; use Wait to block until it
// completes.
func (b *BackgroundBuilder) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundBuilder) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	marker := &markerListener{path: markerPath(b.config.StateDir, b.config.Alias), next: b.progress}
	if b.config.StateDir != "" {
		if err := os.MkdirAll(b.config.StateDir, 0755); err != nil {
			b.setErr(err)
			return
		}
		defer marker.remove()
	}

	if b.BuildFunc != nil {
		var l index.ProgressListener = b.progress
		if b.config.StateDir != "" {
			l = marker
		}
		if err := b.BuildFunc(ctx, l); err != nil {
			b.setErr(err)
			return
		}
	}

	if b.progress.IsBuilding() {
		b.progress.OnEvent(index.Event{Alias: b.config.Alias, Phase: index.PhaseEnd})
	}
}

func (b *BackgroundBuilder) setErr(err error) {
	if b.progress.IsBuilding() {
		b.progress.SetError(err.Error())
	}
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop cancels the build and waits for it to finish. The index manager
// removes the half-built generation on cancellation.
func (b *BackgroundBuilder) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Wait blocks until the build completes and returns any error.
func (b *BackgroundBuilder) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// markerListener writes the name of the generation under construction to
// a marker file so a crashed build can be found and cleaned up later.
type markerListener struct {
	path    string
	written bool
	next    index.ProgressListener
}

func (m *markerListener) OnEvent(e index.Event) {
	if !m.written && e.Phase == index.PhaseCreateIndex && e.Index != "" {
		if err := os.WriteFile(m.path, []byte(e.Index+"\n"), 0644); err == nil {
			m.written = true
		}
	}
	m.next.OnEvent(e)
}

func (m *markerListener) remove() {
	_ = os.Remove(m.path)
}

func markerPath(dir, alias string) string {
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(alias)
	return filepath.Join(dir, name+".building")
}

// IncompleteBuild returns the generation a crashed build of alias left
// behind, if its marker is still present.
func IncompleteBuild(stateDir, alias string) (string, bool) {
	data, err := os.ReadFile(markerPath(stateDir, alias))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}
