package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/index"
)

func TestNewBackgroundBuilder(t *testing.T) {
	// Given: builder config
	cfg := BuilderConfig{StateDir: t.TempDir(), Alias: "products"}

	// When: creating builder
	builder := NewBackgroundBuilder(cfg)

	// Then: should be initialized correctly
	require.NotNil(t, builder)
	assert.NotNil(t, builder.Progress())
	assert.False(t, builder.IsRunning())
}

func TestBackgroundBuilder_Start_RunsInGoroutine(t *testing.T) {
	// Given: builder with quick task
	builder := NewBackgroundBuilder(BuilderConfig{Alias: "products"})

	var started atomic.Bool
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		started.Store(true)
		return nil
	}

	// When: starting builder
	builder.Start(context.Background())

	// Then: should run in background and finish ready
	err := builder.Wait()
	require.NoError(t, err)
	assert.True(t, started.Load())
	assert.False(t, builder.IsRunning())
	assert.Equal(t, "ready", builder.Progress().Snapshot().Status)
}

func TestBackgroundBuilder_Stop_CancelsBuild(t *testing.T) {
	// Given: builder with a build that waits for cancellation
	builder := NewBackgroundBuilder(BuilderConfig{Alias: "products"})

	var stopped atomic.Bool
	running := make(chan struct{})
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		close(running)
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	}

	// When: starting and stopping
	builder.Start(context.Background())
	<-running
	builder.Stop()

	// Then: should stop cleanly with the cancellation reported
	assert.True(t, stopped.Load())
	assert.False(t, builder.IsRunning())
	assert.ErrorIs(t, builder.Wait(), context.Canceled)
	assert.Equal(t, "error", builder.Progress().Snapshot().Status)
}

func TestBackgroundBuilder_Stop_ContextCancellation(t *testing.T) {
	// Given: builder with context
	builder := NewBackgroundBuilder(BuilderConfig{Alias: "products"})

	var stopped atomic.Bool
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	}

	// When: context is canceled
	ctx, cancel := context.WithCancel(context.Background())
	builder.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()
	_ = builder.Wait()

	// Then: should stop on context cancel
	assert.True(t, stopped.Load())
	assert.False(t, builder.IsRunning())
}

func TestBackgroundBuilder_Marker(t *testing.T) {
	// Given: builder with a state directory
	dir := t.TempDir()
	builder := NewBackgroundBuilder(BuilderConfig{StateDir: dir, Alias: "products"})

	var seen atomic.Value
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		l.OnEvent(index.Event{Alias: "products", Index: "products-v1-0a1b2c3d", Phase: index.PhaseCreateIndex})
		name, ok := IncompleteBuild(dir, "products")
		if ok {
			seen.Store(name)
		}
		l.OnEvent(index.Event{Alias: "products", Index: "products-v1-0a1b2c3d", Phase: index.PhaseEnd})
		return nil
	}

	// When: running builder
	builder.Start(context.Background())
	err := builder.Wait()

	// Then: marker named the generation during the run and is gone after
	require.NoError(t, err)
	assert.Equal(t, "products-v1-0a1b2c3d", seen.Load())
	_, ok := IncompleteBuild(dir, "products")
	assert.False(t, ok)
}

func TestBackgroundBuilder_Error_SetsProgress(t *testing.T) {
	// Given: builder whose build fails
	builder := NewBackgroundBuilder(BuilderConfig{Alias: "products"})
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		return errors.New("cluster unavailable")
	}

	// When: running builder
	builder.Start(context.Background())
	err := builder.Wait()

	// Then: error should be set in progress
	require.Error(t, err)
	snap := builder.Progress().Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Contains(t, snap.ErrorMessage, "cluster unavailable")
}

func TestBackgroundBuilder_Start_RunsOnce(t *testing.T) {
	// Given: builder
	builder := NewBackgroundBuilder(BuilderConfig{Alias: "products"})

	var startCount atomic.Int32
	builder.BuildFunc = func(ctx context.Context, l index.ProgressListener) error {
		startCount.Add(1)
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	// When: starting multiple times
	ctx := context.Background()
	builder.Start(ctx)
	builder.Start(ctx)
	_ = builder.Wait()
	builder.Start(ctx)

	// Then: should only run once
	assert.Equal(t, int32(1), startCount.Load())
}

func TestIncompleteBuild(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(dir string)
		wantName string
		wantOK   bool
	}{
		{
			name:  "no marker",
			setup: func(dir string) {},
		},
		{
			name: "marker left by a crashed build",
			setup: func(dir string) {
				_ = os.WriteFile(filepath.Join(dir, "products.building"), []byte("products-v3-deadbeef\n"), 0644)
			},
			wantName: "products-v3-deadbeef",
			wantOK:   true,
		},
		{
			name: "empty marker",
			setup: func(dir string) {
				_ = os.WriteFile(filepath.Join(dir, "products.building"), nil, 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(dir)

			name, ok := IncompleteBuild(dir, "products")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
