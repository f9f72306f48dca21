package async

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/searchkit/internal/index"
)

func TestNewBuildProgress(t *testing.T) {
	// Given/When: creating a new progress tracker
	p := NewBuildProgress(nil)

	// Then: should be initialized as building
	require.NotNil(t, p)
	snap := p.Snapshot()
	assert.Equal(t, string(StatusBuilding), snap.Status)
	assert.Equal(t, "create_index", snap.Phase)
	assert.Equal(t, 0, snap.DocsTotal)
	assert.True(t, p.IsBuilding())
}

func TestBuildProgress_OnEvent(t *testing.T) {
	tests := []struct {
		name   string
		events []index.Event
		want   ProgressSnapshot
	}{
		{
			name: "population counters",
			events: []index.Event{
				{Alias: "a", Index: "a-v1-00000000", Phase: index.PhaseCreateIndex},
				{Alias: "a", Index: "a-v1-00000000", Phase: index.PhaseAddDocuments, Total: 10, Processed: 4, Failed: 1},
			},
			want: ProgressSnapshot{Alias: "a", Index: "a-v1-00000000", Status: "building", Phase: "add_documents",
				DocsTotal: 10, DocsProcessed: 4, DocsFailed: 1, ProgressPct: 40},
		},
		{
			name: "delta replay accumulates",
			events: []index.Event{
				{Alias: "a", Index: "a-v2-00000000", Phase: index.PhaseAddDocuments, Total: 2, Processed: 2},
				{Alias: "a", Index: "a-v2-00000000", Phase: index.PhaseProcessDelta, Processed: 3, Total: 3},
				{Alias: "a", Index: "a-v2-00000000", Phase: index.PhaseProcessDelta, Processed: 1, Total: 2, Failed: 1},
			},
			want: ProgressSnapshot{Alias: "a", Index: "a-v2-00000000", Status: "building", Phase: "process_delta",
				DocsTotal: 2, DocsProcessed: 2, DocsFailed: 1, DeltaReplayed: 4, ProgressPct: 100},
		},
		{
			name: "end marks ready and keeps the new generation",
			events: []index.Event{
				{Alias: "a", Index: "a-v2-00000000", Phase: index.PhaseCreateIndex},
				{Alias: "a", Index: "a-v1-11111111", Phase: index.PhaseDeleteOldIndex},
				{Alias: "a", Index: "a-v2-00000000", Phase: index.PhaseEnd},
			},
			want: ProgressSnapshot{Alias: "a", Index: "a-v2-00000000", Status: "ready", Phase: "end", ProgressPct: 100},
		},
		{
			name: "error records the message",
			events: []index.Event{
				{Alias: "a", Index: "a-v1-00000000", Phase: index.PhaseError, Err: errors.New("boom")},
			},
			want: ProgressSnapshot{Alias: "a", Index: "a-v1-00000000", Status: "error", Phase: "error", ErrorMessage: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewBuildProgress(nil)

			// When: feeding events
			for _, e := range tt.events {
				p.OnEvent(e)
			}

			// Then: snapshot reflects them
			snap := p.Snapshot()
			snap.ElapsedSeconds = 0
			assert.Equal(t, tt.want, snap)
		})
	}
}

func TestBuildProgress_ForwardsEvents(t *testing.T) {
	// Given: tracker chained to a listener
	var got []index.Phase
	p := NewBuildProgress(index.ListenerFunc(func(e index.Event) { got = append(got, e.Phase) }))

	// When: events arrive
	p.OnEvent(index.Event{Phase: index.PhaseCreateIndex})
	p.OnEvent(index.Event{Phase: index.PhaseEnd})

	// Then: the listener saw them in order
	assert.Equal(t, []index.Phase{index.PhaseCreateIndex, index.PhaseEnd}, got)
}

func TestBuildProgress_SetError(t *testing.T) {
	// Given: progress tracker
	p := NewBuildProgress(nil)

	// When: setting an error
	p.SetError("connection refused")

	// Then: status changes to error
	snap := p.Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "connection refused", snap.ErrorMessage)
	assert.False(t, p.IsBuilding())
}

func TestBuildProgress_ConcurrentAccess(t *testing.T) {
	// Given: progress tracker
	p := NewBuildProgress(nil)
	var wg sync.WaitGroup

	// When: workers report while readers snapshot
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.OnEvent(index.Event{Phase: index.PhaseAddDocuments, Processed: n*100 + j, Total: 1000})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = p.Snapshot()
			}
		}()
	}
	wg.Wait()

	// Then: no race and state is consistent
	snap := p.Snapshot()
	assert.Equal(t, 1000, snap.DocsTotal)
	assert.True(t, p.IsBuilding())
}
