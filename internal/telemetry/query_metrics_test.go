package telemetry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	buf.Add("query1")
	buf.Add("query2")
	buf.Add("query3")
	buf.Add("query4")
	buf.Add("query5")

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"query3", "query4", "query5"}, buf.Items())
}

func TestCircularBuffer_Empty(t *testing.T) {
	buf := NewCircularBuffer[int](0)

	assert.Equal(t, []int{}, buf.Items())
	assert.Equal(t, 0, buf.Size())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
		})
	}
}

func TestQueryMetrics_Record(t *testing.T) {
	// Given: a collector without persistence
	m := NewQueryMetrics(nil)
	defer func() { _ = m.Close() }()

	// When: recording searches
	m.Record(QueryEvent{Alias: "products", Expression: "price > 10", QueryType: QueryTypeStructured,
		Fields: []string{"price"}, ResultCount: 4, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Alias: "products", Expression: "price > 10", QueryType: QueryTypeStructured,
		Fields: []string{"price", "price"}, ResultCount: 4, Latency: 60 * time.Millisecond})
	m.Record(QueryEvent{Alias: "orders", Expression: "fulltext(\"lamp\")", QueryType: QueryTypeMixed,
		Fields: []string{"title", "price"}, ResultCount: 0, Latency: 5 * time.Millisecond})

	// Then: aggregates reflect them
	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.QueryTypeCounts[QueryTypeStructured])
	assert.Equal(t, int64(1), snap.QueryTypeCounts[QueryTypeMixed])
	assert.Equal(t, map[string]int64{"products": 2, "orders": 1}, snap.AliasCounts)
	assert.Equal(t, []FieldCount{{Field: "price", Count: 3}, {Field: "title", Count: 1}}, snap.TopFields)
	assert.Equal(t, []string{"fulltext(\"lamp\")"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketP10])
	assert.InDelta(t, 33.3, snap.ZeroResultPercentage(), 0.1)
}

func TestQueryMetrics_ClosedIgnoresRecords(t *testing.T) {
	m := NewQueryMetrics(nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	m.Record(QueryEvent{Expression: "x"})

	assert.Equal(t, int64(0), m.Snapshot().TotalQueries)
}

func TestQueryMetrics_PersistsAcrossCollectors(t *testing.T) {
	// Given: a file store
	store := NewFileStore(filepath.Join(t.TempDir(), "metrics", "queries.json"))
	cfg := DefaultQueryMetricsConfig()
	cfg.FlushInterval = 0

	first := NewQueryMetricsWithConfig(store, cfg)
	first.Record(QueryEvent{Alias: "a", Expression: "q1", QueryType: QueryTypeFulltext, Fields: []string{"title"}, ResultCount: 0})
	require.NoError(t, first.Close())

	// When: a new collector starts on the same store
	second := NewQueryMetricsWithConfig(store, cfg)
	second.Record(QueryEvent{Alias: "a", Expression: "q2", QueryType: QueryTypeFulltext, Fields: []string{"title"}, ResultCount: 2})

	// Then: counts continue
	snap := second.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.QueryTypeCounts[QueryTypeFulltext])
	assert.Equal(t, []FieldCount{{Field: "title", Count: 2}}, snap.TopFields)
	assert.Equal(t, []string{"q1"}, snap.ZeroResultQueries)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.json"))

	snap, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(QueryEvent{Expression: "q", QueryType: QueryTypeStructured, ResultCount: 1})
				_ = m.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(400), m.Snapshot().TotalQueries)
}
