// Package telemetry collects search query metrics: expression shapes,
// latency histogram, most used fields and zero-result queries.
// All data stays local.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryType classifies a search by the expression nodes it contains.
type QueryType string

const (
	// QueryTypeStructured has no free-text node.
	QueryTypeStructured QueryType = "structured"
	// QueryTypeFulltext has only free-text constraints.
	QueryTypeFulltext QueryType = "fulltext"
	// QueryTypeMixed combines both.
	QueryTypeMixed QueryType = "mixed"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one executed search.
type QueryEvent struct {
	Alias       string
	Expression  string
	QueryType   QueryType
	Fields      []string
	ResultCount int64
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult returns true if this query matched nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// FieldCount is a field and how many searches constrained it.
type FieldCount struct {
	Field string `json:"field"`
	Count int64  `json:"count"`
}

// QueryMetricsSnapshot is an immutable snapshot of query metrics.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	AliasCounts         map[string]int64        `json:"alias_counts"`
	TopFields           []FieldCount            `json:"top_fields"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Store persists snapshots between processes.
type Store interface {
	Load() (*QueryMetricsSnapshot, error)
	Save(*QueryMetricsSnapshot) error
}

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopFieldsCapacity     int           // default 100
	ZeroResultsCapacity   int           // default 100
	RecentQueriesCapacity int           // default 500
	FlushInterval         time.Duration // 0 disables auto-flush
}

// DefaultQueryMetricsConfig returns sensible defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopFieldsCapacity:     100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         time.Minute,
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	queryTypes       map[QueryType]int64
	aliases          map[string]int64
	topFields        *lru.Cache[string, int64]
	zeroResults      *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	totalQueries     int64
	zeroResultCount  int64
	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64
	startTime        time.Time

	store       Store
	config      QueryMetricsConfig
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with default configuration. If
// store is nil, metrics are only kept in memory.
func NewQueryMetrics(store Store) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector. Counts already in store
// are loaded and continued.
func NewQueryMetricsWithConfig(store Store, cfg QueryMetricsConfig) *QueryMetrics {
	if cfg.TopFieldsCapacity <= 0 {
		cfg.TopFieldsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = 500
	}

	topFields, _ := lru.New[string, int64](cfg.TopFieldsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		queryTypes:    make(map[QueryType]int64),
		aliases:       make(map[string]int64),
		topFields:     topFields,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		recentQueries: recentQueries,
		startTime:     time.Now(),
		store:         store,
		config:        cfg,
		stopCh:        make(chan struct{}),
	}
	if store != nil {
		if prev, err := store.Load(); err == nil && prev != nil {
			m.restore(prev)
		}
	}
	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) restore(s *QueryMetricsSnapshot) {
	for k, v := range s.QueryTypeCounts {
		m.queryTypes[k] = v
	}
	for k, v := range s.AliasCounts {
		m.aliases[k] = v
	}
	for k, v := range s.LatencyDistribution {
		m.latencies[k] = v
	}
	for i := len(s.TopFields) - 1; i >= 0; i-- {
		m.topFields.Add(s.TopFields[i].Field, s.TopFields[i].Count)
	}
	for _, q := range s.ZeroResultQueries {
		m.zeroResults.Add(q)
	}
	m.totalQueries = s.TotalQueries
	m.zeroResultCount = s.ZeroResultCount
	m.exactRepeatCount = s.ExactRepeatCount
	if !s.Since.IsZero() {
		m.startTime = s.Since
	}
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures metrics from one search.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.queryTypes[event.QueryType]++
	m.totalQueries++
	if event.Alias != "" {
		m.aliases[event.Alias]++
	}

	seen := make(map[string]bool, len(event.Fields))
	for _, f := range event.Fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		count, _ := m.topFields.Get(f)
		m.topFields.Add(f, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Expression)
		m.zeroResultCount++
	}

	m.latencies[LatencyToBucket(event.Latency)]++

	queryHash := hashQuery(event.Alias + "\x00" + event.Expression)
	if _, exists := m.recentQueries.Get(queryHash); exists {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(queryHash, struct{}{})
}

func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns current metrics for reporting.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *QueryMetrics) snapshotLocked() *QueryMetricsSnapshot {
	typeCounts := make(map[QueryType]int64, len(m.queryTypes))
	for k, v := range m.queryTypes {
		typeCounts[k] = v
	}
	aliases := make(map[string]int64, len(m.aliases))
	for k, v := range m.aliases {
		aliases[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var topFields []FieldCount
	for _, key := range m.topFields.Keys() {
		if count, ok := m.topFields.Peek(key); ok {
			topFields = append(topFields, FieldCount{Field: key, Count: count})
		}
	}
	sort.SliceStable(topFields, func(i, j int) bool {
		if topFields[i].Count != topFields[j].Count {
			return topFields[i].Count > topFields[j].Count
		}
		return topFields[i].Field < topFields[j].Field
	})

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     typeCounts,
		AliasCounts:         aliases,
		TopFields:           topFields,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeatCount,
		Since:               m.startTime,
	}
}

// Flush persists the current snapshot. Safe to call without a store.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(m.Snapshot())
}

// Close stops auto-flush and flushes once more.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
