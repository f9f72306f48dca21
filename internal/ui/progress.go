package ui

import (
	"sync"
	"time"

	"github.com/Aman-CERP/searchkit/internal/index"
)

// speedWindow is the minimum interval between throughput samples.
const speedWindow = 500 * time.Millisecond

// etaSmoothing weighs a new ETA estimate against the previous one.
const etaSmoothing = 0.3

// SpeedStats are document throughputs in documents per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Alias     string
	Index     string
	Phase     index.Phase
	Processed int
	Total     int
	Failed    int
	Progress  float64
	ETA       time.Duration
	Speed     SpeedStats
	Err       error
}

// ProgressTracker folds index events into display state. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu  sync.Mutex
	now func() time.Time

	alias, index string
	phase        index.Phase
	processed    int
	total        int
	failed       int
	err          error
	phaseStart   time.Time

	lastProcessed int
	lastSample    time.Time
	speed         SpeedStats
	samples       int
	lastETA       time.Duration
	sparkline     *Sparkline
}

// NewProgressTracker returns an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{now: now, phaseStart: t, lastSample: t, sparkline: NewSparkline(60)}
}

// OnEvent records e.
func (p *ProgressTracker) OnEvent(e index.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index == "" {
		p.alias, p.index = e.Alias, e.Index
	}
	if e.Phase != p.phase {
		p.phase = e.Phase
		p.phaseStart = p.now()
		p.lastSample = p.phaseStart
		p.lastProcessed = 0
		p.lastETA = 0
		p.speed.Current = 0
	}
	p.processed = e.Processed
	p.total = e.Total
	if e.Failed > p.failed {
		p.failed = e.Failed
	}
	if e.Err != nil {
		p.err = e.Err
	}

	now := p.now()
	if elapsed := now.Sub(p.lastSample); elapsed >= speedWindow {
		if delta := e.Processed - p.lastProcessed; delta > 0 {
			v := float64(delta) / elapsed.Seconds()
			p.samples++
			p.speed.Current = v
			if p.samples == 1 {
				p.speed.Avg = v
			} else {
				p.speed.Avg = 0.2*v + 0.8*p.speed.Avg
			}
			p.speed.Peak = max(p.speed.Peak, v)
			p.sparkline.Add(v)
		}
		p.lastProcessed = e.Processed
		p.lastSample = now
	}
}

// Stats returns the current snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = min(1, float64(p.processed)/float64(p.total))
	}
	return ProgressStats{
		Alias:     p.alias,
		Index:     p.index,
		Phase:     p.phase,
		Processed: p.processed,
		Total:     p.total,
		Failed:    p.failed,
		Progress:  progress,
		ETA:       p.eta(progress),
		Speed:     p.speed,
		Err:       p.err,
	}
}

// eta extrapolates the phase duration, smoothed against the previous
// estimate. Callers hold p.mu.
func (p *ProgressTracker) eta(progress float64) time.Duration {
	if progress <= 0 || progress >= 1 {
		return 0
	}
	elapsed := p.now().Sub(p.phaseStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA > 0 {
		raw = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(p.lastETA))
	}
	p.lastETA = raw
	return raw
}

// RenderSparkline draws the throughput history.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sparkline.Render(width)
}
