// Package async runs index builds in the background and tracks their
// progress for status reporting.
package async

import (
	"sync"
	"time"

	"github.com/Aman-CERP/searchkit/internal/index"
)

// BuildStatus represents the overall state of one build.
type BuildStatus string

const (
	// StatusBuilding indicates the build is in progress.
	StatusBuilding BuildStatus = "building"
	// StatusReady indicates the alias serves the new generation.
	StatusReady BuildStatus = "ready"
	// StatusError indicates the build failed.
	StatusError BuildStatus = "error"
)

// ProgressSnapshot is an immutable snapshot of build progress.
type ProgressSnapshot struct {
	Alias          string  `json:"alias"`
	Index          string  `json:"index"`
	Status         string  `json:"status"`
	Phase          string  `json:"phase"`
	DocsTotal      int     `json:"docs_total"`
	DocsProcessed  int     `json:"docs_processed"`
	DocsFailed     int     `json:"docs_failed"`
	DeltaReplayed  int     `json:"delta_replayed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// BuildProgress tracks one build. It implements index.ProgressListener
// and is safe for concurrent use.
type BuildProgress struct {
	mu sync.RWMutex

	alias         string
	index         string
	status        BuildStatus
	phase         index.Phase
	docsTotal     int
	docsProcessed int
	docsFailed    int
	deltaReplayed int
	startTime     time.Time
	errorMessage  string

	next index.ProgressListener
}

// NewBuildProgress creates a tracker. Events are forwarded to next when it
// is not nil.
func NewBuildProgress(next index.ProgressListener) *BuildProgress {
	return &BuildProgress{
		status:    StatusBuilding,
		phase:     index.PhaseCreateIndex,
		startTime: time.Now(),
		next:      next,
	}
}

// OnEvent records e.
func (p *BuildProgress) OnEvent(e index.Event) {
	p.mu.Lock()
	p.alias = e.Alias
	if p.index == "" {
		p.index = e.Index
	}
	p.phase = e.Phase
	switch e.Phase {
	case index.PhaseAddDocuments:
		p.docsTotal = e.Total
		p.docsProcessed = e.Processed
		p.docsFailed = e.Failed
	case index.PhaseProcessDelta:
		p.deltaReplayed += e.Processed
		p.docsFailed += e.Failed
	case index.PhaseEnd:
		p.status = StatusReady
	case index.PhaseError:
		p.status = StatusError
		if e.Err != nil {
			p.errorMessage = e.Err.Error()
		}
	}
	p.mu.Unlock()

	if p.next != nil {
		p.next.OnEvent(e)
	}
}

// SetError marks the build as failed.
func (p *BuildProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// IsBuilding returns true while the build has not finished.
func (p *BuildProgress) IsBuilding() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusBuilding
}

// Snapshot returns an immutable copy of the current progress state.
func (p *BuildProgress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.docsTotal > 0 {
		progressPct = float64(p.docsProcessed) / float64(p.docsTotal) * 100.0
	}
	if p.status == StatusReady {
		progressPct = 100.0
	}

	return ProgressSnapshot{
		Alias:          p.alias,
		Index:          p.index,
		Status:         string(p.status),
		Phase:          p.phase.String(),
		DocsTotal:      p.docsTotal,
		DocsProcessed:  p.docsProcessed,
		DocsFailed:     p.docsFailed,
		DeltaReplayed:  p.deltaReplayed,
		ProgressPct:    progressPct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
