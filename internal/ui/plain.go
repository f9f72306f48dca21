package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/index"
)

// PlainRenderer prints one line per event, for CI and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewPlainRenderer returns a plain renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, styles: GetStyles(cfg.NoColor)}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// OnEvent implements index.ProgressListener.
func (r *PlainRenderer) OnEvent(e index.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := "[" + PhaseLabel(e.Phase) + "]"
	switch {
	case e.Phase == index.PhaseError:
		_, _ = fmt.Fprintf(r.out, "%s %s: %v\n", r.styles.Error.Render(label), e.Index, e.Err)
	case e.Total > 0:
		_, _ = fmt.Fprintf(r.out, "%s %d/%d %s\n", label, e.Processed, e.Total, e.Index)
	case e.Processed > 0:
		_, _ = fmt.Fprintf(r.out, "%s %d %s\n", label, e.Processed, e.Index)
	default:
		_, _ = fmt.Fprintf(r.out, "%s %s\n", label, e.Index)
	}
	if e.Failed > 0 && e.Phase != index.PhaseError {
		_, _ = fmt.Fprintf(r.out, "%s %d documents rejected so far\n", r.styles.Warning.Render("WARN:"), e.Failed)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s async.ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Status == string(async.StatusError) {
		_, _ = fmt.Fprintf(r.out, "%s %s: %s\n", r.styles.Error.Render("Failed:"), s.Alias, s.ErrorMessage)
		return
	}
	_, _ = fmt.Fprintf(r.out, "Complete: %s -> %s, %d documents", s.Alias, s.Index, s.DocsProcessed)
	if s.DeltaReplayed > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d replayed", s.DeltaReplayed)
	}
	if s.DocsFailed > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d rejected", s.DocsFailed)
	}
	_, _ = fmt.Fprintf(r.out, " in %s\n", time.Duration(s.ElapsedSeconds)*time.Second)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

var _ Renderer = (*PlainRenderer)(nil)
