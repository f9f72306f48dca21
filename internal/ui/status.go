package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/index"
	"github.com/Aman-CERP/searchkit/internal/telemetry"
)

// AliasStatus describes one alias for `searchkit alias status`.
type AliasStatus struct {
	Alias         string                  `json:"alias"`
	Live          string                  `json:"live,omitempty"`
	Generations   []index.Generation      `json:"generations"`
	SchemaVersion int                     `json:"schema_version"`
	NeedsRebuild  bool                    `json:"needs_rebuild"`
	Build         *async.ProgressSnapshot `json:"build,omitempty"`
}

// StatusRenderer prints alias status and query statistics.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer returns a status renderer writing to out.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// RenderAlias prints s.
func (r *StatusRenderer) RenderAlias(s AliasStatus) {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Alias: "+s.Alias))
	live := s.Live
	if live == "" {
		live = r.styles.Warning.Render("none")
	}
	_, _ = fmt.Fprintf(r.out, "  Live index:     %s\n", live)
	_, _ = fmt.Fprintf(r.out, "  Schema version: %d", s.SchemaVersion)
	if s.NeedsRebuild {
		_, _ = fmt.Fprintf(r.out, " %s", r.styles.Warning.Render("(rebuild needed)"))
	}
	_, _ = fmt.Fprintln(r.out)

	if len(s.Generations) > 0 {
		_, _ = fmt.Fprintln(r.out, "\n  Generations:")
		for _, g := range s.Generations {
			line := fmt.Sprintf("    %-40s v%-3d %s", g.Index, g.Version, r.renderState(g.StateName))
			if !g.CreatedAt.IsZero() {
				line += "  " + r.styles.Dim.Render(formatAge(g.CreatedAt, time.Now()))
			}
			_, _ = fmt.Fprintln(r.out, line)
		}
	}
	if b := s.Build; b != nil {
		_, _ = fmt.Fprintf(r.out, "\n  Build: %s %s %d/%d (%.0f%%)\n",
			r.renderState(b.Status), b.Phase, b.DocsProcessed, b.DocsTotal, b.ProgressPct)
		if b.ErrorMessage != "" {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Error.Render(b.ErrorMessage))
		}
	}
}

// RenderQueryStats prints a telemetry snapshot.
func (r *StatusRenderer) RenderQueryStats(s *telemetry.QueryMetricsSnapshot) {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Query statistics"))
	_, _ = fmt.Fprintf(r.out, "  Queries:      %d", s.TotalQueries)
	if !s.Since.IsZero() {
		_, _ = fmt.Fprintf(r.out, " since %s", s.Since.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Zero results: %d (%.1f%%)\n", s.ZeroResultCount, s.ZeroResultPercentage())
	_, _ = fmt.Fprintf(r.out, "  Repeats:      %d\n", s.ExactRepeatCount)

	_, _ = fmt.Fprintln(r.out, "\n  Latency:")
	for _, b := range []telemetry.LatencyBucket{
		telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100, telemetry.BucketP500, telemetry.BucketP1000,
	} {
		_, _ = fmt.Fprintf(r.out, "    %-6s %d\n", b, s.LatencyDistribution[b])
	}
	if len(s.TopFields) > 0 {
		_, _ = fmt.Fprintln(r.out, "\n  Top fields:")
		for _, f := range s.TopFields {
			_, _ = fmt.Fprintf(r.out, "    %-24s %d\n", f.Field, f.Count)
		}
	}
}

// RenderJSON writes v as indented JSON.
func (r *StatusRenderer) RenderJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "live", "ready":
		return r.styles.Success.Render(state)
	case "error":
		return r.styles.Error.Render(state)
	default:
		return r.styles.Warning.Render(state)
	}
}

func formatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
