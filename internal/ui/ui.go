// Package ui renders index build progress and alias status in the
// terminal: a bubbletea view for interactive terminals and plain lines for
// pipes and CI.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/index"
)

// PhaseLabel returns the short label of p for plain output.
func PhaseLabel(p index.Phase) string {
	switch p {
	case index.PhaseCreateIndex:
		return "CREATE"
	case index.PhaseAddDocuments:
		return "ADD"
	case index.PhaseSetAlias:
		return "ALIAS"
	case index.PhaseProcessDelta:
		return "DELTA"
	case index.PhaseDeleteOldIndex:
		return "RETIRE"
	case index.PhaseEnd:
		return "DONE"
	case index.PhaseError:
		return "ERROR"
	}
	return "???"
}

// Renderer displays the progress of one build. Events arrive through
// OnEvent from the building goroutine.
type Renderer interface {
	index.ProgressListener

	Start(ctx context.Context) error

	// Complete shows the final summary.
	Complete(summary async.ProgressSnapshot)

	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool

	// Title heads the interactive view, typically the alias.
	Title string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables colors.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets the interactive view title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// NewConfig returns a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, NoColor: DetectNoColor()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the interactive renderer for terminals and the
// plain one for pipes, CI or when forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI reports whether a CI environment is detected.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
