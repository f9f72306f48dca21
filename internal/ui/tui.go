package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/searchkit/internal/async"
	"github.com/Aman-CERP/searchkit/internal/index"
)

// TUIRenderer shows a live bubbletea view of a build.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *buildModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a terminal")
	}
	tracker := NewProgressTracker()
	model := newBuildModel(tracker, cfg.Title, GetStyles(cfg.NoColor))
	return &TUIRenderer{cfg: cfg, tracker: tracker, model: model, done: make(chan struct{})}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// OnEvent implements index.ProgressListener.
func (r *TUIRenderer) OnEvent(e index.Event) {
	r.tracker.OnEvent(e)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(eventMsg(e))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(s async.ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(s))
	}
}

// Stop implements Renderer. It waits up to two seconds for the view to
// finish drawing.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

var _ Renderer = (*TUIRenderer)(nil)

type (
	eventMsg    index.Event
	completeMsg async.ProgressSnapshot
	tickMsg     time.Time
)

// buildModel is the bubbletea model of one build.
type buildModel struct {
	tracker  *ProgressTracker
	title    string
	styles   Styles
	width    int
	spinner  spinner.Model
	bar      progress.Model
	summary  *async.ProgressSnapshot
	quitting bool
}

func newBuildModel(tracker *ProgressTracker, title string, styles Styles) *buildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Active
	return &buildModel{
		tracker: tracker,
		title:   title,
		styles:  styles,
		width:   80,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
	}
}

func (m *buildModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, msg.Width-20)
	case completeMsg:
		s := async.ProgressSnapshot(msg)
		m.summary = &s
		return m, tea.Quit
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// buildPhases are shown in order in the header.
var buildPhases = []index.Phase{
	index.PhaseCreateIndex,
	index.PhaseAddDocuments,
	index.PhaseProcessDelta,
	index.PhaseSetAlias,
	index.PhaseDeleteOldIndex,
}

func (m *buildModel) View() string {
	if m.quitting {
		return "Detached; the build continues in the background.\n"
	}
	if m.summary != nil {
		return m.viewSummary()
	}

	stats := m.tracker.Stats()
	width := max(40, m.width-4)

	var phases []string
	for _, p := range buildPhases {
		name := strings.ToLower(PhaseLabel(p))
		switch {
		case p == stats.Phase:
			phases = append(phases, m.styles.Active.Render(m.spinner.View()+" "+name))
		case phaseRank(p) < phaseRank(stats.Phase):
			phases = append(phases, m.styles.Success.Render("● "+name))
		default:
			phases = append(phases, m.styles.Dim.Render("○ "+name))
		}
	}

	lines := []string{
		strings.Join(phases, m.styles.Dim.Render(" → ")),
		m.styles.Border.Render(strings.Repeat("─", width)),
	}
	if stats.Total > 0 {
		lines = append(lines,
			m.bar.ViewAs(stats.Progress)+"  "+m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100)),
			m.styles.Label.Render(fmt.Sprintf("%d / %d documents", stats.Processed, stats.Total)))
	} else {
		lines = append(lines, m.styles.Label.Render(fmt.Sprintf("%d documents", stats.Processed)))
	}
	speed := fmt.Sprintf("Speed: %.0f/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg %.0f, peak %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	if stats.ETA > 0 {
		speed += "  •  ETA " + formatDuration(stats.ETA)
	}
	lines = append(lines, m.styles.Label.Render(speed), m.tracker.RenderSparkline(max(10, width-10)))
	if stats.Failed > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d documents rejected", stats.Failed)))
	}

	title := "searchkit build"
	if m.title != "" {
		title += " • " + m.title
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(strings.Join(lines, "\n")),
		m.styles.Dim.Render("q to detach"))
}

func (m *buildModel) viewSummary() string {
	s := m.summary
	if s.Status == string(async.StatusError) {
		return m.styles.Error.Render("✗ Build failed: "+s.ErrorMessage) + "\n"
	}
	lines := []string{
		m.styles.Success.Render("✓ " + s.Alias + " now serves " + s.Index),
		"",
		fmt.Sprintf("%s %d", m.styles.Label.Render("Documents:"), s.DocsProcessed),
		fmt.Sprintf("%s %d", m.styles.Label.Render("Replayed: "), s.DeltaReplayed),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration: "), formatDuration(time.Duration(s.ElapsedSeconds)*time.Second)),
	}
	if s.DocsFailed > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d documents rejected", s.DocsFailed)))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorGreen)).
		Padding(1, 2).
		Render(strings.Join(lines, "\n")) + "\n"
}

func phaseRank(p index.Phase) int {
	for i, q := range buildPhases {
		if q == p {
			return i
		}
	}
	return len(buildPhases)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
