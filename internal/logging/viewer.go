package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig filters and styles viewer output.
type ViewerConfig struct {
	Level   string
	Pattern *regexp.Regexp
	NoColor bool
}

// Viewer reads, filters and prints log files written by Setup.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	levels map[string]lipgloss.Style
}

// NewViewer returns a viewer printing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{
		config: cfg,
		out:    out,
		levels: map[string]lipgloss.Style{
			"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

const maxLineSize = 1 << 20

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var entries []LogEntry
	for _, line := range ring {
		if e := ParseLine(line); v.matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Follow sends matching entries appended to path after the call until ctx
// is done. It wakes on file write events.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()
	if err := fsw.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	reader := bufio.NewReader(f)
	var partial string
	drain := func() bool {
		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err != nil {
				return true
			}
			line := strings.TrimSuffix(partial, "\n")
			partial = ""
			if line == "" {
				continue
			}
			if e := ParseLine(line); v.matches(e) {
				select {
				case entries <- e:
				case <-ctx.Done():
					return false
				}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Write) && !drain() {
				return nil
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
}

// ParseLine parses one JSON line. Lines that are not JSON come back with
// IsValid unset and only Raw filled.
func ParseLine(line string) LogEntry {
	e := LogEntry{Raw: line}
	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return e
	}
	e.IsValid = true
	if t, ok := data["time"].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, t)
	}
	e.Level, _ = data["level"].(string)
	e.Msg, _ = data["msg"].(string)
	delete(data, "time")
	delete(data, "level")
	delete(data, "msg")
	e.Attrs = data
	return e
}

// FormatEntry renders e on one line with attributes sorted by key.
func (v *Viewer) FormatEntry(e LogEntry) string {
	if !e.IsValid {
		return e.Raw
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(e.Level))
	b.WriteByte(' ')
	b.WriteString(e.Msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

// Print writes entries to the viewer's output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(e))
	}
}

func (v *Viewer) matches(e LogEntry) bool {
	if v.config.Level != "" && LevelFromString(e.Level) < LevelFromString(v.config.Level) {
		return false
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	padded := fmt.Sprintf("%-5s", label)
	if v.config.NoColor {
		return padded
	}
	if style, ok := v.levels[label]; ok {
		return style.Render(padded)
	}
	return padded
}
