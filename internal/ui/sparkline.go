package ui

import "strings"

// sparkBlocks are the eight bar heights, lowest first.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the most recent samples in a ring and renders them as
// block characters scaled to the largest sample held.
type Sparkline struct {
	samples []float64
	head    int
	count   int
}

// NewSparkline holds up to capacity samples; non-positive means 60.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add appends a sample, overwriting the oldest once full.
func (s *Sparkline) Add(v float64) {
	s.samples[s.head] = v
	s.head = (s.head + 1) % len(s.samples)
	if s.count < len(s.samples) {
		s.count++
	}
}

// Clear drops every sample.
func (s *Sparkline) Clear() {
	s.head, s.count = 0, 0
}

// Len returns the number of samples held.
func (s *Sparkline) Len() int { return s.count }

// Render draws the newest width samples, oldest on the left, padded with
// spaces on the right. Non-positive width draws every sample held.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = len(s.samples)
	}
	n := min(s.count, width)
	recent := make([]float64, n)
	peak := 0.0
	for i := 0; i < n; i++ {
		idx := (s.head - n + i + len(s.samples)) % len(s.samples)
		recent[i] = s.samples[idx]
		peak = max(peak, recent[i])
	}

	var b strings.Builder
	for _, v := range recent {
		level := 0
		if peak > 0 {
			level = int(v / peak * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[max(0, min(level, len(sparkBlocks)-1))])
	}
	b.WriteString(strings.Repeat(" ", width-n))
	return b.String()
}
