package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header lipgloss.Style
	panel  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	graph  lipgloss.Style
	help   lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).MarginBottom(1),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		label: lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value: lipgloss.NewStyle().Foreground(t.Text),
		graph: lipgloss.NewStyle().Foreground(t.Accent),
		help:  lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		good:  lipgloss.NewStyle().Bold(true).Foreground(t.Good),
		warn:  lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		bad:   lipgloss.NewStyle().Bold(true).Foreground(t.Bad),
	}
}

// bar renders a fill level in [0,1], colored by how close it is to full.
func (s styles) bar(frac float64, width int) string {
	filled := int(frac*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	b := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case frac > 0.8:
		return s.bad.Render(b)
	case frac > 0.4:
		return s.warn.Render(b)
	}
	return s.good.Render(b)
}

// Sparkline squeezes values into width block characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	ticks := []rune("▁▂▃▄▅▆▇█")

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	step := max(len(values)/width, 1)
	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		idx := int((values[i*step] - lo) / span * float64(len(ticks)-1))
		b.WriteRune(ticks[max(0, min(idx, len(ticks)-1))])
	}
	return b.String()
}
