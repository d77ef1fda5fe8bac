package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/rotorbridge/internal/experiment"
	"github.com/san-kum/rotorbridge/internal/msgs"
)

const (
	canvasCols      = 40
	canvasRows      = 16
	historyCapacity = 600
	graphWidth      = 40
)

type sampleMsg experiment.Sample

type doneMsg Done

// Monitor is the Bubble Tea model for a running flight.
type Monitor struct {
	title  string
	feed   *Feed
	cancel func()

	theme  Theme
	st     styles
	canvas *Canvas

	last     experiment.Sample
	seen     bool
	altitude []float64
	thrust   []float64
	voltage  []float64
	trail    []struct{ x, y int }
	triggers int
	applied  int
	peakFreq float64

	frozen   bool
	showHelp bool
	done     *Done
}

// NewMonitor builds a monitor reading from feed. cancel stops the flight when
// the user quits and may be nil.
func NewMonitor(title string, feed *Feed, cancel func()) *Monitor {
	t := Themes[0]
	return &Monitor{
		title:  title,
		feed:   feed,
		cancel: cancel,
		theme:  t,
		st:     newStyles(t),
		canvas: NewCanvas(canvasCols, canvasRows),
	}
}

func (m *Monitor) SetTheme(name string) {
	m.theme = GetTheme(name)
	m.st = newStyles(m.theme)
}

func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.waitSample(), m.waitDone())
}

func (m *Monitor) waitSample() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.feed.samples
		if !ok {
			return nil
		}
		return sampleMsg(s)
	}
}

func (m *Monitor) waitDone() tea.Cmd {
	return func() tea.Msg { return doneMsg(<-m.feed.done) }
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
		case "t":
			m.theme = nextTheme(m.theme)
			m.st = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case sampleMsg:
		m.observe(experiment.Sample(msg))
		return m, m.waitSample()
	case doneMsg:
		d := Done(msg)
		m.done = &d
	}
	return m, nil
}

func (m *Monitor) observe(s experiment.Sample) {
	if m.frozen {
		return
	}
	m.last, m.seen = s, true
	if s.Trigger {
		m.triggers++
	}
	if s.Applied {
		m.applied++
	}
	for _, f := range s.Frequency {
		m.peakFreq = math.Max(m.peakFreq, f)
	}
	m.altitude = push(m.altitude, s.Position.Z)
	m.thrust = push(m.thrust, s.Thrust)
	m.voltage = push(m.voltage, s.Voltage)
}

func push(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

// draw renders a side view: horizontal position against altitude, with the
// arms tilted by the roll angle.
func (m *Monitor) draw() {
	m.canvas.Clear()
	w, h := m.canvas.Dots()
	ground := h - 2
	m.canvas.Line(0, ground, w-1, ground)
	if !m.seen {
		return
	}

	const pxPerMeter = 12.0
	cx := w/2 + int(m.last.Position.Y*pxPerMeter)
	cy := ground - 3 - int(m.last.Position.Z*pxPerMeter)

	m.trail = append(m.trail, struct{ x, y int }{cx, cy})
	if len(m.trail) > 60 {
		m.trail = m.trail[1:]
	}
	for _, p := range m.trail {
		m.canvas.Set(p.x, p.y)
	}

	arm := 10.0
	c, s := math.Cos(m.last.Roll), math.Sin(m.last.Roll)
	lx, ly := cx-int(arm*c), cy+int(arm*s)
	rx, ry := cx+int(arm*c), cy-int(arm*s)
	m.canvas.Line(lx, ly, rx, ry)
	m.canvas.Line(lx-3, ly-2, lx+3, ly-2)
	m.canvas.Line(rx-3, ry-2, rx+3, ry-2)
}

func (m *Monitor) status() string {
	switch {
	case m.done != nil && m.done.Err != nil:
		return m.st.bad.Render("FAILED: " + m.done.Err.Error())
	case m.done != nil:
		return m.st.good.Render("FINISHED")
	case m.frozen:
		return m.st.warn.Render("FROZEN")
	case m.seen && !m.last.On:
		return m.st.bad.Render("MOTORS OFF")
	}
	return m.st.good.Render("FLYING")
}

func (m *Monitor) row(label, value string) string {
	return m.st.label.Render(label) + m.st.value.Render(value) + "\n"
}

func (m *Monitor) graph(series []float64, caption string) string {
	if len(series) < 2 {
		return ""
	}
	g := asciigraph.Plot(series,
		asciigraph.Height(4),
		asciigraph.Width(graphWidth),
		asciigraph.Precision(2),
		asciigraph.Caption(caption))
	return m.st.graph.Render(g) + "\n"
}

func (m *Monitor) View() string {
	m.draw()

	var s strings.Builder
	s.WriteString(m.st.header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")
	s.WriteString(m.row("Time", fmt.Sprintf("%.2fs", m.last.Time.Seconds())))
	s.WriteString(m.row("Altitude", fmt.Sprintf("%.3f m", m.last.Position.Z)))
	s.WriteString(m.row("Attitude", fmt.Sprintf("r %+.1f° p %+.1f° y %+.1f°",
		deg(m.last.Roll), deg(m.last.Pitch), deg(m.last.Yaw))))
	s.WriteString(m.row("Thrust", fmt.Sprintf("%.2f N", m.last.Thrust)))
	s.WriteString(m.row("Supply", fmt.Sprintf("%.2f V  %.1f A", m.last.Voltage, m.last.Current)))
	s.WriteString(m.row("Commands", fmt.Sprintf("%d/%d applied", m.applied, m.triggers)))

	s.WriteString("\nMOTORS\n")
	for i := 0; i < msgs.NumMotors; i++ {
		f := 0.0
		if i < len(m.last.Frequency) {
			f = m.last.Frequency[i]
		}
		frac := 0.0
		if m.peakFreq > 0 {
			frac = f / m.peakFreq
		}
		s.WriteString(fmt.Sprintf("  m%d %s %6.1f Hz\n", i, m.st.bar(frac, 12), f))
	}
	s.WriteString(m.st.help.Render("SP:Freeze T:Theme ?:Help Q:Quit"))
	stats := m.st.panel.Render(s.String())

	graphs := m.graph(m.altitude, "altitude [m]") +
		m.graph(m.thrust, "thrust [N]") +
		m.graph(m.voltage, "supply [V]")

	left := lipgloss.JoinVertical(lipgloss.Left, m.st.panel.Render(m.canvas.String()), graphs)
	main := lipgloss.JoinHorizontal(lipgloss.Top, left, stats)
	if m.showHelp {
		help := m.st.panel.Render(strings.Join([]string{
			"Space  freeze/unfreeze the display",
			"T      cycle themes (" + strings.Join(ThemeNames(), ", ") + ")",
			"?      toggle this help",
			"Q      stop the flight and quit",
		}, "\n"))
		return help + "\n\n" + main
	}
	return main
}

func deg(rad float64) float64 { return rad * 180 / math.Pi }

// Run shows the monitor until the user quits.
func Run(m *Monitor) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
