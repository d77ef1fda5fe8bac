// Package export renders stored telemetry as standalone SVG charts.
package export

import (
	"errors"
	"fmt"
	"strings"
)

var ErrTooFewPoints = errors.New("export: need at least two points")

type Point struct{ X, Y float64 }

// Chart is a single polyline on a dark background.
type Chart struct {
	Width, Height int
	Stroke        string
	Title         string
}

func DefaultChart() Chart {
	return Chart{Width: 800, Height: 300, Stroke: "#00ffff"}
}

// Series plots ys against xs, e.g. a telemetry column against time.
func (c Chart) Series(xs, ys []float64) (string, error) {
	n := min(len(xs), len(ys))
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		pts[i] = Point{xs[i], ys[i]}
	}
	return c.Path(pts)
}

// Path plots points in order, scaled to fit with a 10% margin. Y grows up.
func (c Chart) Path(pts []Point) (string, error) {
	if len(pts) < 2 {
		return "", ErrTooFewPoints
	}

	lo, hi := pts[0], pts[0]
	for _, p := range pts {
		lo.X, hi.X = min(lo.X, p.X), max(hi.X, p.X)
		lo.Y, hi.Y = min(lo.Y, p.Y), max(hi.Y, p.Y)
	}
	spanX, spanY := hi.X-lo.X, hi.Y-lo.Y
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	lo.X -= spanX * 0.1
	lo.Y -= spanY * 0.1
	spanX *= 1.2
	spanY *= 1.2

	w, h := float64(c.Width), float64(c.Height)
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, c.Width, c.Height, c.Width, c.Height)
	if c.Title != "" {
		fmt.Fprintf(&sb, `<text x="8" y="16" fill="#888899" font-family="monospace" font-size="12">%s</text>
`, escape(c.Title))
	}
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, c.Stroke)
	for i, p := range pts {
		x := (p.X - lo.X) / spanX * w
		y := h - (p.Y-lo.Y)/spanY*h
		if i == 0 {
			fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>
`)
	return sb.String(), nil
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
