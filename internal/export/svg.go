package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/mechsim/internal/sim"
	"github.com/san-kum/mechsim/internal/viz"
)

const svgBackground = "#0a0a0a"

// Palette colours successive trajectories.
var Palette = []string{"#00ff00", "#00ffff", "#ff00ff", "#ffd700", "#ff7f50", "#88aaff"}

// CanvasToSVG draws every set dot of canvas as a circle, scale pixels apart.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	dotsX, dotsY := canvas.Dots()
	width := float64(dotsX) * scale
	height := float64(dotsY) * scale

	var sb strings.Builder
	writeHeader(&sb, width, height)
	sb.WriteString(`<g fill="#00ff00">` + "\n")

	dotRadius := scale * 0.4
	for y := 0; y < dotsY; y++ {
		for x := 0; x < dotsX; x++ {
			if !canvas.IsSet(x, y) {
				continue
			}
			cx := float64(x)*scale + scale/2
			cy := float64(y)*scale + scale/2
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`+"\n", cx, cy, dotRadius)
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Path is one polyline in model coordinates.
type Path struct {
	Color  string
	Points [][2]float64
}

// FrameTrajectories turns recorded frames into one path per point, taking
// the first two of every dim coordinates. dim 1 plots x against time.
func FrameTrajectories(frames []sim.Frame, dim int) []Path {
	if len(frames) == 0 || dim < 1 {
		return nil
	}
	n := len(frames[0].Positions) / dim
	paths := make([]Path, n)
	for i := range paths {
		paths[i].Color = Palette[i%len(Palette)]
		paths[i].Points = make([][2]float64, 0, len(frames))
	}
	for _, f := range frames {
		for i := 0; i < n && (i+1)*dim <= len(f.Positions); i++ {
			p := [2]float64{f.Time, f.Positions[i*dim]}
			if dim > 1 {
				p = [2]float64{f.Positions[i*dim], f.Positions[i*dim+1]}
			}
			paths[i].Points = append(paths[i].Points, p)
		}
	}
	return paths
}

type bounds struct{ minX, minY, maxX, maxY float64 }

func fit(paths []Path) (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, p := range paths {
		for _, pt := range p.Points {
			if !finite(pt[0]) || !finite(pt[1]) {
				continue
			}
			b.minX, b.maxX = math.Min(b.minX, pt[0]), math.Max(b.maxX, pt[0])
			b.minY, b.maxY = math.Min(b.minY, pt[1]), math.Max(b.maxY, pt[1])
			found = true
		}
	}
	if !found {
		return b, false
	}

	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
	return b, true
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// TrajectoryToSVG fits all paths into a width x height picture. Paths with
// fewer than two points are skipped; non-finite points break a path.
func TrajectoryToSVG(paths []Path, width, height int) string {
	b, ok := fit(paths)
	if !ok {
		return ""
	}
	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY

	var sb strings.Builder
	writeHeader(&sb, float64(width), float64(height))

	for _, p := range paths {
		if len(p.Points) < 2 {
			continue
		}
		color := p.Color
		if color == "" {
			color = Palette[0]
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, color)
		move := true
		for _, pt := range p.Points {
			if !finite(pt[0]) || !finite(pt[1]) {
				move = true
				continue
			}
			x := (pt[0] - b.minX) / rangeX * float64(width)
			y := float64(height) - (pt[1]-b.minY)/rangeY*float64(height)
			cmd := "L"
			if move {
				cmd = "M"
				move = false
			}
			fmt.Fprintf(&sb, "%s%.1f,%.1f ", cmd, x, y)
		}
		sb.WriteString(`"/>` + "\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// WriteTrajectories renders the frames' trajectories to w.
func WriteTrajectories(w io.Writer, frames []sim.Frame, dim, width, height int) error {
	svg := TrajectoryToSVG(FrameTrajectories(frames, dim), width, height)
	if svg == "" {
		return fmt.Errorf("export: nothing to draw")
	}
	_, err := io.WriteString(w, svg)
	return err
}

func writeHeader(sb *strings.Builder, width, height float64) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, svgBackground)
}
