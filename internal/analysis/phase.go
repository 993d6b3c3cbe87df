package analysis

import (
	"fmt"

	"github.com/san-kum/mechsim/internal/sim"
	"github.com/san-kum/mechsim/internal/viz"
)

// PhasePortrait is the trajectory of one coordinate in the (x, v) plane.
type PhasePortrait struct {
	Index  int
	Points [][2]float64
}

func NewPhasePortrait(frames []sim.Frame, index int) (*PhasePortrait, error) {
	xs, err := Series(frames, "x", index)
	if err != nil {
		return nil, err
	}
	vs, err := Series(frames, "v", index)
	if err != nil {
		return nil, err
	}
	p := &PhasePortrait{Index: index, Points: make([][2]float64, len(xs))}
	for i := range xs {
		p.Points[i] = [2]float64{xs[i], vs[i]}
	}
	return p, nil
}

// Render draws the portrait on a braille canvas of the given size in
// cells, joining consecutive samples with lines.
func (p *PhasePortrait) Render(width, height int) string {
	return renderPoints(p.Points, width, height, true)
}

func renderPoints(points [][2]float64, width, height int, join bool) string {
	c := viz.NewCanvas(width, height)
	view := viz.Viewport{}.Fit(points)

	prevOK := false
	var px, py int
	for _, pt := range points {
		if !finite(pt[0]) || !finite(pt[1]) {
			prevOK = false
			continue
		}
		x, y := view.Project(c, pt[0], pt[1])
		if join && prevOK {
			c.DrawLine(px, py, x, y)
		} else {
			c.Set(x, y)
		}
		px, py, prevOK = x, y, true
	}
	return c.String()
}

// PoincareSection holds the states where a coordinate crossed a level
// going upward.
type PoincareSection struct {
	Points [][2]float64
}

// NewPoincareSection samples (x[recordX], v[recordX]) at every upward
// crossing of x[crossIdx] through level, interpolating linearly between
// the frames around the crossing.
func NewPoincareSection(frames []sim.Frame, crossIdx int, level float64, recordX int) (*PoincareSection, error) {
	cross, err := Series(frames, "x", crossIdx)
	if err != nil {
		return nil, err
	}
	portrait, err := NewPhasePortrait(frames, recordX)
	if err != nil {
		return nil, fmt.Errorf("record coordinate: %w", err)
	}

	section := &PoincareSection{}
	for i := 1; i < len(cross); i++ {
		prev, curr := cross[i-1], cross[i]
		if !(prev < level && curr >= level) {
			continue
		}
		frac := (level - prev) / (curr - prev)
		a, b := portrait.Points[i-1], portrait.Points[i]
		section.Points = append(section.Points, [2]float64{
			a[0] + frac*(b[0]-a[0]),
			a[1] + frac*(b[1]-a[1]),
		})
	}
	return section, nil
}

func (s *PoincareSection) Render(width, height int) string {
	if len(s.Points) == 0 {
		return "no crossings detected"
	}
	return renderPoints(s.Points, width, height, false)
}
