package viz

import (
	"math"
	"strings"
)

// Braille cells are 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
const brailleBlank = 0x2800

var dotBits = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells addressed in dots; it is Width*2 dots
// wide and Height*4 dots tall.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Dots() (int, int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) cell(x, y int) (*rune, rune, bool) {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return nil, 0, false
	}
	return &c.cells[y/4][x/2], dotBits[y%4][x%2], true
}

// Set lights the dot at (x, y). Dots off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if r, bit, ok := c.cell(x, y); ok {
		*r |= bit
	}
}

func (c *Canvas) IsSet(x, y int) bool {
	r, bit, ok := c.cell(x, y)
	return ok && *r&bit != 0
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		for j := range c.cells[i] {
			c.cells[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a Bresenham line between two dots.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Blob draws a 2x2 dot marker centred near (x, y).
func (c *Canvas) Blob(x, y int) {
	c.Set(x, y)
	c.Set(x+1, y)
	c.Set(x, y+1)
	c.Set(x+1, y+1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps world coordinates (y up) onto canvas dots (y down).
type Viewport struct {
	MinX, MinY, MaxX, MaxY float64
}

// Fit returns a viewport around the given points with a margin. It only
// grows, so a settling scene does not rescale every frame.
func (v Viewport) Fit(points [][2]float64) Viewport {
	for _, p := range points {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			continue
		}
		v.MinX, v.MaxX = math.Min(v.MinX, p[0]), math.Max(v.MaxX, p[0])
		v.MinY, v.MaxY = math.Min(v.MinY, p[1]), math.Max(v.MaxY, p[1])
	}
	return v
}

func (v Viewport) Project(c *Canvas, x, y float64) (int, int) {
	w, h := c.Dots()
	spanX, spanY := v.MaxX-v.MinX, v.MaxY-v.MinY
	if spanX <= 0 {
		spanX = 1
	}
	if spanY <= 0 {
		spanY = 1
	}
	// keep aspect: a dot is roughly twice as tall as wide on a terminal
	scale := math.Min(float64(w-1)/spanX, 2*float64(h-1)/spanY)
	px := (x - v.MinX) * scale
	py := (v.MaxY - y) * scale / 2
	return int(math.Round(px)), int(math.Round(py))
}
