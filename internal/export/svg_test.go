package export

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mechsim/internal/sim"
	"github.com/san-kum/mechsim/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	assert.Empty(t, CanvasToSVG(nil, 2))

	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	svg := CanvasToSVG(c, 2)

	assert.True(t, strings.HasPrefix(svg, "<?xml"))
	assert.Contains(t, svg, `width="8" height="8"`)
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.Contains(t, svg, `cx="1.0" cy="1.0"`)
	assert.Contains(t, svg, `cx="7.0" cy="7.0"`)
}

func frames2D() []sim.Frame {
	return []sim.Frame{
		{Time: 0, Positions: []float64{0, 0, 1, 1}},
		{Time: 0.1, Positions: []float64{1, 0, 1, 2}},
		{Time: 0.2, Positions: []float64{2, 0, 1, 3}},
	}
}

func TestFrameTrajectories(t *testing.T) {
	paths := FrameTrajectories(frames2D(), 2)
	require.Len(t, paths, 2)
	assert.Equal(t, [][2]float64{{0, 0}, {1, 0}, {2, 0}}, paths[0].Points)
	assert.Equal(t, [2]float64{1, 3}, paths[1].Points[2])
	assert.NotEqual(t, paths[0].Color, paths[1].Color)

	line := FrameTrajectories(frames2D(), 1)
	require.Len(t, line, 4)
	assert.Equal(t, [2]float64{0.1, 1}, line[0].Points[1])

	assert.Nil(t, FrameTrajectories(nil, 2))
}

func TestTrajectoryToSVG(t *testing.T) {
	svg := TrajectoryToSVG(FrameTrajectories(frames2D(), 2), 100, 50)
	assert.Equal(t, 2, strings.Count(svg, "<path"))
	assert.Equal(t, 2, strings.Count(svg, `d="M`))
	assert.True(t, strings.HasSuffix(svg, "</svg>"))

	assert.Empty(t, TrajectoryToSVG(nil, 100, 50))
}

func TestTrajectoryBreaksOnNonFinite(t *testing.T) {
	p := Path{Points: [][2]float64{{0, 0}, {1, 1}, {math.NaN(), 0}, {2, 2}, {3, 3}}}
	svg := TrajectoryToSVG([]Path{p}, 10, 10)
	assert.Equal(t, 2, strings.Count(svg, "M"))
	assert.Contains(t, svg, Palette[0])
}

func TestWriteTrajectories(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrajectories(&buf, frames2D(), 2, 64, 64))
	assert.Contains(t, buf.String(), "<path")

	assert.Error(t, WriteTrajectories(&buf, nil, 2, 64, 64))
}
