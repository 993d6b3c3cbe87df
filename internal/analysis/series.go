package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/mechsim/internal/sim"
)

var ErrTooShort = errors.New("analysis: not enough samples")

// Series extracts one scalar per frame. name is "energy", "kinetic",
// "potential", "x" or "v"; index selects the coordinate for x and v.
func Series(frames []sim.Frame, name string, index int) ([]float64, error) {
	out := make([]float64, 0, len(frames))
	for _, f := range frames {
		var val float64
		switch name {
		case "energy":
			val = f.Energy()
		case "kinetic":
			val = f.Kinetic
		case "potential":
			val = f.Potential
		case "x", "v":
			coords := f.Positions
			if name == "v" {
				coords = f.Velocities
			}
			if index < 0 || index >= len(coords) {
				return nil, fmt.Errorf("analysis: %s[%d] out of range (%d coordinates)", name, index, len(coords))
			}
			val = coords[index]
		default:
			return nil, fmt.Errorf("analysis: unknown series %q", name)
		}
		out = append(out, val)
	}
	return out, nil
}

// sampleInterval is the time between consecutive frames, assuming they
// were recorded at a constant rate.
func sampleInterval(frames []sim.Frame) (float64, error) {
	if len(frames) < 2 {
		return 0, ErrTooShort
	}
	dt := (frames[len(frames)-1].Time - frames[0].Time) / float64(len(frames)-1)
	if dt <= 0 {
		return 0, fmt.Errorf("analysis: frames not ordered in time")
	}
	return dt, nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
