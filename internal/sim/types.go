package sim

import "math"

// Frame is what metrics and observers see after each step: the flattened
// independent positions and velocities plus the scene energy.
type Frame struct {
	Step       int
	Time       float64
	Positions  []float64
	Velocities []float64
	Kinetic    float64
	Potential  float64
}

func (f Frame) Energy() float64 { return f.Kinetic + f.Potential }

// Valid reports whether every coordinate and the energy are finite.
func (f Frame) Valid() bool {
	for _, xs := range [][]float64{f.Positions, f.Velocities, {f.Kinetic, f.Potential}} {
		for _, x := range xs {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

type Metric interface {
	Name() string
	Observe(f Frame)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(f Frame)
}

type Config struct {
	Dt       float64
	Duration float64

	// ValidateState stops the run at the first frame with NaN or Inf.
	ValidateState bool
	// RecordEvery keeps one frame out of n in the result; 0 keeps all.
	RecordEvery int
}

type Result struct {
	Frames      []Frame
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
	Errors      []error
}

// Final returns the last recorded frame.
func (r *Result) Final() Frame {
	if len(r.Frames) == 0 {
		return Frame{}
	}
	return r.Frames[len(r.Frames)-1]
}
