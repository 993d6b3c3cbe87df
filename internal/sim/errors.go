package sim

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("sim: invalid config")

	// ErrInvalidState reports a frame holding NaN or Inf.
	ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")

	// ErrStepFailed reports an aborted integration or constraint pass.
	ErrStepFailed = errors.New("sim: step failed")
)

// SimulationError wraps a step failure with where it happened.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
