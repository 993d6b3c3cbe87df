package integrators

import "errors"

var (
	// ErrDiverged reports a step that produced NaN or Inf positions or
	// velocities.
	ErrDiverged = errors.New("integrators: state diverged")

	// ErrNotConverged reports a linear solve that hit its iteration limit
	// above tolerance. The step is still applied.
	ErrNotConverged = errors.New("integrators: linear solve did not converge")

	// ErrSingular reports a mass or compliance matrix that cannot be
	// factorized.
	ErrSingular = errors.New("integrators: singular system")
)

func isNotConverged(err error) bool {
	return errors.Is(err, ErrNotConverged)
}
