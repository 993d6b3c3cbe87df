package vecalloc

import (
	"errors"
	"fmt"

	"github.com/san-kum/mechsim/internal/vecid"
)

var (
	// ErrInconsistentAllocation reports a free that does not match a live
	// allocation. It always indicates a programming error in the caller.
	ErrInconsistentAllocation = errors.New("vecalloc: inconsistent allocation")

	// ErrCategory reports an allocation request for a category that cannot
	// be allocated.
	ErrCategory = errors.New("vecalloc: unsupported category")
)

// AllocationError wraps an allocation failure with the slot involved.
type AllocationError struct {
	ID      vecid.VecID
	Reason  string
	Wrapped error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.Wrapped, e.ID, e.Reason)
}

func (e *AllocationError) Unwrap() error {
	return e.Wrapped
}

func inconsistent(id vecid.VecID, reason string) error {
	return &AllocationError{ID: id, Reason: reason, Wrapped: ErrInconsistentAllocation}
}
