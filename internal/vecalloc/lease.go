package vecalloc

import (
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// Lease is a live allocation. Release must be called exactly once; use
// Table.With where the scope allows it.
type Lease struct {
	table    *Table
	id       vecid.MultiVecID
	held     []holding
	released bool
}

func (l *Lease) ID() vecid.MultiVecID { return l.id }
func (l *Lease) VecID() vecid.VecID   { return l.id.Default() }
func (l *Lease) Released() bool       { return l.released }

func (l *Lease) States() []scene.MechanicalState {
	out := make([]scene.MechanicalState, len(l.held))
	for i, h := range l.held {
		out[i] = h.state
	}
	return out
}

func (l *Lease) Release() error {
	return l.table.releaseLease(l)
}
