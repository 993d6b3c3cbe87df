package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecalloc"
	"github.com/san-kum/mechsim/internal/vecid"
)

// base carries what every solver needs to run operations on its subtree.
// Scratch slots come from the tree's shared allocation table, so solvers
// whose scopes overlap never hold the same slot.
type base struct {
	name string
	eng  *engine.Engine
}

func newBase(name string, eng *engine.Engine) base {
	if eng == nil {
		eng = engine.New()
	}
	return base{name: name, eng: eng}
}

func (b *base) Name() string { return b.name }

func (b *base) run(node *scene.Node, list ...engine.Operation) {
	for _, op := range list {
		b.eng.Execute(op, node)
	}
}

// scratch allocates one temporary slot per category on node's subtree and
// releases all of them when fn returns.
func (b *base) scratch(node *scene.Node, scope vecalloc.Scope, cats []vecid.Category, fn func(ids []vecid.MultiVecID) error) (err error) {
	leases := make([]*vecalloc.Lease, 0, len(cats))
	defer func() {
		for i := len(leases) - 1; i >= 0; i-- {
			if rerr := leases[i].Release(); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()
	table := vecalloc.TableOf(node)
	ids := make([]vecid.MultiVecID, 0, len(cats))
	for _, c := range cats {
		l, aerr := table.Allocate(b.eng, node, c, scope)
		if aerr != nil {
			return fmt.Errorf("%s: scratch %s: %w", b.name, c, aerr)
		}
		leases = append(leases, l)
		ids = append(ids, l.ID())
	}
	return fn(ids)
}

// acceleration writes M⁻¹ f for the current positions and velocities into
// a, with projective constraints applied.
func (b *base) acceleration(mp *scene.MechanicalParams, node *scene.Node, a vecid.MultiVecID) {
	gravity := mp.Clone()
	gravity.Dt = 1
	b.run(node,
		ops.NewResetForce(mp, mp.F, false),
		ops.NewComputeForce(mp, mp.F, true),
		ops.NewAccFromF(mp, a, mp.F),
		ops.NewAddSeparateGravity(gravity, a),
		ops.NewApplyConstraints(mp, a),
	)
}

// settle projects the new positions and velocities and pushes them to the
// mapped states.
func (b *base) settle(mp *scene.MechanicalParams, node *scene.Node) {
	b.run(node,
		ops.NewProjectPositionAndVelocity(mp, mp.X, mp.V),
		ops.NewPropagateOnlyPositionAndVelocity(mp, mp.X, mp.V, false),
	)
}

func (b *base) checkFinite(mp *scene.MechanicalParams, node *scene.Node) error {
	for _, id := range []vecid.MultiVecID{mp.X, mp.V} {
		n := ops.NewVNorm(id, 0)
		b.eng.Execute(n, node)
		if math.IsNaN(n.Result()) || math.IsInf(n.Result(), 0) {
			return fmt.Errorf("%s at %s: %w", b.name, node.Path(), ErrDiverged)
		}
	}
	return nil
}
