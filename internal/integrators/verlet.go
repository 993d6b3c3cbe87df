package integrators

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecalloc"
	"github.com/san-kum/mechsim/internal/vecid"
)

// Verlet is velocity Verlet: positions move with the current
// acceleration, velocities with the mean of the old and new one.
type Verlet struct {
	base
}

func NewVerlet(eng *engine.Engine) *Verlet {
	return &Verlet{base: newBase("verlet", eng)}
}

func (v *Verlet) Solve(mp *scene.MechanicalParams, node *scene.Node) error {
	h := mp.Dt
	cats := []vecid.Category{vecid.Deriv, vecid.Deriv}
	err := v.scratch(node, vecalloc.Scope{}, cats, func(ids []vecid.MultiVecID) error {
		a0, a1 := ids[0], ids[1]
		v.acceleration(mp, node, a0)
		v.run(node, ops.NewVMultiOp([]ops.LinearOp{{
			Dest:  mp.X,
			Terms: []ops.Term{{ID: mp.X, Factor: 1}, {ID: mp.V, Factor: h}, {ID: a0, Factor: 0.5 * h * h}},
		}}, false))
		v.settle(mp, node)

		v.acceleration(mp, node, a1)
		v.run(node, ops.NewVMultiOp([]ops.LinearOp{{
			Dest:  mp.V,
			Terms: []ops.Term{{ID: mp.V, Factor: 1}, {ID: a0, Factor: 0.5 * h}, {ID: a1, Factor: 0.5 * h}},
		}}, false))
		return nil
	})
	if err != nil {
		return err
	}
	v.settle(mp, node)
	return v.checkFinite(mp, node)
}
