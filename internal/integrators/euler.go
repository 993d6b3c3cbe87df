package integrators

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecalloc"
	"github.com/san-kum/mechsim/internal/vecid"
)

// ExplicitEuler advances x and v with one force evaluation per step.
// With Symplectic set, the new velocity is used to move positions.
type ExplicitEuler struct {
	base
	Symplectic bool
}

func NewExplicitEuler(eng *engine.Engine) *ExplicitEuler {
	return &ExplicitEuler{base: newBase("explicit-euler", eng)}
}

func NewSymplecticEuler(eng *engine.Engine) *ExplicitEuler {
	return &ExplicitEuler{base: newBase("symplectic-euler", eng), Symplectic: true}
}

func (e *ExplicitEuler) Solve(mp *scene.MechanicalParams, node *scene.Node) error {
	h := mp.Dt
	err := e.scratch(node, vecalloc.Scope{}, []vecid.Category{vecid.Deriv}, func(ids []vecid.MultiVecID) error {
		a := ids[0]
		e.acceleration(mp, node, a)

		velocity := ops.LinearOp{Dest: mp.V, Terms: []ops.Term{{ID: mp.V, Factor: 1}, {ID: a, Factor: h}}}
		position := ops.LinearOp{Dest: mp.X, Terms: []ops.Term{{ID: mp.X, Factor: 1}, {ID: mp.V, Factor: h}}}
		lines := []ops.LinearOp{position, velocity}
		if e.Symplectic {
			lines = []ops.LinearOp{velocity, position}
		}
		e.run(node, ops.NewVMultiOp(lines, false))
		return nil
	})
	if err != nil {
		return err
	}
	e.settle(mp, node)
	return e.checkFinite(mp, node)
}
