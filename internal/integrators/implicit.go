package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecalloc"
	"github.com/san-kum/mechsim/internal/vecid"
)

// ImplicitEuler is backward Euler linearised once per step. It solves
//
//	(M - h B - h² K) Δv = h (f + h K v)
//
// with conjugate gradients, never assembling a matrix: each product goes
// through AddMBKdx.
type ImplicitEuler struct {
	base
	MaxIterations int
	Tolerance     float64

	iterations int
	residual   float64
}

func NewImplicitEuler(eng *engine.Engine) *ImplicitEuler {
	return &ImplicitEuler{
		base:          newBase("implicit-euler", eng),
		MaxIterations: 50,
		Tolerance:     1e-9,
	}
}

// LastSolve reports the iteration count and residual norm of the last step.
func (ie *ImplicitEuler) LastSolve() (int, float64) { return ie.iterations, ie.residual }

func (ie *ImplicitEuler) Solve(mp *scene.MechanicalParams, node *scene.Node) error {
	h := mp.Dt
	scope := vecalloc.Scope{Mapped: true, Interactions: true}
	cats := []vecid.Category{vecid.Deriv, vecid.Deriv, vecid.Deriv, vecid.Deriv}
	var solveErr error
	err := ie.scratch(node, scope, cats, func(ids []vecid.MultiVecID) error {
		dv, r, p, q := ids[0], ids[1], ids[2], ids[3]
		ie.rhs(mp, node, r)
		solveErr = ie.cg(mp, node, dv, r, p, q)
		if solveErr != nil && !isNotConverged(solveErr) {
			return solveErr
		}

		ie.run(node,
			ops.NewVOp(mp.V, mp.V, dv, 1),
			ops.NewAddSeparateGravity(mp, mp.V),
			ops.NewApplyConstraints(mp, mp.V),
			ops.NewVOp(mp.X, mp.X, mp.V, h),
		)
		return nil
	})
	if err != nil {
		return err
	}
	ie.settle(mp, node)
	if err := ie.checkFinite(mp, node); err != nil {
		return err
	}
	return solveErr
}

// rhs writes h f + h² K v into b on the independent states.
func (ie *ImplicitEuler) rhs(mp *scene.MechanicalParams, node *scene.Node, b vecid.MultiVecID) {
	h := mp.Dt
	stiffness := mp.WithFactors(0, 0, h*h).WithDx(mp.V)
	ie.run(node,
		ops.NewResetForce(mp, mp.F, false),
		ops.NewComputeForce(mp, mp.F, true),
		ops.NewVOp(b, vecid.NullOf(vecid.Deriv).Multi(), mp.F, h),
		ops.NewResetForce(mp, b, true),
		ops.NewComputeDf(stiffness, b, true),
		ops.NewApplyConstraints(mp, b),
	)
}

// product writes (M - h B - h² K) p into q.
func (ie *ImplicitEuler) product(mp *scene.MechanicalParams, node *scene.Node, p, q vecid.MultiVecID) {
	h := mp.Dt
	a := mp.WithFactors(1, -h, -h*h).WithDx(p)
	ie.run(node,
		ops.NewPropagateDx(a, p, false, false),
		ops.NewResetForce(a, q, false),
		ops.NewAddMBKdx(a, q, true),
		ops.NewApplyConstraints(a, q),
	)
}

func (ie *ImplicitEuler) dot(node *scene.Node, a, b vecid.MultiVecID) float64 {
	d := ops.NewVDot(a, b)
	ie.eng.Execute(d, node)
	return d.Result()
}

func (ie *ImplicitEuler) cg(mp *scene.MechanicalParams, node *scene.Node, x, r, p, q vecid.MultiVecID) error {
	ie.run(node,
		ops.NewVOp(x, vecid.NullOf(vecid.Deriv).Multi(), vecid.NullOf(vecid.Deriv).Multi(), 0),
		ops.NewVOp(p, r, vecid.NullOf(vecid.Deriv).Multi(), 1),
	)
	rr := ie.dot(node, r, r)
	ie.iterations, ie.residual = 0, math.Sqrt(rr)
	if ie.residual <= ie.Tolerance {
		return nil
	}
	for ie.iterations < ie.MaxIterations {
		ie.iterations++
		ie.product(mp, node, p, q)
		pq := ie.dot(node, p, q)
		if pq == 0 || math.IsNaN(pq) {
			return fmt.Errorf("%s: curvature %g at iteration %d: %w", ie.name, pq, ie.iterations, ErrDiverged)
		}
		alpha := rr / pq
		ie.run(node,
			ops.NewVOp(x, x, p, alpha),
			ops.NewVOp(r, r, q, -alpha),
		)
		next := ie.dot(node, r, r)
		ie.residual = math.Sqrt(next)
		if ie.residual <= ie.Tolerance {
			return nil
		}
		ie.run(node, ops.NewVOp(p, r, p, next/rr))
		rr = next
	}
	return fmt.Errorf("%s: residual %g after %d iterations: %w", ie.name, ie.residual, ie.iterations, ErrNotConverged)
}
