package integrators

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecalloc"
	"github.com/san-kum/mechsim/internal/vecid"
)

var (
	rk4Offsets = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

// RK4 is the classic fourth order Runge-Kutta scheme on (x, v). Each
// stage evaluates forces at the trial state, so mapped states are
// propagated between stages.
type RK4 struct {
	base
}

func NewRK4(eng *engine.Engine) *RK4 {
	return &RK4{base: newBase("rk4", eng)}
}

func (r *RK4) Solve(mp *scene.MechanicalParams, node *scene.Node) error {
	h := mp.Dt
	cats := []vecid.Category{vecid.Coord, vecid.Deriv, vecid.Deriv, vecid.Deriv, vecid.Deriv, vecid.Deriv}
	err := r.scratch(node, vecalloc.Scope{}, cats, func(ids []vecid.MultiVecID) error {
		x0, v0, vk, ak, sumX, sumV := ids[0], ids[1], ids[2], ids[3], ids[4], ids[5]
		null := vecid.NullOf(vecid.Deriv).Multi()
		r.run(node,
			ops.NewVOp(x0, mp.X, vecid.Null.Multi(), 1),
			ops.NewVOp(v0, mp.V, null, 1),
		)

		for stage := 0; stage < 4; stage++ {
			if stage > 0 {
				c := rk4Offsets[stage] * h
				r.run(node,
					ops.NewVOp(mp.X, x0, vk, c),
					ops.NewVOp(mp.V, v0, ak, c),
				)
				r.settle(mp, node)
			}
			r.acceleration(mp, node, ak)
			w := rk4Weights[stage]
			r.run(node,
				ops.NewVOp(vk, mp.V, null, 1),
				ops.NewVOp(sumX, sumX, vk, w),
				ops.NewVOp(sumV, sumV, ak, w),
			)
		}

		r.run(node,
			ops.NewVOp(mp.X, x0, sumX, h/6),
			ops.NewVOp(mp.V, v0, sumV, h/6),
		)
		return nil
	})
	if err != nil {
		return err
	}
	r.settle(mp, node)
	return r.checkFinite(mp, node)
}
