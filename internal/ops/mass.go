package ops

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// SetPositionAndVelocity copies x and v into the position and velocity
// slots of every independent state.
type SetPositionAndVelocity struct {
	engine.Base
	x, v vecid.MultiVecID
}

func NewSetPositionAndVelocity(x, v vecid.MultiVecID) *SetPositionAndVelocity {
	return &SetPositionAndVelocity{
		Base: engine.Base{OpName: "SetPositionAndVelocity", Safe: true},
		x:    x,
		v:    v,
	}
}

func (o *SetPositionAndVelocity) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	copyVec(s, vecid.Position.Multi(), o.x)
	copyVec(s, vecid.Velocity.Multi(), o.v)
	return engine.Continue
}

// AddMDx adds factor M dx into res. Mapped nodes are pruned: their mass
// reaches the parents through the mapped forces.
type AddMDx struct {
	engine.Base
	prunedAtMapping
	mp      *scene.MechanicalParams
	res, dx vecid.MultiVecID
	factor  float64
}

func NewAddMDx(mp *scene.MechanicalParams, res, dx vecid.MultiVecID, factor float64) *AddMDx {
	return &AddMDx{
		Base:   engine.Base{OpName: "AddMDx", Safe: true},
		mp:     mp,
		res:    res,
		dx:     dx,
		factor: factor,
	}
}

func (o *AddMDx) VisitMass(_ *engine.Context, m scene.Mass) engine.Result {
	m.AddMDx(o.mp, o.res, o.dx, o.factor)
	return engine.Continue
}

// AccFromF computes a = M⁻¹ f on independent nodes.
type AccFromF struct {
	engine.Base
	prunedAtMapping
	mp   *scene.MechanicalParams
	a, f vecid.MultiVecID
}

func NewAccFromF(mp *scene.MechanicalParams, a, f vecid.MultiVecID) *AccFromF {
	return &AccFromF{
		Base: engine.Base{OpName: "AccFromF", Safe: true},
		mp:   mp,
		a:    a,
		f:    f,
	}
}

func (o *AccFromF) VisitMass(_ *engine.Context, m scene.Mass) engine.Result {
	m.AccFromF(o.mp, o.a, o.f)
	return engine.Continue
}
