package ops

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// masking turns the force mask of mapped states off for the traversal
// when ignoreMask is set and back on when leaving them.
type masking struct {
	ignoreMask bool
}

func (m masking) enter(s scene.MechanicalState) {
	if m.ignoreMask {
		setMask(s, false)
	}
}

func (m masking) LeaveMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if m.ignoreMask {
		setMask(s, true)
	}
	return engine.Continue
}

// PropagateDx pushes dx through mappings with their Jacobians. With
// ignoreFlag it crosses every mapping.
type PropagateDx struct {
	engine.Base
	masking
	mp *scene.MechanicalParams
	dx vecid.MultiVecID
}

func NewPropagateDx(mp *scene.MechanicalParams, dx vecid.MultiVecID, ignoreMask, ignoreFlag bool) *PropagateDx {
	policy := engine.StopAtNonForceMapping
	if ignoreFlag {
		policy = engine.CrossAllMappings
	}
	return &PropagateDx{
		Base:    engine.Base{OpName: "PropagateDx", Safe: true, Policy: policy},
		masking: masking{ignoreMask: ignoreMask},
		mp:      mp,
		dx:      dx,
	}
}

func (o *PropagateDx) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	o.enter(m.To())
	m.ApplyJ(o.mp, o.dx, o.dx)
	return engine.Continue
}

// PropagateDxAndResetForce pushes dx down and zeroes f on the way.
type PropagateDxAndResetForce struct {
	engine.Base
	masking
	mp *scene.MechanicalParams
	dx vecid.MultiVecID
	f  vecid.MultiVecID
}

func NewPropagateDxAndResetForce(mp *scene.MechanicalParams, dx, f vecid.MultiVecID, ignoreMask bool) *PropagateDxAndResetForce {
	return &PropagateDxAndResetForce{
		Base:    engine.Base{OpName: "PropagateDxAndResetForce", Safe: true},
		masking: masking{ignoreMask: ignoreMask},
		mp:      mp,
		dx:      dx,
		f:       f,
	}
}

func (o *PropagateDxAndResetForce) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	reset(s, o.f)
	return engine.Continue
}

func (o *PropagateDxAndResetForce) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	o.enter(m.To())
	m.ApplyJ(o.mp, o.dx, o.dx)
	return engine.Continue
}

func (o *PropagateDxAndResetForce) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	reset(s, o.f)
	return engine.Continue
}

// PropagateOnlyPosition recomputes x on every mapped state.
type PropagateOnlyPosition struct {
	engine.Base
	masking
	mp *scene.MechanicalParams
	x  vecid.MultiVecID
}

func NewPropagateOnlyPosition(mp *scene.MechanicalParams, x vecid.MultiVecID, ignoreMask bool) *PropagateOnlyPosition {
	return &PropagateOnlyPosition{
		Base:    engine.Base{OpName: "PropagateOnlyPosition", Safe: true, Policy: engine.CrossAllMappings},
		masking: masking{ignoreMask: ignoreMask},
		mp:      mp,
		x:       x,
	}
}

func (o *PropagateOnlyPosition) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	o.enter(m.To())
	m.Apply(o.mp, o.x, o.x)
	return engine.Continue
}

// PropagateOnlyVelocity recomputes v on every mapped state.
type PropagateOnlyVelocity struct {
	engine.Base
	masking
	mp *scene.MechanicalParams
	v  vecid.MultiVecID
}

func NewPropagateOnlyVelocity(mp *scene.MechanicalParams, v vecid.MultiVecID, ignoreMask bool) *PropagateOnlyVelocity {
	return &PropagateOnlyVelocity{
		Base:    engine.Base{OpName: "PropagateOnlyVelocity", Safe: true, Policy: engine.CrossAllMappings},
		masking: masking{ignoreMask: ignoreMask},
		mp:      mp,
		v:       v,
	}
}

func (o *PropagateOnlyVelocity) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	o.enter(m.To())
	m.ApplyJ(o.mp, o.v, o.v)
	return engine.Continue
}

type PropagateOnlyPositionAndVelocity struct {
	engine.Base
	masking
	mp   *scene.MechanicalParams
	x, v vecid.MultiVecID
}

func NewPropagateOnlyPositionAndVelocity(mp *scene.MechanicalParams, x, v vecid.MultiVecID, ignoreMask bool) *PropagateOnlyPositionAndVelocity {
	return &PropagateOnlyPositionAndVelocity{
		Base:    engine.Base{OpName: "PropagateOnlyPositionAndVelocity", Safe: true, Policy: engine.CrossAllMappings},
		masking: masking{ignoreMask: ignoreMask},
		mp:      mp,
		x:       x,
		v:       v,
	}
}

func (o *PropagateOnlyPositionAndVelocity) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	o.enter(m.To())
	m.Apply(o.mp, o.x, o.x)
	m.ApplyJ(o.mp, o.v, o.v)
	return engine.Continue
}

// PropagateOnlyPositionAndResetForce recomputes x on mapped states and
// zeroes f everywhere it goes.
type PropagateOnlyPositionAndResetForce struct {
	engine.Base
	masking
	mp   *scene.MechanicalParams
	x, f vecid.MultiVecID
}

func NewPropagateOnlyPositionAndResetForce(mp *scene.MechanicalParams, x, f vecid.MultiVecID, ignoreMask bool) *PropagateOnlyPositionAndResetForce {
	return &PropagateOnlyPositionAndResetForce{
		Base:    engine.Base{OpName: "PropagateOnlyPositionAndResetForce", Safe: true},
		masking: masking{ignoreMask: ignoreMask},
		mp:      mp,
		x:       x,
		f:       f,
	}
}

func (o *PropagateOnlyPositionAndResetForce) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	reset(s, o.f)
	return engine.Continue
}

func (o *PropagateOnlyPositionAndResetForce) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	o.enter(m.To())
	m.Apply(o.mp, o.x, o.x)
	return engine.Continue
}

func (o *PropagateOnlyPositionAndResetForce) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	reset(s, o.f)
	return engine.Continue
}
