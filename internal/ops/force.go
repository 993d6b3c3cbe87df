package ops

import (
	"sync/atomic"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// ResetForce zeroes res on every state, or only on mapped states when
// onlyMapped is set.
type ResetForce struct {
	engine.Base
	mp         *scene.MechanicalParams
	res        vecid.MultiVecID
	onlyMapped bool
}

func NewResetForce(mp *scene.MechanicalParams, res vecid.MultiVecID, onlyMapped bool) *ResetForce {
	return &ResetForce{
		Base:       engine.Base{OpName: "ResetForce", Safe: true},
		mp:         mp,
		res:        res,
		onlyMapped: onlyMapped,
	}
}

func (o *ResetForce) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if !o.onlyMapped {
		reset(s, o.res)
	}
	return engine.Continue
}

func (o *ResetForce) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	reset(s, o.res)
	return engine.Continue
}

// ComputeForce adds external and force field forces into res. With
// accumulate, forces on mapped states are carried to their parents.
type ComputeForce struct {
	engine.Base
	mp         *scene.MechanicalParams
	res        vecid.MultiVecID
	accumulate bool
	applied    atomic.Int64
}

func NewComputeForce(mp *scene.MechanicalParams, res vecid.MultiVecID, accumulate bool) *ComputeForce {
	return &ComputeForce{
		Base:       engine.Base{OpName: "ComputeForce", Safe: true},
		mp:         mp,
		res:        res,
		accumulate: accumulate,
	}
}

// Accumulations reports how many mapping transposes were applied.
func (o *ComputeForce) Accumulations() int { return int(o.applied.Load()) }

func (o *ComputeForce) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	accumulateExternal(o.mp, s, o.res)
	return engine.Continue
}

func (o *ComputeForce) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	accumulateExternal(o.mp, s, o.res)
	return engine.Continue
}

func (o *ComputeForce) VisitForceField(_ *engine.Context, ff scene.ForceField) engine.Result {
	ff.AddForce(o.mp, o.res)
	return engine.Continue
}

func (o *ComputeForce) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	if o.accumulate {
		m.ApplyJT(o.mp, o.res, o.res)
		o.applied.Add(1)
	}
	return engine.Continue
}

// ComputeDf adds the force differential for mp.Dx into res.
type ComputeDf struct {
	engine.Base
	mp         *scene.MechanicalParams
	res        vecid.MultiVecID
	accumulate bool
}

func NewComputeDf(mp *scene.MechanicalParams, res vecid.MultiVecID, accumulate bool) *ComputeDf {
	return &ComputeDf{
		Base:       engine.Base{OpName: "ComputeDf", Safe: true},
		mp:         mp,
		res:        res,
		accumulate: accumulate,
	}
}

func (o *ComputeDf) VisitForceField(_ *engine.Context, ff scene.ForceField) engine.Result {
	ff.AddDForce(o.mp, o.res)
	return engine.Continue
}

func (o *ComputeDf) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	if o.accumulate {
		m.ApplyJT(o.mp, o.res, o.res)
		if g, ok := m.(scene.GeometricStiffnessMapping); ok {
			g.ApplyDJT(o.mp, o.res, o.res)
		}
	}
	return engine.Continue
}

// AddMBKdx adds (mFactor M + bFactor B + kFactor K) dx into res. Masses
// contribute through their force field side.
type AddMBKdx struct {
	engine.Base
	mp         *scene.MechanicalParams
	res        vecid.MultiVecID
	accumulate bool
}

func NewAddMBKdx(mp *scene.MechanicalParams, res vecid.MultiVecID, accumulate bool) *AddMBKdx {
	return &AddMBKdx{
		Base:       engine.Base{OpName: "AddMBKdx", Safe: true},
		mp:         mp,
		res:        res,
		accumulate: accumulate,
	}
}

func (o *AddMBKdx) VisitForceField(_ *engine.Context, ff scene.ForceField) engine.Result {
	if c, ok := ff.(scene.MBKdxContributor); ok {
		c.AddMBKdx(o.mp, o.res)
		return engine.Continue
	}
	ff.AddDForce(o.mp, o.res)
	return engine.Continue
}

func (o *AddMBKdx) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	if o.accumulate {
		m.ApplyJT(o.mp, o.res, o.res)
		if g, ok := m.(scene.GeometricStiffnessMapping); ok {
			g.ApplyDJT(o.mp, o.res, o.res)
		}
	}
	return engine.Continue
}

// ComputeContactForce gathers only externally applied forces into res
// and carries them to the independent states.
type ComputeContactForce struct {
	engine.Base
	mp  *scene.MechanicalParams
	res vecid.MultiVecID
}

func NewComputeContactForce(mp *scene.MechanicalParams, res vecid.MultiVecID) *ComputeContactForce {
	return &ComputeContactForce{
		Base: engine.Base{OpName: "ComputeContactForce", Safe: true},
		mp:   mp,
		res:  res,
	}
}

func (o *ComputeContactForce) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	accumulateExternal(o.mp, s, o.res)
	return engine.Continue
}

func (o *ComputeContactForce) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	accumulateExternal(o.mp, s, o.res)
	return engine.Continue
}

func (o *ComputeContactForce) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	m.ApplyJT(o.mp, o.res, o.res)
	return engine.Continue
}

// AddSeparateGravity lets masses that keep gravity out of their forces
// add it to the velocity res directly.
type AddSeparateGravity struct {
	engine.Base
	mp  *scene.MechanicalParams
	res vecid.MultiVecID
}

func NewAddSeparateGravity(mp *scene.MechanicalParams, res vecid.MultiVecID) *AddSeparateGravity {
	return &AddSeparateGravity{
		Base: engine.Base{OpName: "AddSeparateGravity", Safe: true},
		mp:   mp,
		res:  res,
	}
}

func (o *AddSeparateGravity) VisitMass(_ *engine.Context, m scene.Mass) engine.Result {
	if g, ok := m.(scene.SeparateGravityMass); ok {
		g.AddGravityToV(o.mp, o.res)
	}
	return engine.Continue
}

// ComputeGeometricStiffness lets mappings update their geometric
// stiffness for the given child force.
type ComputeGeometricStiffness struct {
	engine.Base
	mp         *scene.MechanicalParams
	childForce vecid.MultiVecID
}

func NewComputeGeometricStiffness(mp *scene.MechanicalParams, childForce vecid.MultiVecID) *ComputeGeometricStiffness {
	return &ComputeGeometricStiffness{
		Base:       engine.Base{OpName: "ComputeGeometricStiffness", Safe: true},
		mp:         mp,
		childForce: childForce,
	}
}

func (o *ComputeGeometricStiffness) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	if g, ok := m.(scene.GeometricStiffnessMapping); ok {
		g.UpdateK(o.mp, o.childForce)
	}
	return engine.Continue
}
