package ops

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// prunedAtMapping stops at every mechanical mapping by pruning, so only
// independent nodes see the operation.
type prunedAtMapping struct{}

func (prunedAtMapping) VisitMapping(*engine.Context, scene.Mapping) engine.Result {
	return engine.Prune
}

// ProjectPosition applies projective constraints to x.
type ProjectPosition struct {
	engine.Base
	prunedAtMapping
	mp *scene.MechanicalParams
	x  vecid.MultiVecID
}

func NewProjectPosition(mp *scene.MechanicalParams, x vecid.MultiVecID) *ProjectPosition {
	return &ProjectPosition{
		Base: engine.Base{OpName: "ProjectPosition", Safe: true},
		mp:   mp,
		x:    x,
	}
}

func (o *ProjectPosition) VisitProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	c.ProjectPosition(o.mp, o.x)
	return engine.Continue
}

// ProjectVelocity applies projective constraints to v.
type ProjectVelocity struct {
	engine.Base
	prunedAtMapping
	mp *scene.MechanicalParams
	v  vecid.MultiVecID
}

func NewProjectVelocity(mp *scene.MechanicalParams, v vecid.MultiVecID) *ProjectVelocity {
	return &ProjectVelocity{
		Base: engine.Base{OpName: "ProjectVelocity", Safe: true},
		mp:   mp,
		v:    v,
	}
}

func (o *ProjectVelocity) VisitProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	c.ProjectVelocity(o.mp, o.v)
	return engine.Continue
}

type ProjectPositionAndVelocity struct {
	engine.Base
	prunedAtMapping
	mp   *scene.MechanicalParams
	x, v vecid.MultiVecID
}

func NewProjectPositionAndVelocity(mp *scene.MechanicalParams, x, v vecid.MultiVecID) *ProjectPositionAndVelocity {
	return &ProjectPositionAndVelocity{
		Base: engine.Base{OpName: "ProjectPositionAndVelocity", Safe: true},
		mp:   mp,
		x:    x,
		v:    v,
	}
}

func (o *ProjectPositionAndVelocity) VisitProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	c.ProjectPosition(o.mp, o.x)
	c.ProjectVelocity(o.mp, o.v)
	return engine.Continue
}

// ProjectJacobianMatrix applies projective constraints to the rows of
// the constraint Jacobian j.
type ProjectJacobianMatrix struct {
	engine.Base
	prunedAtMapping
	mp *scene.MechanicalParams
	j  vecid.MultiVecID
}

func NewProjectJacobianMatrix(mp *scene.MechanicalParams, j vecid.MultiVecID) *ProjectJacobianMatrix {
	return &ProjectJacobianMatrix{
		Base: engine.Base{OpName: "ProjectJacobianMatrix", Safe: true},
		mp:   mp,
		j:    j,
	}
}

func (o *ProjectJacobianMatrix) VisitProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	c.ProjectJacobianMatrix(o.mp, o.j)
	return engine.Continue
}

// ApplyConstraints projects the response res on the way back up, after
// every subtree contributed to it.
type ApplyConstraints struct {
	engine.Base
	mp  *scene.MechanicalParams
	res vecid.MultiVecID
}

func NewApplyConstraints(mp *scene.MechanicalParams, res vecid.MultiVecID) *ApplyConstraints {
	return &ApplyConstraints{
		Base: engine.Base{OpName: "ApplyConstraints", Safe: true, Policy: engine.CrossAllMappings},
		mp:   mp,
		res:  res,
	}
}

func (o *ApplyConstraints) LeaveProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	c.ProjectResponse(o.mp, o.res)
	return engine.Continue
}
