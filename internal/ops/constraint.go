package ops

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

// ResetConstraint clears the constraint Jacobian rows of every state and
// resets every constraint set.
type ResetConstraint struct {
	engine.Base
	cp *scene.ConstraintParams
}

func NewResetConstraint(cp *scene.ConstraintParams) *ResetConstraint {
	return &ResetConstraint{
		Base: engine.Base{OpName: "ResetConstraint", Safe: true, Policy: engine.CrossAllMappings},
		cp:   cp,
	}
}

func (o *ResetConstraint) clear(s scene.MechanicalState) {
	id := o.cp.J.For(s)
	if id.IsNull() {
		return
	}
	if md := s.MatrixDeriv(id); md != nil {
		md.Reset()
	}
}

func (o *ResetConstraint) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	o.clear(s)
	return engine.Continue
}

func (o *ResetConstraint) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	o.clear(s)
	return engine.Continue
}

func (o *ResetConstraint) VisitConstraintSet(_ *engine.Context, c scene.ConstraintSet) engine.Result {
	c.ResetConstraint()
	return engine.Continue
}

// BuildConstraintMatrix lets every constraint set write its Jacobian rows,
// numbering rows consecutively in traversal order from the start row.
type BuildConstraintMatrix struct {
	engine.Base
	cp  *scene.ConstraintParams
	row int
}

func NewBuildConstraintMatrix(cp *scene.ConstraintParams, row int) *BuildConstraintMatrix {
	return &BuildConstraintMatrix{
		Base: engine.Base{OpName: "BuildConstraintMatrix", Policy: engine.CrossAllMappings},
		cp:   cp,
		row:  row,
	}
}

// Rows returns the next free row after the traversal.
func (o *BuildConstraintMatrix) Rows() int { return o.row }

func (o *BuildConstraintMatrix) VisitConstraintSet(_ *engine.Context, c scene.ConstraintSet) engine.Result {
	o.row = c.BuildConstraintMatrix(o.cp, o.cp.J, o.row)
	return engine.Continue
}

// AccumulateMatrixDeriv carries constraint Jacobian rows from mapped
// states to their parents on the way up.
type AccumulateMatrixDeriv struct {
	engine.Base
	cp      *scene.ConstraintParams
	reverse bool
}

func NewAccumulateMatrixDeriv(cp *scene.ConstraintParams, reverse bool) *AccumulateMatrixDeriv {
	return &AccumulateMatrixDeriv{
		Base:    engine.Base{OpName: "AccumulateMatrixDeriv", Policy: engine.CrossAllMappings},
		cp:      cp,
		reverse: reverse,
	}
}

func (o *AccumulateMatrixDeriv) ReverseChildren(*scene.Node) bool { return o.reverse }

func (o *AccumulateMatrixDeriv) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	m.ApplyJTMatrix(o.cp, o.cp.J, o.cp.J)
	return engine.Continue
}

// AccumulateConstraint builds the constraint rows and accumulates them to
// the independent states in a single traversal.
type AccumulateConstraint struct {
	engine.Base
	cp  *scene.ConstraintParams
	row int
}

func NewAccumulateConstraint(cp *scene.ConstraintParams, row int) *AccumulateConstraint {
	return &AccumulateConstraint{
		Base: engine.Base{OpName: "AccumulateConstraint", Policy: engine.CrossAllMappings},
		cp:   cp,
		row:  row,
	}
}

func (o *AccumulateConstraint) Rows() int { return o.row }

func (o *AccumulateConstraint) VisitConstraintSet(_ *engine.Context, c scene.ConstraintSet) engine.Result {
	o.row = c.BuildConstraintMatrix(o.cp, o.cp.J, o.row)
	return engine.Continue
}

func (o *AccumulateConstraint) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	m.ApplyJTMatrix(o.cp, o.cp.J, o.cp.J)
	return engine.Continue
}
