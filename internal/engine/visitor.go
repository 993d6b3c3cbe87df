package engine

import (
	"fmt"

	"github.com/san-kum/mechsim/internal/scene"
)

type Result uint8

const (
	Continue Result = iota
	// Prune skips the rest of the node's top-down dispatch and its
	// children. The node's bottom-up dispatch still runs.
	Prune
	// Abort ends the traversal at once. Effects already applied stay.
	Abort
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Prune:
		return "prune"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

type Outcome uint8

const (
	Completed Outcome = iota
	Aborted
)

func (o Outcome) String() string {
	if o == Aborted {
		return "aborted"
	}
	return "completed"
}

// Operation is the part of a visitor the engine always consults. The
// per-capability callbacks below are optional and discovered by type
// assertion.
type Operation interface {
	Name() string
	ThreadSafe() bool
	StopAtMapping(node *scene.Node, m scene.Mapping) bool
}

// Top-down callbacks, listed in dispatch order.

type OdeSolverVisitor interface {
	VisitOdeSolver(ctx *Context, s scene.OdeSolver) Result
}

type ConstraintSolverVisitor interface {
	VisitConstraintSolver(ctx *Context, s scene.ConstraintSolver) Result
}

type MappingVisitor interface {
	VisitMapping(ctx *Context, m scene.Mapping) Result
}

type MappedStateVisitor interface {
	VisitMappedState(ctx *Context, s scene.MechanicalState) Result
}

type StateVisitor interface {
	VisitState(ctx *Context, s scene.MechanicalState) Result
}

type MassVisitor interface {
	VisitMass(ctx *Context, m scene.Mass) Result
}

type ForceFieldVisitor interface {
	VisitForceField(ctx *Context, ff scene.ForceField) Result
}

// InteractionForceFieldVisitor is optional even for operations visiting
// force fields: without it, interaction force fields go to VisitForceField.
type InteractionForceFieldVisitor interface {
	VisitInteractionForceField(ctx *Context, ff scene.InteractionForceField) Result
}

type ProjectiveConstraintVisitor interface {
	VisitProjectiveConstraint(ctx *Context, c scene.ProjectiveConstraintSet) Result
}

type ConstraintSetVisitor interface {
	VisitConstraintSet(ctx *Context, c scene.ConstraintSet) Result
}

// Bottom-up callbacks, listed in dispatch order.

type ProjectiveConstraintLeaver interface {
	LeaveProjectiveConstraint(ctx *Context, c scene.ProjectiveConstraintSet) Result
}

type ConstraintSetLeaver interface {
	LeaveConstraintSet(ctx *Context, c scene.ConstraintSet) Result
}

type MappedStateLeaver interface {
	LeaveMappedState(ctx *Context, s scene.MechanicalState) Result
}

type StateLeaver interface {
	LeaveState(ctx *Context, s scene.MechanicalState) Result
}

type MappingLeaver interface {
	LeaveMapping(ctx *Context, m scene.Mapping) Result
}

type OdeSolverLeaver interface {
	LeaveOdeSolver(ctx *Context, s scene.OdeSolver) Result
}

type ConstraintSolverLeaver interface {
	LeaveConstraintSolver(ctx *Context, s scene.ConstraintSolver) Result
}

// ChildOrderer lets an operation visit a node's children last to first.
type ChildOrderer interface {
	ReverseChildren(n *scene.Node) bool
}

// SleepAware operations also visit nodes marked sleeping.
type SleepAware interface {
	VisitSleeping() bool
}

// Reducer folds a scalar up the tree. Each node starts from
// Seed(node, parentAccumulator); once all children are done their
// accumulators are folded into the parent in insertion order, so serial
// and parallel runs give the same result. Finish receives the root value.
type Reducer interface {
	Seed(node *scene.Node, parent float64) float64
	Fold(parent, child float64) float64
	Finish(total float64)
}
