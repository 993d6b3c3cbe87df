// Package integrators contains ode and constraint solvers written purely
// in terms of the ops library and vector allocation.
//
// Every solver is a scene object: add it to a node and the Integration
// (or SolveConstraints) operation hands it that node's subtree. Solvers
// allocate their scratch vectors for the duration of one step and leave
// nothing allocated between steps.
//
//   - [ExplicitEuler]: forward or symplectic Euler
//   - [RK4]: classic Runge-Kutta, four force evaluations per step
//   - [Verlet]: velocity Verlet
//   - [ImplicitEuler]: linearised backward Euler with matrix-free CG
//   - [LinearConstraintSolver]: projects bilateral constraint violations
//
// # Example
//
//	eng := engine.New()
//	root.MustAdd(integrators.NewImplicitEuler(eng), integrators.NewLinearConstraintSolver(eng))
//	mp := scene.DefaultMechanicalParams()
//	mp.Dt = 0.01
//	step := ops.NewIntegration(mp)
//	eng.Execute(step, root)
//	if err := step.Err(); err != nil {
//		return err
//	}
//
// # Thread Safety
//
// A solver must not be shared between subtrees that the engine may visit
// in parallel. Scratch vectors come from the tree's shared
// [vecalloc.Table], so solvers on different nodes never reuse an index
// the other still holds.
package integrators
