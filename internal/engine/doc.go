// Package engine walks a scene tree and dispatches an operation's callbacks
// to the objects found on each node.
//
// Every node is processed in two phases. The top-down phase runs before the
// node's children, in a fixed order: ode solvers, constraint solvers, the
// mechanical mapping, the mechanical state (mapped or independent), masses,
// force fields, interaction force fields, projective constraint sets and
// constraint sets. The bottom-up phase runs after all children: projective
// constraint sets, constraint sets, the state, the mapping and the solvers.
//
// Callbacks are optional interfaces ([StateVisitor], [MappingLeaver], ...)
// checked by type assertion. A missing capability on a node is skipped.
//
// A callback result of [Prune] ends the node's top-down phase and skips its
// children; [Abort] ends the traversal. When a node has a mechanical
// mapping the operation is asked whether to stop there; stopping prunes
// the node and skips its mapped state and mapping in both phases.
//
// # Example
//
//	eng := engine.New(engine.WithWorkers(4))
//	if eng.Execute(op, root) == engine.Aborted {
//		// partial effects are not rolled back
//	}
//
// # Thread Safety
//
// Operations reporting ThreadSafe may have sibling subtrees processed on
// separate goroutines, provided no child subtree reaches a state outside
// itself through a mapping or an interaction. Only top-down passes run
// concurrently: bottom-up passes of the children are replayed on the
// parent in visiting order after the join. A node is never processed
// concurrently with one of its ancestors, and [Reducer] results do not
// depend on scheduling.
package engine
