package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/san-kum/mechsim/internal/scene"
)

// Context is the per-node view handed to callbacks. Acc is the node's
// reduction accumulator; one goroutine at a time touches it.
type Context struct {
	Node *scene.Node
	Acc  float64

	run     *run
	visited bool
	stop    bool
}

func (c *Context) Warn(obj scene.Object, format string, args ...any) {
	c.run.eng.diag.Warn(c.Node, obj, fmt.Sprintf(format, args...))
}

func (c *Context) Engine() *Engine { return c.run.eng }

type run struct {
	eng      *Engine
	op       Operation
	reducer  Reducer
	orderer  ChildOrderer
	sleeping bool
	parallel bool
	aborted  atomic.Bool
}

func newRun(e *Engine, op Operation) *run {
	r := &run{eng: e, op: op}
	r.reducer, _ = op.(Reducer)
	r.orderer, _ = op.(ChildOrderer)
	if s, ok := op.(SleepAware); ok {
		r.sleeping = s.VisitSleeping()
	}
	r.parallel = e.sem != nil && op.ThreadSafe()
	return r
}

func (r *run) newContext(n *scene.Node, parent *Context) *Context {
	c := &Context{Node: n, run: r}
	if r.reducer != nil {
		acc := 0.0
		if parent != nil {
			acc = parent.Acc
		}
		c.Acc = r.reducer.Seed(n, acc)
	}
	return c
}

func (r *run) visit(ctx *Context) {
	if r.descend(ctx) {
		r.ascend(ctx)
	}
}

// descend runs the top-down pass on ctx's node and visits its children.
// It reports whether the node's bottom-up pass is still due.
func (r *run) descend(ctx *Context) bool {
	n := ctx.Node
	if r.aborted.Load() || (n.Sleeping() && !r.sleeping) {
		return false
	}
	ctx.visited = true

	if m := n.MechanicalMapping(); m != nil {
		ctx.stop = r.op.StopAtMapping(n, m)
	}

	r.eng.hook.BeginNode(r.op, n, TopDown)
	res := r.topDown(ctx, ctx.stop)
	r.eng.hook.EndNode(r.op, n, TopDown, res)
	if res == Abort {
		r.aborted.Store(true)
		return false
	}

	if res == Continue {
		children := n.Children()
		ctxs := make([]*Context, len(children))
		for i, c := range children {
			ctxs[i] = r.newContext(c, ctx)
		}
		r.visitChildren(n, ctxs)
		if r.aborted.Load() {
			return false
		}
		if r.reducer != nil {
			for _, c := range ctxs {
				if c.visited {
					ctx.Acc = r.reducer.Fold(ctx.Acc, c.Acc)
				}
			}
		}
	}
	return true
}

func (r *run) ascend(ctx *Context) {
	n := ctx.Node
	r.eng.hook.BeginNode(r.op, n, BottomUp)
	res := r.bottomUp(ctx, ctx.stop)
	r.eng.hook.EndNode(r.op, n, BottomUp, res)
	if res == Abort {
		r.aborted.Store(true)
	}
}

func (r *run) visitChildren(n *scene.Node, ctxs []*Context) {
	order := make([]int, len(ctxs))
	for i := range order {
		order[i] = i
	}
	if r.orderer != nil && r.orderer.ReverseChildren(n) {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	if !r.parallel || len(ctxs) < 2 || !independent(n) {
		for _, i := range order {
			r.visit(ctxs[i])
			if r.aborted.Load() {
				return
			}
		}
		return
	}

	// Spawn while workers are free and fall back to the calling goroutine
	// otherwise, so nested subtrees never wait on the pool. Bottom-up
	// passes write through mappings into n's state; they run here, after
	// the join, in visiting order.
	due := make([]bool, len(ctxs))
	var wg sync.WaitGroup
	for _, i := range order {
		c := ctxs[i]
		if r.eng.sem.TryAcquire(1) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer r.eng.sem.Release(1)
				due[i] = r.descend(c)
			}()
			continue
		}
		due[i] = r.descend(c)
	}
	wg.Wait()

	for _, i := range order {
		if r.aborted.Load() {
			return
		}
		if due[i] {
			r.ascend(ctxs[i])
		}
	}
}

// independent reports whether the subtrees below n only touch their own
// states, apart from mappings directly below n reading from and writing
// back into n's state. Other sharing, such as an interaction force field
// reaching into a sibling, keeps the children on one goroutine.
func independent(n *scene.Node) bool {
	own := n.MechanicalState()
	for _, c := range n.Children() {
		owned := make(map[scene.MechanicalState]bool)
		var touched []scene.MechanicalState
		c.Walk(func(d *scene.Node) bool {
			if s := d.MechanicalState(); s != nil {
				owned[s] = true
			}
			if m := d.MechanicalMapping(); m != nil && (d != c || own == nil || m.From() != own) {
				touched = append(touched, m.From())
			}
			for _, ff := range d.InteractionForceFields() {
				touched = append(touched, ff.InteractingStates()...)
			}
			return true
		})
		for _, s := range touched {
			if !owned[s] {
				return false
			}
		}
	}
	return true
}

func dispatch[T any](ctx *Context, objs []T, fn func(*Context, T) Result) Result {
	for _, o := range objs {
		if res := fn(ctx, o); res != Continue {
			return res
		}
	}
	return Continue
}

func leave[T any](ctx *Context, objs []T, fn func(*Context, T) Result) Result {
	for _, o := range objs {
		if fn(ctx, o) == Abort {
			return Abort
		}
	}
	return Continue
}

func (r *run) topDown(ctx *Context, stop bool) Result {
	n := ctx.Node
	op := r.op

	if v, ok := op.(OdeSolverVisitor); ok {
		if res := dispatch(ctx, n.OdeSolvers(), v.VisitOdeSolver); res != Continue {
			return res
		}
	}
	if v, ok := op.(ConstraintSolverVisitor); ok {
		if res := dispatch(ctx, n.ConstraintSolvers(), v.VisitConstraintSolver); res != Continue {
			return res
		}
	}

	m := n.MechanicalMapping()
	if m != nil {
		if stop {
			return Prune
		}
		if v, ok := op.(MappingVisitor); ok {
			if res := v.VisitMapping(ctx, m); res != Continue {
				return res
			}
		}
	}

	if s := n.MechanicalState(); s != nil {
		res := Continue
		if m != nil {
			if v, ok := op.(MappedStateVisitor); ok {
				res = v.VisitMappedState(ctx, s)
			}
		} else if v, ok := op.(StateVisitor); ok {
			res = v.VisitState(ctx, s)
		}
		if res != Continue {
			return res
		}
	}

	if v, ok := op.(MassVisitor); ok {
		if res := dispatch(ctx, n.Masses(), v.VisitMass); res != Continue {
			return res
		}
	}
	ffv, hasFF := op.(ForceFieldVisitor)
	if hasFF {
		if res := dispatch(ctx, n.ForceFields(), ffv.VisitForceField); res != Continue {
			return res
		}
	}
	if v, ok := op.(InteractionForceFieldVisitor); ok {
		if res := dispatch(ctx, n.InteractionForceFields(), v.VisitInteractionForceField); res != Continue {
			return res
		}
	} else if hasFF {
		for _, ff := range n.InteractionForceFields() {
			if res := ffv.VisitForceField(ctx, ff); res != Continue {
				return res
			}
		}
	}
	if v, ok := op.(ProjectiveConstraintVisitor); ok {
		if res := dispatch(ctx, n.ProjectiveConstraintSets(), v.VisitProjectiveConstraint); res != Continue {
			return res
		}
	}
	if v, ok := op.(ConstraintSetVisitor); ok {
		if res := dispatch(ctx, n.ConstraintSets(), v.VisitConstraintSet); res != Continue {
			return res
		}
	}
	return Continue
}

func (r *run) bottomUp(ctx *Context, stop bool) Result {
	n := ctx.Node
	op := r.op

	if v, ok := op.(ProjectiveConstraintLeaver); ok {
		if res := leave(ctx, n.ProjectiveConstraintSets(), v.LeaveProjectiveConstraint); res == Abort {
			return res
		}
	}
	if v, ok := op.(ConstraintSetLeaver); ok {
		if res := leave(ctx, n.ConstraintSets(), v.LeaveConstraintSet); res == Abort {
			return res
		}
	}

	s := n.MechanicalState()
	if m := n.MechanicalMapping(); m != nil {
		if !stop {
			if v, ok := op.(MappedStateLeaver); ok && s != nil {
				if res := v.LeaveMappedState(ctx, s); res == Abort {
					return res
				}
			}
			if v, ok := op.(MappingLeaver); ok {
				if res := v.LeaveMapping(ctx, m); res == Abort {
					return res
				}
			}
		}
	} else if s != nil {
		if v, ok := op.(StateLeaver); ok {
			if res := v.LeaveState(ctx, s); res == Abort {
				return res
			}
		}
	}

	if v, ok := op.(OdeSolverLeaver); ok {
		if res := leave(ctx, n.OdeSolvers(), v.LeaveOdeSolver); res == Abort {
			return res
		}
	}
	if v, ok := op.(ConstraintSolverLeaver); ok {
		if res := leave(ctx, n.ConstraintSolvers(), v.LeaveConstraintSolver); res == Abort {
			return res
		}
	}
	return Continue
}
