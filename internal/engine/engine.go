package engine

import (
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/san-kum/mechsim/internal/scene"
)

// Engine runs operations over scene trees. An Engine may be shared by
// concurrent Execute calls; they draw extra workers from the same pool.
type Engine struct {
	workers int
	sem     *semaphore.Weighted
	hook    Hook
	diag    Diagnostics
}

type Option func(*Engine)

// WithWorkers bounds the goroutines spawned for thread-safe operations.
// One or fewer disables parallel dispatch.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithHook(h Hook) Option {
	return func(e *Engine) {
		if h != nil {
			e.hook = h
		}
	}
}

func WithDiagnostics(d Diagnostics) Option {
	return func(e *Engine) {
		if d != nil {
			e.diag = d
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		workers: 1,
		hook:    NopHook{},
		diag:    NewLogDiagnostics(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.workers > 1 {
		e.sem = semaphore.NewWeighted(int64(e.workers - 1))
	}
	return e
}

// NewParallel uses one worker per CPU.
func NewParallel(opts ...Option) *Engine {
	return New(append([]Option{WithWorkers(runtime.NumCPU())}, opts...)...)
}

func (e *Engine) Workers() int             { return e.workers }
func (e *Engine) Hook() Hook               { return e.hook }
func (e *Engine) Diagnostics() Diagnostics { return e.diag }

// Execute walks the tree below root, dispatching op's callbacks.
func (e *Engine) Execute(op Operation, root *scene.Node) Outcome {
	if root == nil {
		return Completed
	}
	r := newRun(e, op)

	e.hook.BeginTraversal(op, root)
	ctx := r.newContext(root, nil)
	r.visit(ctx)
	out := Completed
	if r.aborted.Load() {
		out = Aborted
	} else if r.reducer != nil {
		r.reducer.Finish(ctx.Acc)
	}
	e.hook.EndTraversal(op, root, out)
	return out
}

var Default = New()

func Execute(op Operation, root *scene.Node) Outcome {
	return Default.Execute(op, root)
}
