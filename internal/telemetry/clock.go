package telemetry

import (
	"sync"
	"time"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

// traversalKey identifies an open traversal. Solvers execute nested
// traversals, so each key holds a stack.
type traversalKey struct {
	op   string
	root *scene.Node
}

func keyOf(op engine.Operation, root *scene.Node) traversalKey {
	return traversalKey{op: op.Name(), root: root}
}

type stopwatch struct {
	mu     sync.Mutex
	now    func() time.Time
	starts map[traversalKey][]time.Time
}

func newStopwatch() *stopwatch {
	return &stopwatch{now: time.Now, starts: make(map[traversalKey][]time.Time)}
}

func (s *stopwatch) start(k traversalKey) {
	s.mu.Lock()
	s.starts[k] = append(s.starts[k], s.now())
	s.mu.Unlock()
}

// stop returns the time since the matching start, or false if none is open.
func (s *stopwatch) stop(k traversalKey) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.starts[k]
	if len(stack) == 0 {
		return 0, false
	}
	began := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(s.starts, k)
	} else {
		s.starts[k] = stack[:len(stack)-1]
	}
	return s.now().Sub(began), true
}
