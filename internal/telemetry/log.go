package telemetry

import (
	"log"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

// LogHook prints one line per traversal, and one per node visit when
// Nodes is set.
type LogHook struct {
	Logger *log.Logger
	Nodes  bool
	clock  *stopwatch
}

func NewLogHook(logger *log.Logger, nodes bool) *LogHook {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHook{Logger: logger, Nodes: nodes, clock: newStopwatch()}
}

func (h *LogHook) BeginTraversal(op engine.Operation, root *scene.Node) {
	h.clock.start(keyOf(op, root))
}

func (h *LogHook) EndTraversal(op engine.Operation, root *scene.Node, out engine.Outcome) {
	d, _ := h.clock.stop(keyOf(op, root))
	h.Logger.Printf("traversal %s from %s: %s in %s", op.Name(), root.Path(), out, d)
}

func (h *LogHook) BeginNode(engine.Operation, *scene.Node, engine.Phase) {}

func (h *LogHook) EndNode(op engine.Operation, node *scene.Node, phase engine.Phase, res engine.Result) {
	if !h.Nodes {
		return
	}
	h.Logger.Printf("  %s %s %s: %s", op.Name(), phase, node.Path(), res)
}
