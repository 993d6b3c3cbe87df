package engine

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/san-kum/mechsim/internal/scene"
)

type Phase uint8

const (
	TopDown Phase = iota
	BottomUp
)

func (p Phase) String() string {
	if p == BottomUp {
		return "bottom-up"
	}
	return "top-down"
}

// Hook observes traversals. It is called on every node of every traversal,
// from several goroutines when the operation runs in parallel.
type Hook interface {
	BeginTraversal(op Operation, root *scene.Node)
	EndTraversal(op Operation, root *scene.Node, out Outcome)
	BeginNode(op Operation, node *scene.Node, phase Phase)
	EndNode(op Operation, node *scene.Node, phase Phase, res Result)
}

type NopHook struct{}

func (NopHook) BeginTraversal(Operation, *scene.Node)         {}
func (NopHook) EndTraversal(Operation, *scene.Node, Outcome)  {}
func (NopHook) BeginNode(Operation, *scene.Node, Phase)       {}
func (NopHook) EndNode(Operation, *scene.Node, Phase, Result) {}

// Hooks fans every call out to each hook in order.
type Hooks []Hook

func (h Hooks) BeginTraversal(op Operation, root *scene.Node) {
	for _, x := range h {
		x.BeginTraversal(op, root)
	}
}

func (h Hooks) EndTraversal(op Operation, root *scene.Node, out Outcome) {
	for _, x := range h {
		x.EndTraversal(op, root, out)
	}
}

func (h Hooks) BeginNode(op Operation, node *scene.Node, phase Phase) {
	for _, x := range h {
		x.BeginNode(op, node, phase)
	}
}

func (h Hooks) EndNode(op Operation, node *scene.Node, phase Phase, res Result) {
	for _, x := range h {
		x.EndNode(op, node, phase, res)
	}
}

// Diagnostics receives conditions that were recovered locally, such as a
// static state met by an allocation.
type Diagnostics interface {
	Warn(node *scene.Node, obj scene.Object, msg string)
}

type LogDiagnostics struct {
	Logger *log.Logger
}

func NewLogDiagnostics() *LogDiagnostics {
	return &LogDiagnostics{Logger: log.New(os.Stderr, "mechsim: ", log.LstdFlags)}
}

func (d *LogDiagnostics) Warn(node *scene.Node, obj scene.Object, msg string) {
	path := "?"
	if node != nil {
		path = node.Path()
	}
	name := "-"
	if obj != nil {
		name = obj.Name()
	}
	d.Logger.Printf("warn %s [%s]: %s", path, name, msg)
}

type Warning struct {
	Node   string
	Object string
	Msg    string
}

// RecordingDiagnostics keeps warnings in memory.
type RecordingDiagnostics struct {
	mu       sync.Mutex
	warnings []Warning
}

func (d *RecordingDiagnostics) Warn(node *scene.Node, obj scene.Object, msg string) {
	w := Warning{Msg: msg}
	if node != nil {
		w.Node = node.Name()
	}
	if obj != nil {
		w.Object = obj.Name()
	}
	d.mu.Lock()
	d.warnings = append(d.warnings, w)
	d.mu.Unlock()
}

func (d *RecordingDiagnostics) Warnings() []Warning {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Warning(nil), d.warnings...)
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Node, w.Object, w.Msg)
}
