package scene

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateState   = errors.New("scene: node already has a mechanical state")
	ErrDuplicateMapping = errors.New("scene: node already has a mechanical mapping")
	ErrMappingTarget    = errors.New("scene: mechanical mapping must target the node's state")
)

// Node is a vertex of the scene tree. Objects are classified by capability
// when added; one object may land in several lists.
type Node struct {
	name     string
	parent   *Node
	children []*Node
	objects  []Object

	state             MechanicalState
	mapping           Mapping
	mappings          []Mapping
	masses            []Mass
	forceFields       []ForceField
	interactions      []InteractionForceField
	projective        []ProjectiveConstraintSet
	constraints       []ConstraintSet
	odeSolvers        []OdeSolver
	constraintSolvers []ConstraintSolver

	gravity  []float64
	dt       float64
	time     float64
	sleeping bool

	sharedMu sync.Mutex
	shared   map[any]any
}

func NewNode(name string) *Node {
	return &Node{name: name}
}

func (n *Node) Name() string       { return n.name }
func (n *Node) Parent() *Node      { return n.parent }
func (n *Node) Children() []*Node  { return n.children }
func (n *Node) Objects() []Object  { return n.objects }
func (n *Node) Sleeping() bool     { return n.sleeping }
func (n *Node) SetSleeping(s bool) { n.sleeping = s }

func (n *Node) NewChild(name string) *Node {
	c := NewNode(name)
	n.AddChild(c)
	return c
}

func (n *Node) AddChild(c *Node) {
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
}

func (n *Node) removeChild(c *Node) {
	for i, ch := range n.children {
		if ch == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// AddObject attaches obj and files it under every capability it has.
func (n *Node) AddObject(obj Object) error {
	if s, ok := obj.(MechanicalState); ok {
		if n.state != nil {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateState, obj.Name(), n.name)
		}
		n.state = s
	}
	if m, ok := obj.(Mapping); ok {
		if m.IsMechanical() {
			if n.mapping != nil {
				return fmt.Errorf("%w: %s on %s", ErrDuplicateMapping, obj.Name(), n.name)
			}
			if n.state != nil && m.To() != n.state {
				return fmt.Errorf("%w: %s on %s", ErrMappingTarget, obj.Name(), n.name)
			}
			n.mapping = m
		} else {
			n.mappings = append(n.mappings, m)
		}
	}
	if m, ok := obj.(Mass); ok {
		n.masses = append(n.masses, m)
	}
	if ff, ok := obj.(InteractionForceField); ok {
		n.interactions = append(n.interactions, ff)
	} else if ff, ok := obj.(ForceField); ok {
		n.forceFields = append(n.forceFields, ff)
	}
	if c, ok := obj.(ProjectiveConstraintSet); ok {
		n.projective = append(n.projective, c)
	}
	if c, ok := obj.(ConstraintSet); ok {
		n.constraints = append(n.constraints, c)
	}
	if s, ok := obj.(OdeSolver); ok {
		n.odeSolvers = append(n.odeSolvers, s)
	}
	if s, ok := obj.(ConstraintSolver); ok {
		n.constraintSolvers = append(n.constraintSolvers, s)
	}
	if c, ok := obj.(Contextual); ok {
		c.SetContext(n)
	}
	n.objects = append(n.objects, obj)
	return nil
}

// MustAdd adds every object and panics on the first error.
func (n *Node) MustAdd(objs ...Object) *Node {
	for _, o := range objs {
		if err := n.AddObject(o); err != nil {
			panic(err)
		}
	}
	return n
}

func (n *Node) MechanicalState() MechanicalState      { return n.state }
func (n *Node) MechanicalMapping() Mapping            { return n.mapping }
func (n *Node) Mappings() []Mapping                   { return n.mappings }
func (n *Node) Masses() []Mass                        { return n.masses }
func (n *Node) ForceFields() []ForceField             { return n.forceFields }
func (n *Node) ConstraintSets() []ConstraintSet       { return n.constraints }
func (n *Node) OdeSolvers() []OdeSolver               { return n.odeSolvers }
func (n *Node) ConstraintSolvers() []ConstraintSolver { return n.constraintSolvers }

func (n *Node) InteractionForceFields() []InteractionForceField {
	return n.interactions
}

func (n *Node) ProjectiveConstraintSets() []ProjectiveConstraintSet {
	return n.projective
}

func (n *Node) SetGravity(g []float64) { n.gravity = append([]float64(nil), g...) }
func (n *Node) SetDt(dt float64)       { n.dt = dt }

// Gravity returns the closest gravity set on this node or an ancestor.
func (n *Node) Gravity() []float64 {
	for c := n; c != nil; c = c.parent {
		if c.gravity != nil {
			return c.gravity
		}
	}
	return nil
}

func (n *Node) Dt() float64 {
	for c := n; c != nil; c = c.parent {
		if c.dt > 0 {
			return c.dt
		}
	}
	return 0
}

func (n *Node) Root() *Node {
	c := n
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Time is kept on the root.
func (n *Node) Time() float64          { return n.Root().time }
func (n *Node) SetTime(t float64)      { n.Root().time = t }
func (n *Node) AdvanceTime(dt float64) { n.Root().time += dt }

// Shared returns the tree-wide value stored on the root under key,
// creating it with init on first use.
func (n *Node) Shared(key any, init func() any) any {
	r := n.Root()
	r.sharedMu.Lock()
	defer r.sharedMu.Unlock()
	if v, ok := r.shared[key]; ok {
		return v
	}
	if r.shared == nil {
		r.shared = make(map[any]any)
	}
	v := init()
	r.shared[key] = v
	return v
}

// Walk visits the subtree depth first, stopping early when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

func (n *Node) Path() string {
	if n.parent == nil {
		return "/" + n.name
	}
	return n.parent.Path() + "/" + n.name
}
