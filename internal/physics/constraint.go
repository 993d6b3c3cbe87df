package physics

import (
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// FixedConstraint pins points of its node's state to their rest position.
type FixedConstraint struct {
	name    string
	node    *scene.Node
	indices []int
}

func NewFixedConstraint(name string, indices ...int) *FixedConstraint {
	return &FixedConstraint{name: name, indices: indices}
}

func (c *FixedConstraint) Name() string             { return c.name }
func (c *FixedConstraint) SetContext(n *scene.Node) { c.node = n }
func (c *FixedConstraint) Indices() []int           { return c.indices }

func (c *FixedConstraint) state() scene.MechanicalState {
	if c.node == nil {
		return nil
	}
	return c.node.MechanicalState()
}

// each calls fn with the flat index of every fixed coordinate.
func (c *FixedConstraint) each(s scene.MechanicalState, fn func(k int)) {
	dim := s.Dim()
	for _, p := range c.indices {
		if p < 0 || p >= s.Size() {
			continue
		}
		for d := 0; d < dim; d++ {
			fn(p*dim + d)
		}
	}
}

func (c *FixedConstraint) ProjectPosition(_ *scene.MechanicalParams, x vecid.MultiVecID) {
	s := c.state()
	xv, rest := vecOf(s, x), vecOf(s, vecid.RestPosition.Multi())
	if xv == nil || rest == nil {
		return
	}
	c.each(s, func(k int) { xv[k] = rest[k] })
}

func (c *FixedConstraint) zero(v vecid.MultiVecID) {
	s := c.state()
	if vv := vecOf(s, v); vv != nil {
		c.each(s, func(k int) { vv[k] = 0 })
	}
}

func (c *FixedConstraint) ProjectVelocity(_ *scene.MechanicalParams, v vecid.MultiVecID) {
	c.zero(v)
}

func (c *FixedConstraint) ProjectResponse(_ *scene.MechanicalParams, dx vecid.MultiVecID) {
	c.zero(dx)
}

func (c *FixedConstraint) ProjectJacobianMatrix(_ *scene.MechanicalParams, j vecid.MultiVecID) {
	s := c.state()
	if s == nil {
		return
	}
	id := j.For(s)
	if id.IsNull() {
		return
	}
	if md := s.MatrixDeriv(id); md != nil {
		c.each(s, md.ClearCol)
	}
}

// ApplyConstraintToMatrix replaces the rows and columns of fixed
// coordinates with the identity.
func (c *FixedConstraint) ApplyConstraintToMatrix(_ *scene.MechanicalParams, acc scene.MatrixAccessor) {
	s := c.state()
	if s == nil {
		return
	}
	blk := acc.Block(s, s)
	if !blk.Valid() {
		return
	}
	c.each(s, func(k int) {
		blk.ClearRowCol(k)
		blk.Set(k, k, 1)
	})
}

// PointConstraint is a bilateral constraint holding one point of its
// node's state at a target, one Jacobian row per coordinate.
type PointConstraint struct {
	name     string
	node     *scene.Node
	index    int
	target   []float64
	firstRow int
}

func NewPointConstraint(name string, index int, target ...float64) *PointConstraint {
	return &PointConstraint{name: name, index: index, target: target, firstRow: -1}
}

func (c *PointConstraint) Name() string             { return c.name }
func (c *PointConstraint) SetContext(n *scene.Node) { c.node = n }

// FirstRow is the first Jacobian row claimed by the last build, or -1.
func (c *PointConstraint) FirstRow() int { return c.firstRow }

func (c *PointConstraint) ResetConstraint() { c.firstRow = -1 }

func (c *PointConstraint) BuildConstraintMatrix(_ *scene.ConstraintParams, j vecid.MultiVecID, row int) int {
	if c.node == nil {
		return row
	}
	s := c.node.MechanicalState()
	if s == nil || c.index < 0 || c.index >= s.Size() {
		return row
	}
	id := j.For(s)
	if id.IsNull() {
		return row
	}
	md := s.MatrixDeriv(id)
	if md == nil {
		return row
	}
	dim := s.Dim()
	c.firstRow = row
	for d := 0; d < dim; d++ {
		md.Set(row+d, c.index*dim+d, 1)
	}
	return row + dim
}

func (c *PointConstraint) Violation(cp *scene.ConstraintParams, out []float64) {
	if c.firstRow < 0 || c.node == nil {
		return
	}
	s := c.node.MechanicalState()
	x := vecOf(s, cp.X)
	if x == nil {
		return
	}
	dim := s.Dim()
	for d := 0; d < dim && c.firstRow+d < len(out); d++ {
		t := 0.0
		if d < len(c.target) {
			t = c.target[d]
		}
		out[c.firstRow+d] = x[c.index*dim+d] - t
	}
}
