package ops

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/assembly"
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// cursor places each independent state in a global vector: at its
// accessor offset when an accessor is given, else one after another in
// traversal order.
type cursor struct {
	acc  *assembly.Accessor
	next int
}

func (c *cursor) place(s scene.MechanicalState, length int) (int, bool) {
	n := s.Size() * s.Dim()
	if c.acc != nil {
		off, ok := c.acc.Offset(s)
		if !ok || off+n > length {
			return 0, false
		}
		return off, true
	}
	off := c.next
	c.next += n
	if off+n > length {
		return 0, false
	}
	return off, true
}

// MultiVectorToBaseVector gathers src from every independent state into dst.
type MultiVectorToBaseVector struct {
	engine.Base
	cursor
	src vecid.MultiVecID
	dst *mat.VecDense
}

func NewMultiVectorToBaseVector(src vecid.MultiVecID, dst *mat.VecDense, acc *assembly.Accessor) *MultiVectorToBaseVector {
	return &MultiVectorToBaseVector{
		Base:   engine.Base{OpName: "MultiVectorToBaseVector"},
		cursor: cursor{acc: acc},
		src:    src,
		dst:    dst,
	}
}

func (o *MultiVectorToBaseVector) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.dst == nil {
		return engine.Continue
	}
	v := vec(s, o.src)
	off, ok := o.place(s, o.dst.Len())
	if v == nil || !ok {
		return engine.Continue
	}
	for i, x := range v {
		o.dst.SetVec(off+i, x)
	}
	return engine.Continue
}

// PeqBaseVector adds the matching range of src into dst on every
// independent state.
type PeqBaseVector struct {
	engine.Base
	cursor
	dst vecid.MultiVecID
	src *mat.VecDense
}

func NewPeqBaseVector(dst vecid.MultiVecID, src *mat.VecDense, acc *assembly.Accessor) *PeqBaseVector {
	return &PeqBaseVector{
		Base:   engine.Base{OpName: "MultiVectorPeqBaseVector"},
		cursor: cursor{acc: acc},
		dst:    dst,
		src:    src,
	}
}

func (o *PeqBaseVector) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.src == nil {
		return engine.Continue
	}
	v := vec(s, o.dst)
	off, ok := o.place(s, o.src.Len())
	if v == nil || !ok {
		return engine.Continue
	}
	for i := range v {
		v[i] += o.src.AtVec(off + i)
	}
	return engine.Continue
}

// FromBaseVector overwrites dst on every independent state with the
// matching range of src.
type FromBaseVector struct {
	engine.Base
	cursor
	dst vecid.MultiVecID
	src *mat.VecDense
}

func NewFromBaseVector(dst vecid.MultiVecID, src *mat.VecDense, acc *assembly.Accessor) *FromBaseVector {
	return &FromBaseVector{
		Base:   engine.Base{OpName: "MultiVectorFromBaseVector"},
		cursor: cursor{acc: acc},
		dst:    dst,
		src:    src,
	}
}

func (o *FromBaseVector) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.src == nil {
		return engine.Continue
	}
	v := vec(s, o.dst)
	off, ok := o.place(s, o.src.Len())
	if v == nil || !ok {
		return engine.Continue
	}
	for i := range v {
		v[i] = o.src.AtVec(off + i)
	}
	return engine.Continue
}

// IntegrateConstraints applies a global correction to independent states
// on the way up: x += pf c, v += vf c and dx = c, where c is the state's
// range of the correction vector.
type IntegrateConstraints struct {
	engine.Base
	acc        *assembly.Accessor
	correction *mat.VecDense
	pf, vf     float64
	x, v, dx   vecid.MultiVecID
}

func NewIntegrateConstraints(acc *assembly.Accessor, correction *mat.VecDense, positionFactor, velocityFactor float64, x, v, dx vecid.MultiVecID) *IntegrateConstraints {
	return &IntegrateConstraints{
		Base:       engine.Base{OpName: "IntegrateConstraints", Safe: true},
		acc:        acc,
		correction: correction,
		pf:         positionFactor,
		vf:         velocityFactor,
		x:          x,
		v:          v,
		dx:         dx,
	}
}

func (o *IntegrateConstraints) LeaveState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.acc == nil || o.correction == nil {
		return engine.Continue
	}
	off, ok := o.acc.Offset(s)
	n := s.Size() * s.Dim()
	if !ok || off+n > o.correction.Len() {
		return engine.Continue
	}
	c := o.correction.SliceVec(off, off+n)
	if d := vec(s, o.dx); d != nil {
		for i := range d {
			d[i] = c.AtVec(i)
		}
	}
	if x := vec(s, o.x); x != nil && o.pf != 0 {
		for i := range x {
			x[i] += o.pf * c.AtVec(i)
		}
	}
	if v := vec(s, o.v); v != nil && o.vf != 0 {
		for i := range v {
			v[i] += o.vf * c.AtVec(i)
		}
	}
	return engine.Continue
}
