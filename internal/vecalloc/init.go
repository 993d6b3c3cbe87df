package vecalloc

import (
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// Init copies src into dest on every state. With propagate, mapped states
// are filled by their mapping (Apply for coordinates, ApplyJ for
// derivatives) instead of copied. A null src zeroes dest. Matrix slots
// are left alone.
func Init(eng *engine.Engine, root *scene.Node, dest, src vecid.MultiVecID, propagate bool) engine.Outcome {
	if dest.Category() == vecid.MatrixDeriv {
		return engine.Completed
	}
	return eng.Execute(&initOp{
		Base:      engine.Base{OpName: "VInit", Policy: engine.CrossAllMappings},
		mp:        scene.DefaultMechanicalParams(),
		dest:      dest,
		src:       src,
		propagate: propagate,
	}, root)
}

type initOp struct {
	engine.Base
	mp        *scene.MechanicalParams
	dest      vecid.MultiVecID
	src       vecid.MultiVecID
	propagate bool
}

func (o *initOp) copy(s scene.MechanicalState) {
	d := s.Vec(o.dest.For(s))
	if d == nil {
		return
	}
	if o.src.IsNull() {
		clear(d)
		return
	}
	if v := s.Vec(o.src.For(s)); v != nil {
		copy(d, v)
	}
}

func (o *initOp) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	o.copy(s)
	return engine.Continue
}

func (o *initOp) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	if !o.propagate {
		return engine.Continue
	}
	if o.dest.Category() == vecid.Coord {
		m.Apply(o.mp, o.dest, o.dest)
	} else {
		m.ApplyJ(o.mp, o.dest, o.dest)
	}
	return engine.Continue
}

func (o *initOp) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if !o.propagate {
		o.copy(s)
	}
	return engine.Continue
}
