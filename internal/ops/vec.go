package ops

import (
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// vec resolves id on s. Null ids and slots s does not hold give nil.
func vec(s scene.MechanicalState, id vecid.MultiVecID) []float64 {
	v := id.For(s)
	if v.IsNull() {
		return nil
	}
	return s.Vec(v)
}

func reset(s scene.MechanicalState, id vecid.MultiVecID) {
	if v := vec(s, id); v != nil {
		clear(v)
	}
}

func copyVec(s scene.MechanicalState, dst, src vecid.MultiVecID) {
	d := vec(s, dst)
	if d == nil {
		return
	}
	if sv := vec(s, src); sv != nil {
		copy(d, sv)
	}
}

func setMask(s scene.MechanicalState, active bool) {
	if m, ok := s.(scene.MaskedState); ok {
		m.SetForceMaskActive(active)
	}
}

func accumulateExternal(mp *scene.MechanicalParams, s scene.MechanicalState, f vecid.MultiVecID) {
	if e, ok := s.(scene.ExternalForceState); ok {
		e.AccumulateForce(mp, f)
	}
}
