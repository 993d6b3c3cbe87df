package physics

import (
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

func vecOf(s scene.MechanicalState, id vecid.MultiVecID) []float64 {
	if s == nil {
		return nil
	}
	v := id.For(s)
	if v.IsNull() {
		return nil
	}
	return s.Vec(v)
}

// UniformMass gives every point of its node's state the same mass. It is
// also a force field applying the node's gravity.
type UniformMass struct {
	name string
	m    float64
	node *scene.Node

	// SeparateGravity keeps gravity out of AddForce; it is then added to
	// velocities by AddGravityToV.
	SeparateGravity bool
}

func NewUniformMass(name string, m float64) *UniformMass {
	return &UniformMass{name: name, m: m}
}

func (u *UniformMass) Name() string             { return u.name }
func (u *UniformMass) Mass() float64            { return u.m }
func (u *UniformMass) SetContext(n *scene.Node) { u.node = n }

func (u *UniformMass) state() scene.MechanicalState {
	if u.node == nil {
		return nil
	}
	return u.node.MechanicalState()
}

func (u *UniformMass) gravity() []float64 {
	if u.node == nil {
		return nil
	}
	return u.node.Gravity()
}

func (u *UniformMass) AddMDx(_ *scene.MechanicalParams, res, dx vecid.MultiVecID, factor float64) {
	s := u.state()
	r, d := vecOf(s, res), vecOf(s, dx)
	if r == nil || d == nil {
		return
	}
	for i := range r {
		r[i] += factor * u.m * d[i]
	}
}

func (u *UniformMass) AccFromF(_ *scene.MechanicalParams, a, f vecid.MultiVecID) {
	s := u.state()
	av, fv := vecOf(s, a), vecOf(s, f)
	if av == nil || fv == nil || u.m == 0 {
		return
	}
	for i := range av {
		av[i] = fv[i] / u.m
	}
}

func (u *UniformMass) AddForce(_ *scene.MechanicalParams, f vecid.MultiVecID) {
	if u.SeparateGravity {
		return
	}
	s := u.state()
	fv, g := vecOf(s, f), u.gravity()
	if fv == nil || len(g) == 0 {
		return
	}
	dim := s.Dim()
	for p := 0; p < s.Size(); p++ {
		for k := 0; k < dim && k < len(g); k++ {
			fv[p*dim+k] += u.m * g[k]
		}
	}
}

// AddDForce adds nothing: a mass has no stiffness.
func (u *UniformMass) AddDForce(*scene.MechanicalParams, vecid.MultiVecID) {}

func (u *UniformMass) AddMBKdx(mp *scene.MechanicalParams, df vecid.MultiVecID) {
	if mp.MFactor != 0 {
		u.AddMDx(mp, df, mp.Dx, mp.MFactor)
	}
}

func (u *UniformMass) AddMBKToMatrix(mp *scene.MechanicalParams, acc scene.MatrixAccessor) {
	s := u.state()
	if s == nil || mp.MFactor == 0 {
		return
	}
	blk := acc.Block(s, s)
	if !blk.Valid() {
		return
	}
	for i := 0; i < s.Size()*s.Dim(); i++ {
		blk.Add(i, i, mp.MFactor*u.m)
	}
}

func (u *UniformMass) AddGravityToV(mp *scene.MechanicalParams, v vecid.MultiVecID) {
	if !u.SeparateGravity {
		return
	}
	s := u.state()
	vv, g := vecOf(s, v), u.gravity()
	if vv == nil {
		return
	}
	dim := s.Dim()
	for p := 0; p < s.Size(); p++ {
		for k := 0; k < dim && k < len(g); k++ {
			vv[p*dim+k] += mp.Dt * g[k]
		}
	}
}

func (u *UniformMass) KineticEnergy(mp *scene.MechanicalParams) float64 {
	v := vecOf(u.state(), mp.V)
	e := 0.0
	for _, x := range v {
		e += x * x
	}
	return 0.5 * u.m * e
}

// PotentialEnergy is the gravitational energy relative to the origin.
func (u *UniformMass) PotentialEnergy(mp *scene.MechanicalParams) float64 {
	s := u.state()
	x, g := vecOf(s, mp.X), u.gravity()
	if x == nil {
		return 0
	}
	e := 0.0
	dim := s.Dim()
	for p := 0; p < s.Size(); p++ {
		for k := 0; k < dim && k < len(g); k++ {
			e -= u.m * g[k] * x[p*dim+k]
		}
	}
	return e
}
