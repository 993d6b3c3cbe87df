package physics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestStateDynamicSlots(t *testing.T) {
	s := NewState("s", 2, 3)
	id := vecid.Dynamic(vecid.Deriv, vecid.FirstDynamicIndex)

	if s.Vec(id) != nil {
		t.Fatal("dynamic slot present before allocation")
	}
	s.AllocVec(id)
	if got := len(s.Vec(id)); got != 6 {
		t.Fatalf("len = %d, want 6", got)
	}
	s.Vec(id)[0] = 4
	s.FreeVec(id)
	if s.Vec(id) != nil {
		t.Fatal("slot still present after free")
	}

	s.AllocVec(id)
	if s.Vec(id)[0] != 0 {
		t.Error("reused slot not zeroed")
	}

	s.FreeVec(vecid.Position)
	if s.Position() == nil {
		t.Error("well-known slot must not be freed")
	}

	m := vecid.Dynamic(vecid.MatrixDeriv, vecid.FirstDynamicIndex)
	s.AllocVec(m)
	if s.MatrixDeriv(m) == nil || s.MatrixDeriv(m).Cols() != 6 {
		t.Error("matrix slot not allocated with state width")
	}
}

func TestStateExternalForce(t *testing.T) {
	s := NewState("s", 2, 2)
	s.ApplyForce(1, 3, 4)
	s.AccumulateForce(nil, vecid.Force.Multi())
	want := []float64{0, 0, 3, 4}
	for i, w := range want {
		if s.Force()[i] != w {
			t.Fatalf("force = %v, want %v", s.Force(), want)
		}
	}
	s.EndIntegration(0.1)
	if s.Steps() != 1 {
		t.Errorf("steps = %d", s.Steps())
	}
	for _, x := range s.Vec(vecid.ExternalForce) {
		if x != 0 {
			t.Fatal("external force survives the step")
		}
	}
}

func TestUniformMassGravityAndEnergy(t *testing.T) {
	root := scene.NewNode("root")
	root.SetGravity([]float64{0, -10})
	s := NewState("s", 2, 2)
	m := NewUniformMass("m", 2)
	root.MustAdd(s, m)

	mp := scene.DefaultMechanicalParams()
	m.AddForce(mp, mp.F)
	if s.Force()[1] != -20 || s.Force()[3] != -20 {
		t.Errorf("gravity force = %v", s.Force())
	}

	m.AccFromF(mp, vecid.Dx.Multi(), mp.F)
	if got := s.Vec(vecid.Dx)[1]; got != -10 {
		t.Errorf("acceleration = %v, want -10", got)
	}

	s.SetPoint(vecid.Velocity, 0, 3, 4)
	if e := m.KineticEnergy(mp); !approx(e, 25) {
		t.Errorf("kinetic = %v, want 25", e)
	}
	s.SetPoint(vecid.Position, 1, 0, 5)
	if e := m.PotentialEnergy(mp); !approx(e, 100) {
		t.Errorf("potential = %v, want 100", e)
	}

	m.SeparateGravity = true
	s.Force()[1] = 0
	m.AddForce(mp, mp.F)
	if s.Force()[1] != 0 {
		t.Error("separate gravity still applied as force")
	}
	mp.Dt = 0.5
	m.AddGravityToV(mp, mp.V)
	if got := s.Velocity()[1]; got != -1 {
		t.Errorf("velocity = %v, want -1", got)
	}
}

func TestSpringForceAndStiffness(t *testing.T) {
	root := scene.NewNode("root")
	s := NewState("s", 2, 2)
	root.MustAdd(s)
	s.SetPoint(vecid.Position, 1, 2, 0)
	sf := NewSpringForceField("spring", s, s, Spring{A: 0, B: 1, Ks: 10, Rest: 1})

	mp := scene.DefaultMechanicalParams()
	sf.AddForce(mp, mp.F)
	// stretched by 1 along x: point 0 pulled to +x, point 1 to -x
	if s.Force()[0] != 10 || s.Force()[2] != -10 {
		t.Fatalf("force = %v", s.Force())
	}
	if e := sf.PotentialEnergy(mp); !approx(e, 5) {
		t.Errorf("energy = %v, want 5", e)
	}

	s.SetPoint(vecid.Dx, 1, 1, 1)
	sf.AddDForce(mp, mp.DF)
	df := s.Vec(vecid.DForce)
	if df[0] != 10 || df[1] != 0 || df[2] != -10 || df[3] != 0 {
		t.Errorf("df = %v", df)
	}
}

func TestFixedConstraintProjection(t *testing.T) {
	root := scene.NewNode("root")
	s := NewState("s", 2, 1)
	fc := NewFixedConstraint("fix", 0)
	root.MustAdd(s, fc)
	s.SetPoint(vecid.Position, 0, 3)
	s.StoreRest()
	s.SetPoint(vecid.Position, 0, 7)
	s.SetPoint(vecid.Velocity, 0, 1)
	s.SetPoint(vecid.Velocity, 1, 1)

	mp := scene.DefaultMechanicalParams()
	fc.ProjectPosition(mp, mp.X)
	fc.ProjectVelocity(mp, mp.V)
	if s.Position()[0] != 3 {
		t.Errorf("x = %v, want rest 3", s.Position()[0])
	}
	if s.Velocity()[0] != 0 || s.Velocity()[1] != 1 {
		t.Errorf("v = %v", s.Velocity())
	}

	j := s.MatrixDeriv(vecid.ConstraintJacobian)
	j.Set(0, 0, 1)
	j.Set(0, 1, 2)
	fc.ProjectJacobianMatrix(mp, vecid.ConstraintJacobian.Multi())
	if j.At(0, 0) != 0 || j.At(0, 1) != 2 {
		t.Errorf("jacobian row = %v", j.Row(0))
	}
}

func TestPointConstraintRowsAndViolation(t *testing.T) {
	root := scene.NewNode("root")
	s := NewState("s", 3, 2)
	pc := NewPointConstraint("pin", 2, 1, 1)
	root.MustAdd(s, pc)
	s.SetPoint(vecid.Position, 2, 1.5, 0.5)

	cp := scene.DefaultConstraintParams()
	next := pc.BuildConstraintMatrix(cp, cp.J, 4)
	if next != 6 || pc.FirstRow() != 4 {
		t.Fatalf("next = %d, first = %d", next, pc.FirstRow())
	}
	j := s.MatrixDeriv(vecid.ConstraintJacobian)
	if j.At(4, 4) != 1 || j.At(5, 5) != 1 {
		t.Errorf("rows = %v %v", j.Row(4), j.Row(5))
	}

	out := make([]float64, 6)
	pc.Violation(cp, out)
	if !approx(out[4], 0.5) || !approx(out[5], -0.5) {
		t.Errorf("violation = %v", out)
	}

	pc.ResetConstraint()
	if pc.FirstRow() != -1 {
		t.Error("reset keeps row")
	}
}

func TestAffineMapping(t *testing.T) {
	parent := NewState("p", 2, 1)
	child := NewState("c", 1, 1)
	a := mat.NewDense(1, 2, []float64{1, 1})
	m := NewAffineMapping("sum", parent, child, a, []float64{0.5})

	parent.SetPoint(vecid.Position, 0, 1)
	parent.SetPoint(vecid.Position, 1, 2)
	mp := scene.DefaultMechanicalParams()
	m.Apply(mp, mp.X, mp.X)
	if child.Position()[0] != 3.5 {
		t.Errorf("apply = %v", child.Position())
	}

	child.Force()[0] = 2
	m.ApplyJT(mp, mp.F, mp.F)
	if parent.Force()[0] != 2 || parent.Force()[1] != 2 {
		t.Errorf("applyJT = %v", parent.Force())
	}

	cj := child.MatrixDeriv(vecid.ConstraintJacobian)
	cj.Set(0, 0, 3)
	cp := scene.DefaultConstraintParams()
	m.ApplyJTMatrix(cp, cp.J, cp.J)
	pj := parent.MatrixDeriv(vecid.ConstraintJacobian)
	if pj.At(0, 0) != 3 || pj.At(0, 1) != 3 {
		t.Errorf("applyJTMatrix = %v", pj.Row(0))
	}
}

func TestAffineMappingRejectsMismatchedShapes(t *testing.T) {
	parent := NewState("p", 2, 1)
	child := NewState("c", 3, 1)
	m := NewAffineMapping("bad", parent, child, mat.NewDense(2, 2, []float64{1, 2, 3, 4}), nil)
	copy(parent.Position(), []float64{1, 1})
	copy(child.Position(), []float64{7, 7, 7})

	mp := scene.DefaultMechanicalParams()
	m.Apply(mp, mp.X, mp.X)
	m.ApplyJT(mp, mp.F, mp.X)
	if child.Position()[0] != 7 || parent.Force()[0] != 0 {
		t.Errorf("mismatched mapping wrote x = %v, f = %v", child.Position(), parent.Force())
	}
}

func TestIdentityMappingTransposeAccumulates(t *testing.T) {
	parent := NewState("p", 2, 2)
	child := NewState("c", 2, 2)
	m := NewIdentityMapping("id", parent, child)
	copy(parent.Force(), []float64{1, 1, 1, 1})
	copy(child.Force(), []float64{1, 2, 3, 4})

	mp := scene.DefaultMechanicalParams()
	m.ApplyJT(mp, mp.F, mp.F)
	want := []float64{2, 3, 4, 5}
	for i, w := range want {
		if parent.Force()[i] != w {
			t.Fatalf("f = %v, want %v", parent.Force(), want)
		}
	}
}

func TestVecPoolZeroesOnPut(t *testing.T) {
	p := NewVecPool(3)
	v := p.Get()
	v[1] = 9
	p.Put(v)
	p.Put(make([]float64, 2))
	if got := p.Get(); len(got) != 3 || got[1] != 0 {
		t.Errorf("got %v", got)
	}
}

func TestServoForce(t *testing.T) {
	root := scene.NewNode("root")
	s := NewState("s", 1, 2)
	sv := NewServo("lift", 0, 1, 10, 2, 3, 1)
	root.MustAdd(s, sv)
	s.SetPoint(vecid.Velocity, 0, 0, 0.5)

	mp := scene.DefaultMechanicalParams()
	sv.AddForce(mp, mp.F)
	// e = 1, v = 0.5, integral still empty
	if got := s.Force()[1]; !approx(got, 10-1.5) {
		t.Fatalf("force = %v, want 8.5", got)
	}
	if s.Force()[0] != 0 {
		t.Error("servo pushed the wrong axis")
	}

	root.AdvanceTime(0.5)
	sv.AddForce(mp, mp.F)
	if !approx(sv.Integral(), 0.5) {
		t.Errorf("integral = %v, want 0.5", sv.Integral())
	}
	// repeated evaluation within a step does not integrate again
	sv.AddForce(mp, mp.F)
	if !approx(sv.Integral(), 0.5) {
		t.Errorf("integral = %v after substep", sv.Integral())
	}

	if e := sv.PotentialEnergy(mp); !approx(e, 5) {
		t.Errorf("energy = %v, want 5", e)
	}

	s.SetPoint(vecid.Dx, 0, 1, 2)
	mp.BFactor = 1
	sv.AddDForce(mp, mp.DF)
	df := s.Vec(vecid.DForce)
	if df[0] != 0 || !approx(df[1], -2*(10+3)) {
		t.Errorf("df = %v", df)
	}

	sv.Reset()
	if sv.Integral() != 0 {
		t.Error("reset keeps integral")
	}
}
