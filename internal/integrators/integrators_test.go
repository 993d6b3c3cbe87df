package integrators

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/physics"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecalloc"
	"github.com/san-kum/mechsim/internal/vecid"
)

func params(dt float64) *scene.MechanicalParams {
	mp := scene.DefaultMechanicalParams()
	mp.Dt = dt
	return mp
}

func fallingBall(g float64) (*scene.Node, *physics.State) {
	root := scene.NewNode("root")
	root.SetGravity([]float64{0, g})
	s := physics.NewState("ball", 1, 2)
	root.NewChild("ball").MustAdd(s, physics.NewUniformMass("m", 1))
	return root, s
}

// oscillator pins point 0 at the origin and ties point 1 to it with a unit
// spring of rest length 1, starting at x = 2. Point 1 follows 1 + cos(ωt).
func oscillator(ks float64) (*scene.Node, *physics.State) {
	root := scene.NewNode("root")
	root.SetGravity([]float64{0})
	s := physics.NewState("pair", 2, 1)
	s.StoreRest()
	s.SetPoint(vecid.Position, 1, 2)
	root.MustAdd(
		s,
		physics.NewUniformMass("m", 1),
		physics.NewFixedConstraint("anchor", 0),
		physics.NewSpringForceField("spring", s, s, physics.Spring{A: 0, B: 1, Ks: ks, Rest: 1}),
	)
	return root, s
}

func TestExplicitEulerFreeFall(t *testing.T) {
	tests := []struct {
		name   string
		solver *ExplicitEuler
		wantY  float64
	}{
		{"forward", NewExplicitEuler(nil), 0},
		{"symplectic", NewSymplecticEuler(nil), -0.001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, s := fallingBall(-10)
			if err := tt.solver.Solve(params(0.01), root); err != nil {
				t.Fatal(err)
			}
			if v := s.Velocity()[1]; math.Abs(v+0.1) > 1e-12 {
				t.Errorf("vy = %v, want -0.1", v)
			}
			if y := s.Position()[1]; math.Abs(y-tt.wantY) > 1e-12 {
				t.Errorf("y = %v, want %v", y, tt.wantY)
			}
			if n := vecalloc.TableOf(root).Live(); n != 0 {
				t.Errorf("%d allocations left after the step", n)
			}
		})
	}
}

func TestOscillatorAccuracy(t *testing.T) {
	tests := []struct {
		name   string
		solver scene.OdeSolver
		tol    float64
	}{
		{"rk4", NewRK4(nil), 1e-8},
		{"verlet", NewVerlet(nil), 1e-4},
		{"symplectic", NewSymplecticEuler(nil), 1e-2},
	}
	dt, steps := 0.01, 100
	want := 1 + math.Cos(float64(steps)*dt)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, s := oscillator(1)
			for i := 0; i < steps; i++ {
				if err := tt.solver.Solve(params(dt), root); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
			}
			if got := s.Position()[1]; math.Abs(got-want) > tt.tol {
				t.Errorf("x = %.9f, want %.9f", got, want)
			}
			if s.Position()[0] != 0 || s.Velocity()[0] != 0 {
				t.Errorf("anchor moved: x=%v v=%v", s.Position()[0], s.Velocity()[0])
			}
		})
	}
}

func TestImplicitEulerFreeFall(t *testing.T) {
	root, s := fallingBall(-10)
	ie := NewImplicitEuler(nil)
	if err := ie.Solve(params(0.01), root); err != nil {
		t.Fatal(err)
	}
	if v := s.Velocity()[1]; math.Abs(v+0.1) > 1e-9 {
		t.Errorf("vy = %v, want -0.1", v)
	}
	if y := s.Position()[1]; math.Abs(y+0.001) > 1e-9 {
		t.Errorf("y = %v, want -0.001", y)
	}
	if n := vecalloc.TableOf(root).Live(); n != 0 {
		t.Errorf("%d allocations left", n)
	}
}

func TestImplicitEulerStaysStableOnStiffSpring(t *testing.T) {
	const ks, dt = 1e6, 0.01

	root, s := oscillator(ks)
	ie := NewImplicitEuler(nil)
	for i := 0; i < 200; i++ {
		if err := ie.Solve(params(dt), root); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if amp := math.Abs(s.Position()[1] - 1); amp > 1+1e-9 {
			t.Fatalf("step %d: amplitude grew to %v", i, amp)
		}
	}
	if it, res := ie.LastSolve(); res > ie.Tolerance {
		t.Errorf("cg residual %v after %d iterations", res, it)
	}

	root, s = oscillator(ks)
	ee := NewSymplecticEuler(nil)
	for i := 0; i < 20; i++ {
		if err := ee.Solve(params(dt), root); err != nil {
			break
		}
	}
	if amp := math.Abs(s.Position()[1] - 1); amp < 1e3 && !math.IsNaN(amp) {
		t.Errorf("explicit scheme unexpectedly stable, amplitude %v", amp)
	}
}

func TestExplicitEulerReportsDivergence(t *testing.T) {
	root, _ := oscillator(1e12)
	ee := NewExplicitEuler(nil)
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = ee.Solve(params(0.1), root)
	}
	if !errors.Is(err, ErrDiverged) {
		t.Fatalf("err = %v, want ErrDiverged", err)
	}
}

func TestImplicitEulerThroughMapping(t *testing.T) {
	root := scene.NewNode("root")
	root.SetGravity([]float64{-10})
	parent := physics.NewState("parent", 1, 1)
	node := root.NewChild("parent").MustAdd(parent)
	child := physics.NewState("child", 1, 1)
	node.NewChild("child").MustAdd(
		child,
		physics.NewAffineMapping("double", parent, child, mat.NewDense(1, 1, []float64{2}), nil),
		physics.NewUniformMass("m", 1),
	)

	ie := NewImplicitEuler(nil)
	if err := ie.Solve(params(0.1), root); err != nil {
		t.Fatal(err)
	}
	// effective parent mass 4, force -20
	if v := parent.Velocity()[0]; math.Abs(v+0.5) > 1e-9 {
		t.Errorf("parent v = %v, want -0.5", v)
	}
	if v := child.Velocity()[0]; math.Abs(v+1) > 1e-9 {
		t.Errorf("child v = %v, want -1", v)
	}
	if n := vecalloc.TableOf(root).Live(); n != 0 {
		t.Errorf("%d allocations left", n)
	}
}

// tiedPair puts two bodies with their own implicit solvers in sibling
// nodes and couples them with a spring living in the first.
func tiedPair() (*scene.Node, *physics.State, *physics.State) {
	root := scene.NewNode("root")
	root.SetGravity([]float64{0})
	a, b := physics.NewState("a", 1, 1), physics.NewState("b", 1, 1)
	b.Position()[0] = 2
	root.NewChild("A").MustAdd(
		a,
		physics.NewUniformMass("ma", 1),
		physics.NewSpringForceField("tie", a, b, physics.Spring{Ks: 5, Rest: 1}),
		NewImplicitEuler(nil),
	)
	root.NewChild("B").MustAdd(b, physics.NewUniformMass("mb", 1), NewImplicitEuler(nil))
	return root, a, b
}

func TestSolversShareAllocationTable(t *testing.T) {
	root, _, b := tiedPair()
	nodeA, nodeB := root.Find("A"), root.Find("B")
	sa, sb := NewImplicitEuler(nil), NewImplicitEuler(nil)
	scope := vecalloc.Scope{Interactions: true}
	cats := []vecid.Category{vecid.Deriv}

	err := sa.scratch(nodeA, scope, cats, func(outer []vecid.MultiVecID) error {
		err := sb.scratch(nodeB, scope, cats, func(inner []vecid.MultiVecID) error {
			if outer[0].For(b) == inner[0].For(b) {
				t.Errorf("both solvers hold %v on b", inner[0].For(b))
			}
			return nil
		})
		if err != nil {
			return err
		}
		if b.Vec(outer[0].For(b)) == nil {
			t.Error("releasing one solver's slot freed the other's")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := vecalloc.TableOf(root).Live(); n != 0 {
		t.Errorf("%d allocations left", n)
	}
}

func TestIntegrationWithWorkersMatchesSerial(t *testing.T) {
	run := func(eng *engine.Engine) (float64, float64) {
		root, a, b := tiedPair()
		mp := params(0.01)
		for i := 0; i < 50; i++ {
			op := ops.NewIntegration(mp)
			eng.Execute(op, root)
			if err := op.Err(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
		if n := vecalloc.TableOf(root).Live(); n != 0 {
			t.Errorf("%d allocations left", n)
		}
		return a.Position()[0], b.Position()[0]
	}

	sa, sb := run(engine.New())
	pa, pb := run(engine.New(engine.WithWorkers(4)))
	if sa != pa || sb != pb {
		t.Errorf("parallel (%v, %v) != serial (%v, %v)", pa, pb, sa, sb)
	}
	if sb-sa >= 2 {
		t.Errorf("spring did not pull the bodies together: %v, %v", sa, sb)
	}
}

func TestLinearConstraintSolverProjectsViolation(t *testing.T) {
	root := scene.NewNode("root")
	s := physics.NewState("p", 1, 2)
	s.SetPoint(vecid.Position, 0, 1.5, 0.5)
	root.MustAdd(s, physics.NewUniformMass("m", 2), physics.NewPointConstraint("pin", 0, 1, 1))

	cs := NewLinearConstraintSolver(engine.New())
	if err := cs.SolveConstraints(params(0.5), root); err != nil {
		t.Fatal(err)
	}
	if cs.Rows() != 2 {
		t.Fatalf("rows = %d", cs.Rows())
	}
	want := []float64{1, 1}
	for k, w := range want {
		if math.Abs(s.Position()[k]-w) > 1e-9 {
			t.Errorf("x = %v, want %v", s.Position(), want)
		}
	}
	if math.Abs(s.Velocity()[0]+1) > 1e-9 || math.Abs(s.Velocity()[1]-1) > 1e-9 {
		t.Errorf("v = %v, want [-1 1]", s.Velocity())
	}
}

func TestLinearConstraintSolverThroughMapping(t *testing.T) {
	root := scene.NewNode("root")
	parent := physics.NewState("parent", 1, 1)
	parent.SetPoint(vecid.Position, 0, 1)
	node := root.NewChild("parent").MustAdd(parent, physics.NewUniformMass("m", 1))
	child := physics.NewState("child", 1, 1)
	child.SetPoint(vecid.Position, 0, 2)
	node.NewChild("child").MustAdd(
		child,
		physics.NewAffineMapping("double", parent, child, mat.NewDense(1, 1, []float64{2}), nil),
		physics.NewPointConstraint("pin", 0, 4),
	)
	cs := NewLinearConstraintSolver(nil)
	root.MustAdd(cs)

	op := ops.NewSolveConstraints(params(0.1))
	engine.Execute(op, root)
	if err := op.Err(); err != nil {
		t.Fatal(err)
	}
	if x := parent.Position()[0]; math.Abs(x-2) > 1e-9 {
		t.Errorf("parent x = %v, want 2", x)
	}
	if x := child.Position()[0]; math.Abs(x-4) > 1e-9 {
		t.Errorf("child x = %v, want 4", x)
	}
}

func TestLinearConstraintSolverSingularMass(t *testing.T) {
	root := scene.NewNode("root")
	s := physics.NewState("massless", 1, 1)
	root.MustAdd(s, physics.NewPointConstraint("pin", 0, 1))

	err := NewLinearConstraintSolver(nil).SolveConstraints(params(0.1), root)
	if !errors.Is(err, ErrSingular) {
		t.Fatalf("err = %v, want ErrSingular", err)
	}
}
