package integrators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
)

// LinearConstraintSolver removes the violation of bilateral constraints
// after each step. It assembles the mass matrix M and the constraint
// Jacobian J of its subtree, solves
//
//	(J M⁻¹ Jᵀ) λ = -φ
//
// and moves positions by M⁻¹ Jᵀ λ, changing velocities by the same
// correction over dt.
type LinearConstraintSolver struct {
	name string
	eng  *engine.Engine

	rows int
}

func NewLinearConstraintSolver(eng *engine.Engine) *LinearConstraintSolver {
	if eng == nil {
		eng = engine.New()
	}
	return &LinearConstraintSolver{name: "linear-constraint-solver", eng: eng}
}

func (c *LinearConstraintSolver) Name() string { return c.name }

// Rows reports the constraint rows handled by the last solve.
func (c *LinearConstraintSolver) Rows() int { return c.rows }

func (c *LinearConstraintSolver) SolveConstraints(mp *scene.MechanicalParams, node *scene.Node) error {
	cp := scene.DefaultConstraintParams()
	cp.X, cp.V = mp.X, mp.V

	c.eng.Execute(ops.NewResetConstraint(cp), node)
	build := ops.NewAccumulateConstraint(cp, 0)
	c.eng.Execute(build, node)
	c.eng.Execute(ops.NewProjectJacobianMatrix(mp, cp.J), node)
	c.rows = build.Rows()
	if c.rows == 0 {
		return nil
	}

	acc := ops.BuildAccessor(c.eng, node)
	n := acc.Size()
	if n == 0 {
		return nil
	}
	c.eng.Execute(ops.NewAddMBKToMatrix(mp.WithFactors(1, 0, 0), acc), node)
	if err := acc.Finish(); err != nil {
		return fmt.Errorf("%s: assemble mass: %w", c.name, err)
	}
	c.eng.Execute(ops.NewApplyProjectiveConstraintToMatrix(mp, acc), node)

	j := mat.NewDense(c.rows, n, nil)
	c.eng.Execute(ops.NewGetConstraintJacobian(cp, j, acc), node)
	phi := mat.NewVecDense(c.rows, nil)
	c.eng.Execute(ops.NewConstraintViolation(cp, phi), node)

	correction, err := c.correction(acc.Matrix(), j, phi)
	if err != nil {
		return err
	}

	inv := 0.0
	if mp.Dt > 0 {
		inv = 1 / mp.Dt
	}
	c.eng.Execute(ops.NewIntegrateConstraints(acc, correction, 1, inv, mp.X, mp.V, mp.Dx), node)
	c.eng.Execute(ops.NewPropagateOnlyPositionAndVelocity(mp, mp.X, mp.V, false), node)
	return nil
}

func (c *LinearConstraintSolver) correction(m *mat.Dense, j *mat.Dense, phi *mat.VecDense) (*mat.VecDense, error) {
	n, _ := m.Dims()
	sym := mat.NewSymDense(n, nil)
	for r := 0; r < n; r++ {
		for k := r; k < n; k++ {
			sym.SetSym(r, k, m.At(r, k))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("%s: mass matrix: %w", c.name, ErrSingular)
	}

	var minvJt mat.Dense
	if err := chol.SolveTo(&minvJt, j.T()); err != nil {
		return nil, fmt.Errorf("%s: M⁻¹Jᵀ: %w", c.name, err)
	}
	var w mat.Dense
	w.Mul(j, &minvJt)

	rhs := mat.NewVecDense(phi.Len(), nil)
	rhs.ScaleVec(-1, phi)
	var lambda mat.VecDense
	if err := lambda.SolveVec(&w, rhs); err != nil {
		if cond, ill := err.(mat.Condition); !ill || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%s: compliance: %w", c.name, ErrSingular)
		}
	}

	out := mat.NewVecDense(n, nil)
	out.MulVec(&minvJt, &lambda)
	return out, nil
}
