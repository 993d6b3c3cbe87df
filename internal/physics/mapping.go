package physics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// AffineMapping computes x_to = A x_from + b. Velocities, forces and
// constraint rows go through A.
type AffineMapping struct {
	name     string
	from, to scene.MechanicalState
	a        *mat.Dense
	b        []float64

	MapForces   bool
	MapMatrices bool
}

// NewAffineMapping maps from onto to. A must be (to.Size*to.Dim) x
// (from.Size*from.Dim); b may be nil.
func NewAffineMapping(name string, from, to scene.MechanicalState, a *mat.Dense, b []float64) *AffineMapping {
	return &AffineMapping{
		name:        name,
		from:        from,
		to:          to,
		a:           a,
		b:           b,
		MapForces:   true,
		MapMatrices: true,
	}
}

// NewIdentityMapping maps a state onto a copy of itself.
func NewIdentityMapping(name string, from, to scene.MechanicalState) *AffineMapping {
	n := from.Size() * from.Dim()
	if n == 0 {
		return NewAffineMapping(name, from, to, &mat.Dense{}, nil)
	}
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	return NewAffineMapping(name, from, to, mat.DenseCopyOf(mat.NewDiagDense(n, ones)), nil)
}

// views wraps dst and src as gonum vectors when their lengths fit rows x
// cols; gonum panics on mismatched or empty operands.
func views(dst []float64, rows int, src []float64, cols int) (*mat.VecDense, *mat.VecDense, bool) {
	if rows == 0 || cols == 0 || len(dst) != rows || len(src) != cols {
		return nil, nil, false
	}
	return mat.NewVecDense(rows, dst), mat.NewVecDense(cols, src), true
}

func (m *AffineMapping) Name() string                { return m.name }
func (m *AffineMapping) From() scene.MechanicalState { return m.from }
func (m *AffineMapping) To() scene.MechanicalState   { return m.to }
func (m *AffineMapping) IsMechanical() bool          { return true }
func (m *AffineMapping) ForcesMapped() bool          { return m.MapForces }
func (m *AffineMapping) MatricesMapped() bool        { return m.MapMatrices }
func (m *AffineMapping) Jacobian() mat.Matrix        { return m.a }

func (m *AffineMapping) Apply(_ *scene.MechanicalParams, out, in vecid.MultiVecID) {
	dst, src := vecOf(m.to, out), vecOf(m.from, in)
	if dst == nil || src == nil {
		return
	}
	r, c := m.a.Dims()
	y, x, ok := views(dst, r, src, c)
	if !ok {
		return
	}
	y.MulVec(m.a, x)
	for i := 0; i < len(dst) && i < len(m.b); i++ {
		dst[i] += m.b[i]
	}
}

func (m *AffineMapping) ApplyJ(_ *scene.MechanicalParams, out, in vecid.MultiVecID) {
	dst, src := vecOf(m.to, out), vecOf(m.from, in)
	if dst == nil || src == nil {
		return
	}
	r, c := m.a.Dims()
	if y, x, ok := views(dst, r, src, c); ok {
		y.MulVec(m.a, x)
	}
}

func (m *AffineMapping) ApplyJT(_ *scene.MechanicalParams, out, in vecid.MultiVecID) {
	dst, src := vecOf(m.from, out), vecOf(m.to, in)
	if dst == nil || src == nil {
		return
	}
	r, c := m.a.Dims()
	y, x, ok := views(dst, c, src, r)
	if !ok {
		return
	}
	var jt mat.VecDense
	jt.MulVec(m.a.T(), x)
	y.AddVec(y, &jt)
}

func (m *AffineMapping) ApplyJTMatrix(_ *scene.ConstraintParams, out, in vecid.MultiVecID) {
	oid, iid := out.For(m.from), in.For(m.to)
	if oid.IsNull() || iid.IsNull() {
		return
	}
	dst, src := m.from.MatrixDeriv(oid), m.to.MatrixDeriv(iid)
	if dst == nil || src == nil {
		return
	}
	dst.AddProduct(src, m.a)
}
