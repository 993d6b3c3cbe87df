package assembly_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/assembly"
	"github.com/san-kum/mechsim/internal/linalg"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

type state struct {
	name   string
	n, dim int
}

func (s *state) Name() string                              { return s.name }
func (s *state) Size() int                                 { return s.n }
func (s *state) Dim() int                                  { return s.dim }
func (s *state) Vec(vecid.VecID) []float64                 { return nil }
func (s *state) MatrixDeriv(vecid.VecID) *linalg.RowMatrix { return nil }

type linear struct {
	from, to scene.MechanicalState
	j        mat.Matrix
}

func (m *linear) Name() string                { return "linear" }
func (m *linear) From() scene.MechanicalState { return m.from }
func (m *linear) To() scene.MechanicalState   { return m.to }
func (m *linear) IsMechanical() bool          { return true }
func (m *linear) ForcesMapped() bool          { return true }
func (m *linear) MatricesMapped() bool        { return true }
func (m *linear) Jacobian() mat.Matrix        { return m.j }

func (m *linear) Apply(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID)         {}
func (m *linear) ApplyJ(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID)        {}
func (m *linear) ApplyJT(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID)       {}
func (m *linear) ApplyJTMatrix(*scene.ConstraintParams, vecid.MultiVecID, vecid.MultiVecID) {}

type opaque struct{ linear }

func (m *opaque) Jacobian() mat.Matrix { return nil }

func TestIndependentLayout(t *testing.T) {
	a, b := &state{name: "a", n: 2, dim: 1}, &state{name: "b", n: 1, dim: 3}
	acc := assembly.New()
	acc.AddIndependent(a)
	acc.AddIndependent(b)
	acc.AddIndependent(a)
	acc.Setup()

	require.Equal(t, 5, acc.Size())
	off, ok := acc.Offset(b)
	require.True(t, ok)
	require.Equal(t, 2, off)

	blk := acc.Block(b, a)
	require.True(t, blk.Valid())
	blk.Add(2, 1, 3)
	blk.Add(2, 1, 1)
	blk.Add(9, 9, 1)
	require.Equal(t, 4.0, acc.Matrix().At(4, 1))

	acc.Block(a, a).Set(0, 0, 7)
	acc.Block(a, a).ClearRowCol(1)
	require.Equal(t, 7.0, acc.Matrix().At(0, 0))
	require.Zero(t, acc.Matrix().At(4, 1))

	require.False(t, acc.Block(a, &state{name: "ghost", n: 1, dim: 1}).Valid())

	acc.Reset()
	require.Zero(t, mat.Sum(acc.Matrix()))
}

func TestEmptyAccessorHasNoMatrix(t *testing.T) {
	acc := assembly.New()
	acc.Setup()
	require.Nil(t, acc.Matrix())
	require.False(t, acc.Block(nil, nil).Valid())
	require.NoError(t, acc.Finish())
}

func TestMappedBlockProjectsThroughJacobian(t *testing.T) {
	parent := &state{name: "parent", n: 2, dim: 1}
	child := &state{name: "child", n: 1, dim: 1}
	// child = 2 p0 + p1
	m := &linear{from: parent, to: child, j: mat.NewDense(1, 2, []float64{2, 1})}

	acc := assembly.New()
	acc.AddIndependent(parent)
	acc.AddMapped(child, m)
	acc.Setup()

	acc.Block(child, child).Add(0, 0, 3)
	require.Zero(t, mat.Sum(acc.Matrix()))
	require.NoError(t, acc.Finish())

	want := mat.NewDense(2, 2, []float64{12, 6, 6, 3})
	require.True(t, mat.EqualApprox(want, acc.Matrix(), 1e-12))
}

func TestMixedBlockProjectsOneSide(t *testing.T) {
	parent := &state{name: "parent", n: 2, dim: 1}
	other := &state{name: "other", n: 1, dim: 1}
	child := &state{name: "child", n: 1, dim: 1}
	m := &linear{from: parent, to: child, j: mat.NewDense(1, 2, []float64{1, -1})}

	acc := assembly.New()
	acc.AddIndependent(parent)
	acc.AddIndependent(other)
	acc.AddMapped(child, m)
	acc.Setup()

	acc.Block(child, other).Add(0, 0, 5)
	require.NoError(t, acc.Finish())
	require.Equal(t, 5.0, acc.Matrix().At(0, 2))
	require.Equal(t, -5.0, acc.Matrix().At(1, 2))
}

func TestFinishWithoutJacobianFails(t *testing.T) {
	parent := &state{name: "parent", n: 1, dim: 1}
	child := &state{name: "child", n: 1, dim: 1}
	acc := assembly.New()
	acc.AddIndependent(parent)
	acc.AddMapped(child, &opaque{linear{from: parent, to: child}})
	acc.Setup()

	acc.Block(child, child).Add(0, 0, 1)
	err := acc.Finish()
	require.True(t, errors.Is(err, assembly.ErrNoJacobian))
}

func TestFinishRejectsBadShape(t *testing.T) {
	parent := &state{name: "parent", n: 2, dim: 1}
	child := &state{name: "child", n: 1, dim: 1}
	acc := assembly.New()
	acc.AddIndependent(parent)
	acc.AddMapped(child, &linear{from: parent, to: child, j: mat.NewDense(1, 3, nil)})
	acc.Setup()

	acc.Block(child, child).Add(0, 0, 1)
	require.ErrorIs(t, acc.Finish(), assembly.ErrShape)
}
