package ops

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/assembly"
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

// GetMatrixDimension registers every state with acc: independent states
// get global rows, mapped states are recorded with their mapping.
type GetMatrixDimension struct {
	engine.Base
	acc *assembly.Accessor
}

func NewGetMatrixDimension(acc *assembly.Accessor) *GetMatrixDimension {
	return &GetMatrixDimension{
		Base: engine.Base{OpName: "GetMatrixDimension"},
		acc:  acc,
	}
}

func (o *GetMatrixDimension) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.acc != nil {
		o.acc.AddIndependent(s)
	}
	return engine.Continue
}

func (o *GetMatrixDimension) VisitMappedState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	if o.acc != nil {
		o.acc.AddMapped(s, ctx.Node.MechanicalMapping())
	}
	return engine.Continue
}

// BuildAccessor runs the dimension pass on root and returns a ready
// accessor.
func BuildAccessor(eng *engine.Engine, root *scene.Node) *assembly.Accessor {
	acc := assembly.New()
	eng.Execute(NewGetMatrixDimension(acc), root)
	acc.Setup()
	return acc
}

// AddMBKToMatrix adds mFactor M + bFactor B + kFactor K of every force
// field into acc. Call acc.Finish afterwards to fold mapped blocks in.
type AddMBKToMatrix struct {
	engine.Base
	mp  *scene.MechanicalParams
	acc scene.MatrixAccessor
}

func NewAddMBKToMatrix(mp *scene.MechanicalParams, acc scene.MatrixAccessor) *AddMBKToMatrix {
	return &AddMBKToMatrix{
		Base: engine.Base{OpName: "AddMBKToMatrix", Policy: engine.StopAtNonMatrixMapping},
		mp:   mp,
		acc:  acc,
	}
}

func (o *AddMBKToMatrix) VisitForceField(_ *engine.Context, ff scene.ForceField) engine.Result {
	if o.acc == nil {
		return engine.Continue
	}
	if c, ok := ff.(scene.MatrixContributor); ok {
		c.AddMBKToMatrix(o.mp, o.acc)
	}
	return engine.Continue
}

// AddSubMBKToMatrix is AddMBKToMatrix restricted to the given dof
// indices. Contributors without subset support add their full matrix.
type AddSubMBKToMatrix struct {
	engine.Base
	mp     *scene.MechanicalParams
	acc    scene.MatrixAccessor
	subset []int
}

func NewAddSubMBKToMatrix(mp *scene.MechanicalParams, acc scene.MatrixAccessor, subset []int) *AddSubMBKToMatrix {
	return &AddSubMBKToMatrix{
		Base:   engine.Base{OpName: "AddSubMBKToMatrix", Policy: engine.StopAtNonMatrixMapping},
		mp:     mp,
		acc:    acc,
		subset: subset,
	}
}

func (o *AddSubMBKToMatrix) VisitForceField(ctx *engine.Context, ff scene.ForceField) engine.Result {
	if o.acc == nil {
		return engine.Continue
	}
	if c, ok := ff.(scene.SubMatrixContributor); ok {
		c.AddSubMBKToMatrix(o.mp, o.acc, o.subset)
		return engine.Continue
	}
	if c, ok := ff.(scene.MatrixContributor); ok {
		ctx.Warn(ff, "no subset support, adding full matrix")
		c.AddMBKToMatrix(o.mp, o.acc)
	}
	return engine.Continue
}

// ApplyProjectiveConstraintToMatrix lets projective constraints clear the
// rows and columns of the dofs they fix.
type ApplyProjectiveConstraintToMatrix struct {
	engine.Base
	mp  *scene.MechanicalParams
	acc scene.MatrixAccessor
}

func NewApplyProjectiveConstraintToMatrix(mp *scene.MechanicalParams, acc scene.MatrixAccessor) *ApplyProjectiveConstraintToMatrix {
	return &ApplyProjectiveConstraintToMatrix{
		Base: engine.Base{OpName: "ApplyProjectiveConstraintToMatrix"},
		mp:   mp,
		acc:  acc,
	}
}

func (o *ApplyProjectiveConstraintToMatrix) VisitProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	if o.acc == nil {
		return engine.Continue
	}
	if p, ok := c.(scene.MatrixProjector); ok {
		p.ApplyConstraintToMatrix(o.mp, o.acc)
	}
	return engine.Continue
}

// GetConstraintJacobian copies the constraint rows of independent states
// into j at the states' global column offsets.
type GetConstraintJacobian struct {
	engine.Base
	cp  *scene.ConstraintParams
	j   *mat.Dense
	acc *assembly.Accessor
}

func NewGetConstraintJacobian(cp *scene.ConstraintParams, j *mat.Dense, acc *assembly.Accessor) *GetConstraintJacobian {
	return &GetConstraintJacobian{
		Base: engine.Base{OpName: "GetConstraintJacobian"},
		cp:   cp,
		j:    j,
		acc:  acc,
	}
}

func (o *GetConstraintJacobian) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.j == nil || o.acc == nil {
		return engine.Continue
	}
	off, ok := o.acc.Offset(s)
	if !ok {
		return engine.Continue
	}
	id := o.cp.J.For(s)
	if id.IsNull() {
		return engine.Continue
	}
	md := s.MatrixDeriv(id)
	if md == nil {
		return engine.Continue
	}
	rows, cols := o.j.Dims()
	for _, r := range md.RowIndices() {
		if r >= rows {
			continue
		}
		for _, e := range md.Row(r) {
			if c := off + e.Col; c < cols {
				o.j.Set(r, c, o.j.At(r, c)+e.Value)
			}
		}
	}
	return engine.Continue
}

// ConstraintViolation asks every constraint set for its violation at the
// rows it claimed during the last build.
type ConstraintViolation struct {
	engine.Base
	cp  *scene.ConstraintParams
	out *mat.VecDense
}

func NewConstraintViolation(cp *scene.ConstraintParams, out *mat.VecDense) *ConstraintViolation {
	return &ConstraintViolation{
		Base: engine.Base{OpName: "ConstraintViolation", Policy: engine.CrossAllMappings},
		cp:   cp,
		out:  out,
	}
}

func (o *ConstraintViolation) VisitConstraintSet(_ *engine.Context, c scene.ConstraintSet) engine.Result {
	if o.out == nil || o.out.Len() == 0 {
		return engine.Continue
	}
	v, ok := c.(scene.ViolationSource)
	if !ok {
		return engine.Continue
	}
	if o.out.RawVector().Inc == 1 {
		v.Violation(o.cp, o.out.RawVector().Data[:o.out.Len()])
		return engine.Continue
	}
	// strided views go through a contiguous copy
	buf := mat.Col(nil, 0, o.out)
	v.Violation(o.cp, buf)
	o.out.CopyVec(mat.NewVecDense(len(buf), buf))
	return engine.Continue
}
