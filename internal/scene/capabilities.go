package scene

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/linalg"
	"github.com/san-kum/mechsim/internal/vecid"
)

type Object interface {
	Name() string
}

// Contextual objects are told which node they were attached to.
type Contextual interface {
	SetContext(n *Node)
}

// MechanicalState holds the degrees of freedom of one body: Size points of
// Dim coordinates each. Coord and Deriv vectors are flat slices of length
// Size*Dim; Vec returns nil for slots the state does not hold.
type MechanicalState interface {
	Object
	Size() int
	Dim() int
	Vec(id vecid.VecID) []float64
	MatrixDeriv(id vecid.VecID) *linalg.RowMatrix
}

// DynamicState can create and release storage for dynamic slots.
type DynamicState interface {
	MechanicalState
	AllocVec(id vecid.VecID)
	FreeVec(id vecid.VecID)
}

type MaskedState interface {
	SetForceMaskActive(active bool)
}

type IntegrationAware interface {
	BeginIntegration(dt float64)
	EndIntegration(dt float64)
}

// ExternalForceState adds externally applied forces into f.
type ExternalForceState interface {
	AccumulateForce(mp *MechanicalParams, f vecid.MultiVecID)
}

// Mapping computes the state To from the state From.
type Mapping interface {
	Object
	From() MechanicalState
	To() MechanicalState
	IsMechanical() bool
	ForcesMapped() bool
	MatricesMapped() bool
	// Apply: out(To) = f(in(From))
	Apply(mp *MechanicalParams, out, in vecid.MultiVecID)
	// ApplyJ: out(To) = J in(From)
	ApplyJ(mp *MechanicalParams, out, in vecid.MultiVecID)
	// ApplyJT: out(From) += Jᵀ in(To)
	ApplyJT(mp *MechanicalParams, out, in vecid.MultiVecID)
	// ApplyJTMatrix: rows of out(From) += rows of in(To) times J
	ApplyJTMatrix(cp *ConstraintParams, out, in vecid.MultiVecID)
}

type JacobianMapping interface {
	Jacobian() mat.Matrix
}

type GeometricStiffnessMapping interface {
	UpdateK(mp *MechanicalParams, childForce vecid.MultiVecID)
	ApplyDJT(mp *MechanicalParams, parentForce, childForce vecid.MultiVecID)
}

type ForceField interface {
	Object
	AddForce(mp *MechanicalParams, f vecid.MultiVecID)
	// AddDForce adds (kFactor K + bFactor B) dx, with dx read from mp.Dx.
	AddDForce(mp *MechanicalParams, df vecid.MultiVecID)
}

type InteractionForceField interface {
	ForceField
	InteractingStates() []MechanicalState
}

// MBKdxContributor adds (mFactor M + bFactor B + kFactor K) dx in one call.
type MBKdxContributor interface {
	AddMBKdx(mp *MechanicalParams, df vecid.MultiVecID)
}

type MatrixContributor interface {
	AddMBKToMatrix(mp *MechanicalParams, acc MatrixAccessor)
}

type SubMatrixContributor interface {
	AddSubMBKToMatrix(mp *MechanicalParams, acc MatrixAccessor, subset []int)
}

type EnergySource interface {
	PotentialEnergy(mp *MechanicalParams) float64
}

type Mass interface {
	Object
	AddMDx(mp *MechanicalParams, res, dx vecid.MultiVecID, factor float64)
	AccFromF(mp *MechanicalParams, a, f vecid.MultiVecID)
}

type KineticEnergySource interface {
	KineticEnergy(mp *MechanicalParams) float64
}

type SeparateGravityMass interface {
	AddGravityToV(mp *MechanicalParams, v vecid.MultiVecID)
}

type ProjectiveConstraintSet interface {
	Object
	ProjectPosition(mp *MechanicalParams, x vecid.MultiVecID)
	ProjectVelocity(mp *MechanicalParams, v vecid.MultiVecID)
	ProjectResponse(mp *MechanicalParams, dx vecid.MultiVecID)
	ProjectJacobianMatrix(mp *MechanicalParams, j vecid.MultiVecID)
}

type MatrixProjector interface {
	ApplyConstraintToMatrix(mp *MechanicalParams, acc MatrixAccessor)
}

type ConstraintSet interface {
	Object
	ResetConstraint()
	// BuildConstraintMatrix writes Jacobian rows starting at row and
	// returns the next free row.
	BuildConstraintMatrix(cp *ConstraintParams, j vecid.MultiVecID, row int) int
}

// ViolationSource writes the current constraint violation at the rows it
// claimed during the last build.
type ViolationSource interface {
	Violation(cp *ConstraintParams, out []float64)
}

type OdeSolver interface {
	Object
	Solve(mp *MechanicalParams, node *Node) error
}

type ConstraintSolver interface {
	Object
	SolveConstraints(mp *MechanicalParams, node *Node) error
}

// MatrixBlock addresses the rows of one state against the columns of
// another inside an assembled matrix. Indices are local to the block.
type MatrixBlock interface {
	Valid() bool
	Add(i, j int, v float64)
	Set(i, j int, v float64)
	ClearRowCol(i int)
}

type MatrixAccessor interface {
	Block(row, col MechanicalState) MatrixBlock
}
