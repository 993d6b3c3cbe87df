package scene

import "github.com/san-kum/mechsim/internal/vecid"

// MechanicalParams carries the vectors and factors of one solver call.
type MechanicalParams struct {
	Dt   float64
	Time float64

	MFactor float64
	BFactor float64
	KFactor float64

	X  vecid.MultiVecID
	V  vecid.MultiVecID
	F  vecid.MultiVecID
	Dx vecid.MultiVecID
	DF vecid.MultiVecID
}

func DefaultMechanicalParams() *MechanicalParams {
	return &MechanicalParams{
		KFactor: 1,
		X:       vecid.Position.Multi(),
		V:       vecid.Velocity.Multi(),
		F:       vecid.Force.Multi(),
		Dx:      vecid.Dx.Multi(),
		DF:      vecid.DForce.Multi(),
	}
}

func (p *MechanicalParams) Clone() *MechanicalParams {
	c := *p
	return &c
}

// WithFactors returns a copy with the mass, damping and stiffness factors set.
func (p *MechanicalParams) WithFactors(m, b, k float64) *MechanicalParams {
	c := p.Clone()
	c.MFactor, c.BFactor, c.KFactor = m, b, k
	return c
}

func (p *MechanicalParams) WithDx(dx vecid.MultiVecID) *MechanicalParams {
	c := p.Clone()
	c.Dx = dx
	return c
}

type ConstraintOrder uint8

const (
	PositionOrder ConstraintOrder = iota
	VelocityOrder
	AccelerationOrder
)

type ConstraintParams struct {
	X     vecid.MultiVecID
	V     vecid.MultiVecID
	J     vecid.MultiVecID
	Order ConstraintOrder
}

func DefaultConstraintParams() *ConstraintParams {
	return &ConstraintParams{
		X: vecid.Position.Multi(),
		V: vecid.Velocity.Multi(),
		J: vecid.ConstraintJacobian.Multi(),
	}
}
