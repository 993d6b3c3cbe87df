package physics

import (
	"math"

	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// ConstantForceField applies the same force to a set of points of its
// node's state, or to every point when Indices is empty.
type ConstantForceField struct {
	name    string
	force   []float64
	node    *scene.Node
	Indices []int
}

func NewConstantForceField(name string, force ...float64) *ConstantForceField {
	return &ConstantForceField{name: name, force: force}
}

func (c *ConstantForceField) Name() string             { return c.name }
func (c *ConstantForceField) SetContext(n *scene.Node) { c.node = n }

func (c *ConstantForceField) points(s scene.MechanicalState) []int {
	if len(c.Indices) > 0 {
		return c.Indices
	}
	all := make([]int, s.Size())
	for i := range all {
		all[i] = i
	}
	return all
}

func (c *ConstantForceField) AddForce(_ *scene.MechanicalParams, f vecid.MultiVecID) {
	if c.node == nil {
		return
	}
	s := c.node.MechanicalState()
	fv := vecOf(s, f)
	if fv == nil {
		return
	}
	dim := s.Dim()
	for _, p := range c.points(s) {
		if p < 0 || p >= s.Size() {
			continue
		}
		for k := 0; k < dim && k < len(c.force); k++ {
			fv[p*dim+k] += c.force[k]
		}
	}
}

func (c *ConstantForceField) AddDForce(*scene.MechanicalParams, vecid.MultiVecID) {}

func (c *ConstantForceField) PotentialEnergy(mp *scene.MechanicalParams) float64 {
	if c.node == nil {
		return 0
	}
	s := c.node.MechanicalState()
	x := vecOf(s, mp.X)
	if x == nil {
		return 0
	}
	e := 0.0
	dim := s.Dim()
	for _, p := range c.points(s) {
		for k := 0; k < dim && k < len(c.force); k++ {
			e -= c.force[k] * x[p*dim+k]
		}
	}
	return e
}

type Spring struct {
	A, B int
	Ks   float64
	Kd   float64
	Rest float64
}

// SpringForceField connects points of two states, which may be the same
// state. Its stiffness is linearised along the current spring direction.
type SpringForceField struct {
	name    string
	a, b    scene.MechanicalState
	springs []Spring
}

func NewSpringForceField(name string, a, b scene.MechanicalState, springs ...Spring) *SpringForceField {
	return &SpringForceField{name: name, a: a, b: b, springs: springs}
}

func (sf *SpringForceField) Name() string      { return sf.name }
func (sf *SpringForceField) Springs() []Spring { return sf.springs }

func (sf *SpringForceField) AddSpring(s Spring) { sf.springs = append(sf.springs, s) }

func (sf *SpringForceField) InteractingStates() []scene.MechanicalState {
	if sf.a == sf.b {
		return []scene.MechanicalState{sf.a}
	}
	return []scene.MechanicalState{sf.a, sf.b}
}

// direction returns the unit vector from point A to point B and the
// current length.
func (sf *SpringForceField) direction(x vecid.MultiVecID, sp Spring) ([]float64, float64, bool) {
	xa, xb := vecOf(sf.a, x), vecOf(sf.b, x)
	dim := sf.a.Dim()
	if xa == nil || xb == nil || sp.A >= sf.a.Size() || sp.B >= sf.b.Size() {
		return nil, 0, false
	}
	u := make([]float64, dim)
	l := 0.0
	for k := 0; k < dim; k++ {
		u[k] = xb[sp.B*dim+k] - xa[sp.A*dim+k]
		l += u[k] * u[k]
	}
	l = math.Sqrt(l)
	if l == 0 {
		return nil, 0, false
	}
	for k := range u {
		u[k] /= l
	}
	return u, l, true
}

func (sf *SpringForceField) AddForce(mp *scene.MechanicalParams, f vecid.MultiVecID) {
	fa, fb := vecOf(sf.a, f), vecOf(sf.b, f)
	va, vb := vecOf(sf.a, mp.V), vecOf(sf.b, mp.V)
	if fa == nil || fb == nil {
		return
	}
	dim := sf.a.Dim()
	for _, sp := range sf.springs {
		u, l, ok := sf.direction(mp.X, sp)
		if !ok {
			continue
		}
		mag := sp.Ks * (l - sp.Rest)
		if va != nil && vb != nil {
			rel := 0.0
			for k := 0; k < dim; k++ {
				rel += (vb[sp.B*dim+k] - va[sp.A*dim+k]) * u[k]
			}
			mag += sp.Kd * rel
		}
		for k := 0; k < dim; k++ {
			fa[sp.A*dim+k] += mag * u[k]
			fb[sp.B*dim+k] -= mag * u[k]
		}
	}
}

func (sf *SpringForceField) coefficient(mp *scene.MechanicalParams, sp Spring) float64 {
	return mp.KFactor*sp.Ks + mp.BFactor*sp.Kd
}

func (sf *SpringForceField) AddDForce(mp *scene.MechanicalParams, df vecid.MultiVecID) {
	dfa, dfb := vecOf(sf.a, df), vecOf(sf.b, df)
	dxa, dxb := vecOf(sf.a, mp.Dx), vecOf(sf.b, mp.Dx)
	if dfa == nil || dfb == nil || dxa == nil || dxb == nil {
		return
	}
	dim := sf.a.Dim()
	for _, sp := range sf.springs {
		u, _, ok := sf.direction(mp.X, sp)
		if !ok {
			continue
		}
		proj := 0.0
		for k := 0; k < dim; k++ {
			proj += (dxb[sp.B*dim+k] - dxa[sp.A*dim+k]) * u[k]
		}
		c := sf.coefficient(mp, sp) * proj
		for k := 0; k < dim; k++ {
			dfa[sp.A*dim+k] += c * u[k]
			dfb[sp.B*dim+k] -= c * u[k]
		}
	}
}

func (sf *SpringForceField) AddMBKToMatrix(mp *scene.MechanicalParams, acc scene.MatrixAccessor) {
	aa, ab := acc.Block(sf.a, sf.a), acc.Block(sf.a, sf.b)
	ba, bb := acc.Block(sf.b, sf.a), acc.Block(sf.b, sf.b)
	dim := sf.a.Dim()
	for _, sp := range sf.springs {
		u, _, ok := sf.direction(mp.X, sp)
		if !ok {
			continue
		}
		c := sf.coefficient(mp, sp)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				k := c * u[i] * u[j]
				ia, ja := sp.A*dim+i, sp.A*dim+j
				ib, jb := sp.B*dim+i, sp.B*dim+j
				aa.Add(ia, ja, -k)
				ab.Add(ia, jb, k)
				ba.Add(ib, ja, k)
				bb.Add(ib, jb, -k)
			}
		}
	}
}

func (sf *SpringForceField) PotentialEnergy(mp *scene.MechanicalParams) float64 {
	e := 0.0
	for _, sp := range sf.springs {
		if _, l, ok := sf.direction(mp.X, sp); ok {
			e += 0.5 * sp.Ks * (l - sp.Rest) * (l - sp.Rest)
		}
	}
	return e
}
