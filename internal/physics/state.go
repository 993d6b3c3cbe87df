package physics

import (
	"github.com/san-kum/mechsim/internal/linalg"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

type vectors struct {
	name     string
	n, dim   int
	vecs     map[vecid.VecID][]float64
	matrices map[vecid.VecID]*linalg.RowMatrix
}

func newVectors(name string, n, dim int) vectors {
	v := vectors{
		name:     name,
		n:        n,
		dim:      dim,
		vecs:     make(map[vecid.VecID][]float64),
		matrices: make(map[vecid.VecID]*linalg.RowMatrix),
	}
	for _, id := range vecid.Reserved(vecid.Coord) {
		v.vecs[id] = make([]float64, n*dim)
	}
	for _, id := range vecid.Reserved(vecid.Deriv) {
		v.vecs[id] = make([]float64, n*dim)
	}
	for _, id := range vecid.Reserved(vecid.MatrixDeriv) {
		v.matrices[id] = linalg.NewRowMatrix(n * dim)
	}
	return v
}

func (v *vectors) Name() string { return v.name }
func (v *vectors) Size() int    { return v.n }
func (v *vectors) Dim() int     { return v.dim }

func (v *vectors) Vec(id vecid.VecID) []float64 {
	if id.IsNull() || id.Cat == vecid.MatrixDeriv {
		return nil
	}
	return v.vecs[id]
}

func (v *vectors) MatrixDeriv(id vecid.VecID) *linalg.RowMatrix {
	if id.IsNull() || id.Cat != vecid.MatrixDeriv {
		return nil
	}
	return v.matrices[id]
}

func (v *vectors) Position() []float64 { return v.vecs[vecid.Position] }
func (v *vectors) Velocity() []float64 { return v.vecs[vecid.Velocity] }
func (v *vectors) Force() []float64    { return v.vecs[vecid.Force] }

// SetPoint writes the coordinates of point i into slot id.
func (v *vectors) SetPoint(id vecid.VecID, i int, p ...float64) {
	dst := v.Vec(id)
	if dst == nil || i < 0 || i >= v.n {
		return
	}
	copy(dst[i*v.dim:(i+1)*v.dim], p)
}

func (v *vectors) Point(id vecid.VecID, i int) []float64 {
	src := v.Vec(id)
	if src == nil || i < 0 || i >= v.n {
		return nil
	}
	return src[i*v.dim : (i+1)*v.dim]
}

// StoreRest copies the current positions into the rest and reset slots.
func (v *vectors) StoreRest() {
	copy(v.vecs[vecid.RestPosition], v.Position())
	copy(v.vecs[vecid.ResetPosition], v.Position())
	copy(v.vecs[vecid.ResetVelocity], v.Velocity())
}

// State holds n points of dim coordinates. Dynamic slots are taken from
// a pool sized for this state.
type State struct {
	vectors
	pool       *VecPool
	maskActive bool
	steps      int
	lastDt     float64
}

func NewState(name string, n, dim int) *State {
	return &State{
		vectors:    newVectors(name, n, dim),
		pool:       NewVecPool(n * dim),
		maskActive: true,
	}
}

func (s *State) AllocVec(id vecid.VecID) {
	if id.IsNull() {
		return
	}
	if id.Cat == vecid.MatrixDeriv {
		if _, ok := s.matrices[id]; !ok {
			s.matrices[id] = linalg.NewRowMatrix(s.n * s.dim)
		}
		return
	}
	if _, ok := s.vecs[id]; !ok {
		s.vecs[id] = s.pool.Get()
	}
}

func (s *State) FreeVec(id vecid.VecID) {
	if !id.IsDynamic() {
		return
	}
	if id.Cat == vecid.MatrixDeriv {
		delete(s.matrices, id)
		return
	}
	if v, ok := s.vecs[id]; ok {
		s.pool.Put(v)
		delete(s.vecs, id)
	}
}

func (s *State) SetForceMaskActive(active bool) { s.maskActive = active }
func (s *State) ForceMaskActive() bool          { return s.maskActive }

func (s *State) BeginIntegration(dt float64) { s.lastDt = dt }

func (s *State) EndIntegration(float64) {
	s.steps++
	clear(s.vecs[vecid.ExternalForce])
}

// Steps returns the number of completed integration steps.
func (s *State) Steps() int { return s.steps }

// ApplyForce adds an external force on point i for the current step.
func (s *State) ApplyForce(i int, f ...float64) {
	ext := s.Point(vecid.ExternalForce, i)
	for k := range ext {
		if k < len(f) {
			ext[k] += f[k]
		}
	}
}

func (s *State) AccumulateForce(_ *scene.MechanicalParams, f vecid.MultiVecID) {
	dst := s.Vec(f.For(s))
	ext := s.vecs[vecid.ExternalForce]
	if dst == nil {
		return
	}
	for i := range dst {
		dst[i] += ext[i]
	}
}

// StaticState holds only the well-known slots and cannot allocate.
type StaticState struct {
	vectors
}

func NewStaticState(name string, n, dim int) *StaticState {
	return &StaticState{vectors: newVectors(name, n, dim)}
}
