package physics

import (
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// Servo drives one coordinate of one point toward Target with a PID law,
// f = Kp e + Ki ∫e dt - Kd v with e = Target - x. The derivative term acts
// on the measured velocity so changing Target does not kick. The integral
// advances once per time step, using the error at the start of the step.
type Servo struct {
	name        string
	node        *scene.Node
	Point, Axis int
	Kp, Ki, Kd  float64
	Target      float64

	integral float64
	prevErr  float64
	prevT    float64
	started  bool
}

func NewServo(name string, point, axis int, kp, ki, kd, target float64) *Servo {
	return &Servo{name: name, Point: point, Axis: axis, Kp: kp, Ki: ki, Kd: kd, Target: target}
}

func (s *Servo) Name() string             { return s.name }
func (s *Servo) SetContext(n *scene.Node) { s.node = n }

// Reset clears the integral so the controller starts over.
func (s *Servo) Reset() {
	s.integral = 0
	s.prevErr = 0
	s.started = false
}

func (s *Servo) Integral() float64 { return s.integral }

// index is the flat coordinate driven, or -1 when out of range.
func (s *Servo) index() (scene.MechanicalState, int) {
	if s.node == nil {
		return nil, -1
	}
	st := s.node.MechanicalState()
	if st == nil || s.Point < 0 || s.Point >= st.Size() || s.Axis < 0 || s.Axis >= st.Dim() {
		return st, -1
	}
	return st, s.Point*st.Dim() + s.Axis
}

func (s *Servo) AddForce(mp *scene.MechanicalParams, f vecid.MultiVecID) {
	st, i := s.index()
	if i < 0 {
		return
	}
	fv, x := vecOf(st, f), vecOf(st, mp.X)
	if fv == nil || x == nil {
		return
	}
	e := s.Target - x[i]

	t := s.node.Time()
	switch {
	case !s.started:
		s.prevT, s.prevErr, s.started = t, e, true
	case t > s.prevT:
		s.integral += s.prevErr * (t - s.prevT)
		s.prevT, s.prevErr = t, e
	}

	u := s.Kp*e + s.Ki*s.integral
	if v := vecOf(st, mp.V); v != nil {
		u -= s.Kd * v[i]
	}
	fv[i] += u
}

func (s *Servo) coefficient(mp *scene.MechanicalParams) float64 {
	return mp.KFactor*s.Kp + mp.BFactor*s.Kd
}

func (s *Servo) AddDForce(mp *scene.MechanicalParams, df vecid.MultiVecID) {
	st, i := s.index()
	if i < 0 {
		return
	}
	dfv, dx := vecOf(st, df), vecOf(st, mp.Dx)
	if dfv == nil || dx == nil {
		return
	}
	dfv[i] -= s.coefficient(mp) * dx[i]
}

func (s *Servo) AddMBKToMatrix(mp *scene.MechanicalParams, acc scene.MatrixAccessor) {
	st, i := s.index()
	if i < 0 {
		return
	}
	if b := acc.Block(st, st); b.Valid() {
		b.Add(i, i, -s.coefficient(mp))
	}
}

// PotentialEnergy counts the proportional term only; the integral and
// damping terms are not conservative.
func (s *Servo) PotentialEnergy(mp *scene.MechanicalParams) float64 {
	st, i := s.index()
	if i < 0 {
		return 0
	}
	x := vecOf(st, mp.X)
	if x == nil {
		return 0
	}
	e := s.Target - x[i]
	return 0.5 * s.Kp * e * e
}
