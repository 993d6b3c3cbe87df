package engine_test

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/linalg"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

type fakeState struct {
	name string
	size int
}

func (s *fakeState) Name() string                              { return s.name }
func (s *fakeState) Size() int                                 { return s.size }
func (s *fakeState) Dim() int                                  { return 1 }
func (s *fakeState) Vec(vecid.VecID) []float64                 { return nil }
func (s *fakeState) MatrixDeriv(vecid.VecID) *linalg.RowMatrix { return nil }

type fakeMapping struct {
	name     string
	from, to scene.MechanicalState
	forces   bool
	matrices bool
}

func (m *fakeMapping) Name() string                { return m.name }
func (m *fakeMapping) From() scene.MechanicalState { return m.from }
func (m *fakeMapping) To() scene.MechanicalState   { return m.to }
func (m *fakeMapping) IsMechanical() bool          { return true }
func (m *fakeMapping) ForcesMapped() bool          { return m.forces }
func (m *fakeMapping) MatricesMapped() bool        { return m.matrices }

func (m *fakeMapping) Apply(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID)   {}
func (m *fakeMapping) ApplyJ(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID)  {}
func (m *fakeMapping) ApplyJT(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID) {}

func (m *fakeMapping) ApplyJTMatrix(*scene.ConstraintParams, vecid.MultiVecID, vecid.MultiVecID) {
}

type fakeForceField struct{ name string }

func (f *fakeForceField) Name() string                                        { return f.name }
func (f *fakeForceField) AddForce(*scene.MechanicalParams, vecid.MultiVecID)  {}
func (f *fakeForceField) AddDForce(*scene.MechanicalParams, vecid.MultiVecID) {}

type fakeInteraction struct {
	fakeForceField
	states []scene.MechanicalState
}

func (f *fakeInteraction) InteractingStates() []scene.MechanicalState { return f.states }

type fakeMass struct{ fakeForceField }

func (m *fakeMass) AddMDx(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID, float64) {
}
func (m *fakeMass) AccFromF(*scene.MechanicalParams, vecid.MultiVecID, vecid.MultiVecID) {}

type fakeProjective struct{ name string }

func (p *fakeProjective) Name() string                                                    { return p.name }
func (p *fakeProjective) ProjectPosition(*scene.MechanicalParams, vecid.MultiVecID)       {}
func (p *fakeProjective) ProjectVelocity(*scene.MechanicalParams, vecid.MultiVecID)       {}
func (p *fakeProjective) ProjectResponse(*scene.MechanicalParams, vecid.MultiVecID)       {}
func (p *fakeProjective) ProjectJacobianMatrix(*scene.MechanicalParams, vecid.MultiVecID) {}

type fakeConstraint struct{ name string }

func (c *fakeConstraint) Name() string     { return c.name }
func (c *fakeConstraint) ResetConstraint() {}

func (c *fakeConstraint) BuildConstraintMatrix(_ *scene.ConstraintParams, _ vecid.MultiVecID, row int) int {
	return row
}

type fakeSolver struct{ name string }

func (s *fakeSolver) Name() string                                     { return s.name }
func (s *fakeSolver) Solve(*scene.MechanicalParams, *scene.Node) error { return nil }

type fakeConstraintSolver struct{ name string }

func (s *fakeConstraintSolver) Name() string { return s.name }

func (s *fakeConstraintSolver) SolveConstraints(*scene.MechanicalParams, *scene.Node) error {
	return nil
}

// recorder logs every callback as "kind:object", bottom-up ones prefixed
// with "~".
type recorder struct {
	engine.Base
	mu      sync.Mutex
	events  []string
	prune   map[string]bool
	abortAt string
	reverse bool
}

func newRecorder(policy engine.MappingPolicy) *recorder {
	return &recorder{
		Base:  engine.Base{OpName: "recorder", Policy: policy},
		prune: make(map[string]bool),
	}
}

func (r *recorder) log(kind, name string) engine.Result {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+name)
	r.mu.Unlock()
	switch {
	case name == r.abortAt:
		return engine.Abort
	case r.prune[name]:
		return engine.Prune
	default:
		return engine.Continue
	}
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) ReverseChildren(*scene.Node) bool { return r.reverse }

func (r *recorder) VisitOdeSolver(_ *engine.Context, s scene.OdeSolver) engine.Result {
	return r.log("solver", s.Name())
}

func (r *recorder) VisitConstraintSolver(_ *engine.Context, s scene.ConstraintSolver) engine.Result {
	return r.log("csolver", s.Name())
}

func (r *recorder) VisitMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	return r.log("map", m.Name())
}

func (r *recorder) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	return r.log("mstate", s.Name())
}

func (r *recorder) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	return r.log("state", s.Name())
}

func (r *recorder) VisitMass(_ *engine.Context, m scene.Mass) engine.Result {
	return r.log("mass", m.Name())
}

func (r *recorder) VisitForceField(_ *engine.Context, ff scene.ForceField) engine.Result {
	return r.log("ff", ff.Name())
}

func (r *recorder) VisitProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	return r.log("proj", c.Name())
}

func (r *recorder) VisitConstraintSet(_ *engine.Context, c scene.ConstraintSet) engine.Result {
	return r.log("cons", c.Name())
}

func (r *recorder) LeaveProjectiveConstraint(_ *engine.Context, c scene.ProjectiveConstraintSet) engine.Result {
	return r.log("~proj", c.Name())
}

func (r *recorder) LeaveConstraintSet(_ *engine.Context, c scene.ConstraintSet) engine.Result {
	return r.log("~cons", c.Name())
}

func (r *recorder) LeaveMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	return r.log("~mstate", s.Name())
}

func (r *recorder) LeaveState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	return r.log("~state", s.Name())
}

func (r *recorder) LeaveMapping(_ *engine.Context, m scene.Mapping) engine.Result {
	return r.log("~map", m.Name())
}

func (r *recorder) LeaveOdeSolver(_ *engine.Context, s scene.OdeSolver) engine.Result {
	return r.log("~solver", s.Name())
}

func (r *recorder) LeaveConstraintSolver(_ *engine.Context, s scene.ConstraintSolver) engine.Result {
	return r.log("~csolver", s.Name())
}

// sizeSum adds up state sizes through the reduction channel.
type sizeSum struct {
	engine.Base
	engine.SumReducer
	total float64
}

func (s *sizeSum) VisitState(ctx *engine.Context, st scene.MechanicalState) engine.Result {
	ctx.Acc += float64(st.Size())
	return engine.Continue
}

func (s *sizeSum) VisitMappedState(ctx *engine.Context, st scene.MechanicalState) engine.Result {
	ctx.Acc += float64(st.Size())
	return engine.Continue
}

func (s *sizeSum) Finish(total float64) { s.total = total }

// countingHook counts node visits per phase.
type countingHook struct {
	engine.NopHook
	mu       sync.Mutex
	began    int
	ended    engine.Outcome
	topDown  int
	bottomUp int
}

func (h *countingHook) BeginTraversal(engine.Operation, *scene.Node) {
	h.mu.Lock()
	h.began++
	h.mu.Unlock()
}

func (h *countingHook) EndTraversal(_ engine.Operation, _ *scene.Node, out engine.Outcome) {
	h.mu.Lock()
	h.ended = out
	h.mu.Unlock()
}

func (h *countingHook) BeginNode(_ engine.Operation, _ *scene.Node, p engine.Phase) {
	h.mu.Lock()
	if p == engine.TopDown {
		h.topDown++
	} else {
		h.bottomUp++
	}
	h.mu.Unlock()
}

// overlap measures how many states are visited at the same time.
type overlap struct {
	engine.Base
	active atomic.Int32
	peak   atomic.Int32
}

func (o *overlap) VisitState(*engine.Context, scene.MechanicalState) engine.Result {
	n := o.active.Add(1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	o.active.Add(-1)
	return engine.Continue
}
