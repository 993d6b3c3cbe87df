package ops

import (
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

// failures collects the solver errors raised during one traversal.
type failures struct {
	mu   sync.Mutex
	errs []error
}

func (f *failures) add(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

// Err joins every error recorded during the traversal.
func (f *failures) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return errors.Join(f.errs...)
}

// BeginIntegration tells every state a step of dt starts.
type BeginIntegration struct {
	engine.Base
	dt float64
}

func NewBeginIntegration(dt float64) *BeginIntegration {
	return &BeginIntegration{
		Base: engine.Base{OpName: "BeginIntegration", Safe: true, Policy: engine.CrossAllMappings},
		dt:   dt,
	}
}

func (o *BeginIntegration) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if ia, ok := s.(scene.IntegrationAware); ok {
		ia.BeginIntegration(o.dt)
	}
	return engine.Continue
}

func (o *BeginIntegration) VisitMappedState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	return o.VisitState(ctx, s)
}

// EndIntegration tells every state the step of dt is over.
type EndIntegration struct {
	engine.Base
	dt float64
}

func NewEndIntegration(dt float64) *EndIntegration {
	return &EndIntegration{
		Base: engine.Base{OpName: "EndIntegration", Safe: true, Policy: engine.CrossAllMappings},
		dt:   dt,
	}
}

func (o *EndIntegration) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if ia, ok := s.(scene.IntegrationAware); ok {
		ia.EndIntegration(o.dt)
	}
	return engine.Continue
}

func (o *EndIntegration) VisitMappedState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	return o.VisitState(ctx, s)
}

// Integration runs the first ode solver found on each branch; the solver
// owns its subtree, so the branch is pruned afterwards. A solver error
// aborts the traversal and is reported by Err. Solvers allocate from the
// tree's shared table and may reach states of other branches, so the
// traversal is not thread safe.
type Integration struct {
	engine.Base
	failures
	mp *scene.MechanicalParams
}

func NewIntegration(mp *scene.MechanicalParams) *Integration {
	return &Integration{
		Base: engine.Base{OpName: "Integration"},
		mp:   mp,
	}
}

func (o *Integration) VisitOdeSolver(ctx *engine.Context, s scene.OdeSolver) engine.Result {
	if err := s.Solve(o.mp, ctx.Node); err != nil {
		ctx.Warn(s, "solve failed: %v", err)
		o.add(fmt.Errorf("%s at %s: %w", s.Name(), ctx.Node.Path(), err))
		return engine.Abort
	}
	return engine.Prune
}

// SolveConstraints runs constraint solvers after integration.
type SolveConstraints struct {
	engine.Base
	failures
	mp *scene.MechanicalParams
}

func NewSolveConstraints(mp *scene.MechanicalParams) *SolveConstraints {
	return &SolveConstraints{
		Base: engine.Base{OpName: "SolveConstraints", Policy: engine.CrossAllMappings},
		mp:   mp,
	}
}

func (o *SolveConstraints) VisitConstraintSolver(ctx *engine.Context, s scene.ConstraintSolver) engine.Result {
	if err := s.SolveConstraints(o.mp, ctx.Node); err != nil {
		ctx.Warn(s, "constraint solve failed: %v", err)
		o.add(fmt.Errorf("%s at %s: %w", s.Name(), ctx.Node.Path(), err))
		return engine.Abort
	}
	return engine.Prune
}

// ComputeEnergy sums kinetic energy over masses and potential energy
// over force fields of the independent states.
type ComputeEnergy struct {
	engine.Base
	mp        *scene.MechanicalParams
	Kinetic   float64
	Potential float64
}

func NewComputeEnergy(mp *scene.MechanicalParams) *ComputeEnergy {
	return &ComputeEnergy{
		Base: engine.Base{OpName: "ComputeEnergy"},
		mp:   mp,
	}
}

func (o *ComputeEnergy) Total() float64 { return o.Kinetic + o.Potential }

func (o *ComputeEnergy) VisitMass(_ *engine.Context, m scene.Mass) engine.Result {
	if k, ok := m.(scene.KineticEnergySource); ok {
		o.Kinetic += k.KineticEnergy(o.mp)
	}
	return engine.Continue
}

func (o *ComputeEnergy) VisitForceField(_ *engine.Context, ff scene.ForceField) engine.Result {
	if e, ok := ff.(scene.EnergySource); ok {
		o.Potential += e.PotentialEnergy(o.mp)
	}
	return engine.Continue
}
