package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/scene"
)

// Simulator animates a scene: every step runs the ode solvers found in the
// tree, then the constraint solvers, then brings mapped states up to date.
type Simulator struct {
	root      *scene.Node
	eng       *engine.Engine
	metrics   []Metric
	observers []Observer
}

func New(root *scene.Node, eng *engine.Engine) *Simulator {
	if eng == nil {
		eng = engine.New()
	}
	return &Simulator{
		root:      root,
		eng:       eng,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) Root() *scene.Node      { return s.root }
func (s *Simulator) Engine() *engine.Engine { return s.eng }

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) params(dt float64) *scene.MechanicalParams {
	mp := scene.DefaultMechanicalParams()
	mp.Dt = dt
	mp.Time = s.root.Time()
	return mp
}

// Init propagates positions and velocities to every mapped state.
func (s *Simulator) Init() {
	mp := s.params(0)
	s.eng.Execute(ops.NewPropagateOnlyPositionAndVelocity(mp, mp.X, mp.V, false), s.root)
}

// Step advances the scene by dt.
func (s *Simulator) Step(step int, dt float64) error {
	mp := s.params(dt)
	s.eng.Execute(ops.NewBeginIntegration(dt), s.root)

	integrate := ops.NewIntegration(mp)
	if s.eng.Execute(integrate, s.root) == engine.Aborted {
		return s.failure(step, integrate.Err())
	}
	solve := ops.NewSolveConstraints(mp)
	if s.eng.Execute(solve, s.root) == engine.Aborted {
		return s.failure(step, solve.Err())
	}

	s.eng.Execute(ops.NewPropagateOnlyPositionAndVelocity(mp, mp.X, mp.V, false), s.root)
	s.eng.Execute(ops.NewEndIntegration(dt), s.root)
	s.root.AdvanceTime(dt)
	return nil
}

func (s *Simulator) failure(step int, err error) error {
	return &SimulationError{
		Step:    step,
		Time:    s.root.Time(),
		Wrapped: errors.Join(ErrStepFailed, err),
	}
}

// Frame captures the current independent state and energy.
func (s *Simulator) Frame(step int) Frame {
	mp := s.params(0)
	dim := ops.NewGetDimension()
	s.eng.Execute(dim, s.root)
	f := Frame{Step: step, Time: s.root.Time()}
	if n := dim.Result(); n > 0 {
		x, v := mat.NewVecDense(n, nil), mat.NewVecDense(n, nil)
		s.eng.Execute(ops.NewMultiVectorToBaseVector(mp.X, x, nil), s.root)
		s.eng.Execute(ops.NewMultiVectorToBaseVector(mp.V, v, nil), s.root)
		f.Positions, f.Velocities = x.RawVector().Data, v.RawVector().Data
	}
	e := ops.NewComputeEnergy(mp)
	s.eng.Execute(e, s.root)
	f.Kinetic, f.Potential = e.Kinetic, e.Potential
	return f
}

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		Frames:  make([]Frame, 0, steps+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	s.Init()
	frame := s.Frame(0)
	result.Frames = append(result.Frames, frame)
	initialEnergy := frame.Energy()

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.Step(i, cfg.Dt); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}
		result.StepsTaken++

		frame = s.Frame(i + 1)
		if cfg.ValidateState && !frame.Valid() {
			result.Errors = append(result.Errors, &SimulationError{Step: i, Time: frame.Time, Wrapped: ErrInvalidState})
			break
		}

		for _, m := range s.metrics {
			m.Observe(frame)
		}
		for _, obs := range s.observers {
			obs.OnStep(frame)
		}

		if cfg.RecordEvery <= 1 || (i+1)%cfg.RecordEvery == 0 || i == steps-1 {
			result.Frames = append(result.Frames, frame)
		}
	}

	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(frame.Energy()-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, cfg.Duration)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("%w: record interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RunWithCallback steps until the duration is reached or callback returns
// false. Frames are not recorded.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(Frame) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}

	s.Init()
	for i := 0; s.root.Time() < cfg.Duration-cfg.Dt/2; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !callback(s.Frame(i)) {
			return nil
		}
		if err := s.Step(i, cfg.Dt); err != nil {
			return err
		}
	}
	return nil
}
