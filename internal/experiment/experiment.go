package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/sim"
)

type Config struct {
	Scene      string
	Integrator string
	Dt         float64
	Duration   float64
	Seed       int64
	Params     Params
}

type Experiment struct {
	cfg        Config
	simulator  *sim.Simulator
	randSource *rand.Rand
}

func New(cfg Config) *Experiment {
	return &Experiment{
		cfg:        cfg,
		randSource: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Setup builds the configured scene on eng, attaches the integrator to its
// root and wraps it in a simulator.
func (e *Experiment) Setup(reg *Registry, eng *engine.Engine, metrics []sim.Metric) error {
	if eng == nil {
		eng = engine.New()
	}
	root, err := reg.GetScene(e.cfg.Scene, e.cfg.Params, e.randSource, eng)
	if err != nil {
		return err
	}
	solver, err := reg.GetIntegrator(e.cfg.Integrator, eng)
	if err != nil {
		return err
	}
	if err := root.AddObject(solver); err != nil {
		return fmt.Errorf("attach %s: %w", e.cfg.Integrator, err)
	}

	e.simulator = sim.New(root, eng)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	simCfg := sim.Config{
		Dt:            e.cfg.Dt,
		Duration:      e.cfg.Duration,
		ValidateState: true,
	}

	return e.simulator.Run(ctx, simCfg)
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Root() *scene.Node {
	if e.simulator == nil {
		return nil
	}
	return e.simulator.Root()
}
