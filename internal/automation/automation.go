package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/experiment"
	"github.com/san-kum/mechsim/internal/sim"
)

var ErrInvalidScenario = errors.New("automation: invalid scenario")

// Progress is told after each finished run; label names the run.
type Progress func(done, total int, label string)

func (p Progress) report(done, total int, label string) {
	if p != nil {
		p(done, total, label)
	}
}

// Scenario defines a scripted sequence of scene runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

type ScenarioStep struct {
	Scene      string             `yaml:"scene"`
	Integrator string             `yaml:"integrator"`
	Duration   float64            `yaml:"duration"`
	Dt         float64            `yaml:"dt"`
	Seed       int64              `yaml:"seed"`
	Params     map[string]float64 `yaml:"params"`
	SaveAs     string             `yaml:"save_as"`
}

func (s ScenarioStep) config() experiment.Config {
	return experiment.Config{
		Scene:      s.Scene,
		Integrator: s.Integrator,
		Dt:         s.Dt,
		Duration:   s.Duration,
		Seed:       s.Seed,
		Params:     experiment.Params(s.Params),
	}
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario and fills step defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i := range scenario.Steps {
		st := &scenario.Steps[i]
		if st.Scene == "" {
			return nil, fmt.Errorf("%w: step %d has no scene", ErrInvalidScenario, i+1)
		}
		if st.Integrator == "" {
			st.Integrator = "implicit"
		}
		if st.Dt == 0 {
			st.Dt = 0.01
		}
		if st.Duration == 0 {
			st.Duration = 1
		}
	}
	return &scenario, nil
}

// RunScenario executes the steps in order and stops at the first step
// that cannot be set up or run.
func RunScenario(ctx context.Context, scenario *Scenario, reg *experiment.Registry, eng *engine.Engine, progress Progress) ([]*sim.Result, error) {
	results := make([]*sim.Result, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		exp := experiment.New(step.config())
		if err := exp.Setup(reg, eng, reg.DefaultMetrics()); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, result)

		label := step.SaveAs
		if label == "" {
			label = step.Scene
		}
		progress.report(i+1, len(scenario.Steps), label)
	}

	return results, nil
}

// ParameterSweep runs a scene once per value of one parameter, spaced
// evenly over [ParamMin, ParamMax].
type ParameterSweep struct {
	Scene      string
	Integrator string
	ParamName  string
	ParamMin   float64
	ParamMax   float64
	NumSteps   int
	Duration   float64
	Dt         float64
	Params     map[string]float64
}

type SweepResult struct {
	ParamValue  float64
	Final       sim.Frame
	MaxEnergy   float64
	MinEnergy   float64
	EnergyDrift float64
	Stable      bool
	Err         error
}

func (s *ParameterSweep) values() []float64 {
	if s.NumSteps == 1 {
		return []float64{s.ParamMin}
	}
	step := (s.ParamMax - s.ParamMin) / float64(s.NumSteps-1)
	vals := make([]float64, s.NumSteps)
	for i := range vals {
		vals[i] = s.ParamMin + float64(i)*step
	}
	return vals
}

// RunSweep executes a parameter sweep. A run that fails numerically is
// reported as unstable in its SweepResult; setup failures abort the sweep.
func RunSweep(ctx context.Context, sweep *ParameterSweep, reg *experiment.Registry, eng *engine.Engine, progress Progress) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", ErrInvalidScenario)
	}
	vals := sweep.values()
	results := make([]SweepResult, 0, len(vals))

	for i, val := range vals {
		params := experiment.Params{}
		for k, v := range sweep.Params {
			params[k] = v
		}
		params[sweep.ParamName] = val

		exp := experiment.New(experiment.Config{
			Scene:      sweep.Scene,
			Integrator: sweep.Integrator,
			Dt:         sweep.Dt,
			Duration:   sweep.Duration,
			Params:     params,
		})
		if err := exp.Setup(reg, eng, nil); err != nil {
			return results, err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, err
		}

		sr := SweepResult{
			ParamValue:  val,
			Final:       result.Final(),
			EnergyDrift: result.EnergyDrift,
			Stable:      stable(result, 0),
			Err:         errors.Join(result.Errors...),
		}
		sr.MinEnergy, sr.MaxEnergy = energyRange(result.Frames)
		results = append(results, sr)

		progress.report(i+1, len(vals), fmt.Sprintf("%s=%.4g", sweep.ParamName, val))
	}

	return results, nil
}

func energyRange(frames []sim.Frame) (lo, hi float64) {
	if len(frames) == 0 {
		return 0, 0
	}
	lo, hi = frames[0].Energy(), frames[0].Energy()
	for _, f := range frames[1:] {
		lo, hi = math.Min(lo, f.Energy()), math.Max(hi, f.Energy())
	}
	return lo, hi
}

const defaultBound = 1e6

// stable reports whether a run finished without errors and its last frame
// is finite and within bound.
func stable(r *sim.Result, bound float64) bool {
	if bound <= 0 {
		bound = defaultBound
	}
	if len(r.Errors) > 0 || len(r.Frames) == 0 {
		return false
	}
	final := r.Final()
	if !final.Valid() {
		return false
	}
	for _, v := range final.Positions {
		if math.Abs(v) > bound {
			return false
		}
	}
	return true
}

// MonteCarloConfig runs NumTrials copies of a scene seeded Seed, Seed+1,
// ... so scene builders that draw from the random source vary per trial.
type MonteCarloConfig struct {
	Scene      string
	Integrator string
	Params     map[string]float64
	NumTrials  int
	Duration   float64
	Dt         float64
	Seed       int64
	// Bound on final coordinates for a trial to count as stable; 0 means 1e6.
	Bound float64
}

type MonteCarloResult struct {
	TrialID int
	Seed    int64
	Initial sim.Frame
	Final   sim.Frame
	Stable  bool
}

// RunMonteCarlo runs the trials concurrently on eng.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, reg *experiment.Registry, eng *engine.Engine) ([]MonteCarloResult, error) {
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("%w: monte carlo needs at least one trial", ErrInvalidScenario)
	}
	if eng == nil {
		eng = engine.New()
	}

	build := func(trial int) (*sim.Simulator, error) {
		exp := experiment.New(experiment.Config{
			Scene:      cfg.Scene,
			Integrator: cfg.Integrator,
			Dt:         cfg.Dt,
			Duration:   cfg.Duration,
			Seed:       cfg.Seed + int64(trial),
			Params:     experiment.Params(cfg.Params),
		})
		if err := exp.Setup(reg, eng, nil); err != nil {
			return nil, err
		}
		return exp.GetSimulator(), nil
	}

	runs, err := sim.NewEnsemble(build, cfg.NumTrials).Run(ctx, sim.Config{
		Dt:            cfg.Dt,
		Duration:      cfg.Duration,
		ValidateState: true,
	})
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, r := range runs {
		results[i] = MonteCarloResult{
			TrialID: i,
			Seed:    cfg.Seed + int64(i),
			Final:   r.Final(),
			Stable:  stable(r, cfg.Bound),
		}
		if len(r.Frames) > 0 {
			results[i].Initial = r.Frames[0]
		}
	}
	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
