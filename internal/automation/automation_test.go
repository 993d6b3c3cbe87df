package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/experiment"
)

func quietEngine() *engine.Engine {
	return engine.New(engine.WithDiagnostics(&engine.RecordingDiagnostics{}))
}

const scenarioYAML = `
name: warmup
description: drop then chain
steps:
  - scene: fall
    integrator: rk4
    duration: 0.2
    params:
      count: 1
    save_as: drop
  - scene: chain
    dt: 0.005
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	require.Len(t, sc.Steps, 2)
	require.Equal(t, "drop", sc.Steps[0].SaveAs)
	require.Equal(t, 0.01, sc.Steps[0].Dt)
	require.Equal(t, "implicit", sc.Steps[1].Integrator)
	require.Equal(t, 1.0, sc.Steps[1].Duration)
}

func TestParseScenarioRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no steps", "name: empty\n"},
		{"no scene", "steps:\n  - integrator: rk4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.True(t, errors.Is(err, ErrInvalidScenario), "got %v", err)
		})
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)
	sc.Steps[1].Duration = 0.05

	var labels []string
	progress := func(done, total int, label string) { labels = append(labels, label) }

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), quietEngine(), progress)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, []string{"drop", "chain"}, labels)
	require.Equal(t, 20, results[0].StepsTaken)
	require.Contains(t, results[0].Metrics, "energy_drift")
}

func TestRunScenarioUnknownScene(t *testing.T) {
	sc := &Scenario{Steps: []ScenarioStep{{Scene: "nope", Integrator: "rk4", Dt: 0.01, Duration: 1}}}
	_, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), quietEngine(), nil)
	require.Error(t, err)
}

func TestRunSweep(t *testing.T) {
	sweep := &ParameterSweep{
		Scene:      "fall",
		Integrator: "rk4",
		ParamName:  "height",
		ParamMin:   5,
		ParamMax:   15,
		NumSteps:   3,
		Duration:   0.1,
		Dt:         0.01,
		Params:     map[string]float64{"count": 1},
	}
	results, err := RunSweep(context.Background(), sweep, experiment.NewRegistry(), quietEngine(), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, want := range []float64{5, 10, 15} {
		require.Equal(t, want, results[i].ParamValue)
		require.True(t, results[i].Stable)
		require.NoError(t, results[i].Err)
	}
	// higher start, more potential energy
	require.Greater(t, results[2].MaxEnergy, results[0].MaxEnergy)
	require.InDelta(t, results[0].MinEnergy, results[0].MaxEnergy, 1e-6)
}

func TestRunSweepReportsInstability(t *testing.T) {
	sweep := &ParameterSweep{
		Scene:      "chain",
		Integrator: "euler",
		ParamName:  "stiffness",
		ParamMin:   1e9,
		NumSteps:   1,
		Duration:   20,
		Dt:         0.1,
	}
	results, err := RunSweep(context.Background(), sweep, experiment.NewRegistry(), quietEngine(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Stable)
	require.Error(t, results[0].Err)
}

func TestRunMonteCarlo(t *testing.T) {
	cfg := &MonteCarloConfig{
		Scene:      "fall",
		Integrator: "symplectic",
		Params:     map[string]float64{"count": 1, "jitter": 2},
		NumTrials:  4,
		Duration:   0.1,
		Dt:         0.01,
		Seed:       7,
	}
	results, err := RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry(), quietEngine())
	require.NoError(t, err)
	require.Len(t, results, 4)

	stableCount, unstableCount := MonteCarloStats(results)
	require.Equal(t, 4, stableCount)
	require.Zero(t, unstableCount)

	require.Equal(t, int64(9), results[2].Seed)
	require.NotEqual(t, results[0].Initial.Positions[0], results[1].Initial.Positions[0],
		"trials should start from different jittered positions")
}

func TestRunMonteCarloRejectsZeroTrials(t *testing.T) {
	_, err := RunMonteCarlo(context.Background(), &MonteCarloConfig{Scene: "fall"}, experiment.NewRegistry(), nil)
	require.ErrorIs(t, err, ErrInvalidScenario)
}
