package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/mechsim/internal/analysis"
	"github.com/san-kum/mechsim/internal/automation"
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/experiment"
	"github.com/san-kum/mechsim/internal/export"
	"github.com/san-kum/mechsim/internal/optim"
	"github.com/san-kum/mechsim/internal/sim"
	"github.com/san-kum/mechsim/internal/storage"
)

func loadRun(runID string) (*storage.RunMetadata, []sim.Frame, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, frames, nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	_, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	xs, err := analysis.Series(frames, analyzeSeries, coordIndex)
	if err != nil {
		return err
	}
	if len(frames) < 2 {
		return fmt.Errorf("run has %d frames", len(frames))
	}
	step := (frames[len(frames)-1].Time - frames[0].Time) / float64(len(frames)-1)

	var ps analysis.Spectrum
	if welch {
		ps, err = analysis.Welch(xs, step, 0)
	} else {
		ps, err = analysis.PowerSpectrum(xs, step)
	}
	if err != nil {
		return err
	}

	fmt.Printf("series: %s[%d], %d samples\n", analyzeSeries, coordIndex, len(xs))
	fmt.Printf("resolution: %.4g Hz\n", ps.Freqs[1]-ps.Freqs[0])
	fmt.Printf("dominant frequency: %.4g Hz\n", ps.DominantFrequency())
	return nil
}

func phaseRun(cmd *cobra.Command, args []string) error {
	_, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("level") {
		section, err := analysis.NewPoincareSection(frames, coordIndex, poincareLevel, coordIndex)
		if err != nil {
			return err
		}
		fmt.Printf("crossings: %d\n", len(section.Points))
		fmt.Print(section.Render(60, 20))
		return nil
	}
	portrait, err := analysis.NewPhasePortrait(frames, coordIndex)
	if err != nil {
		return err
	}
	fmt.Printf("x%d against v%d\n", coordIndex, coordIndex)
	fmt.Print(portrait.Render(60, 20))
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	_, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	out := os.Stdout
	if svgOut != "" {
		f, err := os.Create(svgOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return export.WriteTrajectories(out, frames, svgDim, 800, 600)
}

func quietEngine(workers int) *engine.Engine {
	return engine.New(
		engine.WithWorkers(workers),
		engine.WithDiagnostics(&engine.RecordingDiagnostics{}),
	)
}

func printProgress(done, total int, label string) {
	fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, total, label)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sweep := &automation.ParameterSweep{
		Scene:      cfg.Scene,
		Integrator: cfg.Integrator,
		ParamName:  sweepParam,
		ParamMin:   sweepMin,
		ParamMax:   sweepMax,
		NumSteps:   sweepSteps,
		Duration:   cfg.Duration,
		Dt:         cfg.Dt,
		Params:     cfg.GetParams(),
	}
	results, err := automation.RunSweep(ctx, sweep, experiment.NewRegistry(), quietEngine(cfg.Engine.Workers), printProgress)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tMIN E\tMAX E\tDRIFT\tSTABLE\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%.4g\t%.4g\t%.2e\t%v\n", r.ParamValue, r.MinEnergy, r.MaxEnergy, r.EnergyDrift, r.Stable)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Scene:      cfg.Scene,
		Integrator: cfg.Integrator,
		Params:     cfg.GetParams(),
		NumTrials:  trials,
		Duration:   cfg.Duration,
		Dt:         cfg.Dt,
		Seed:       cfg.Seed,
	}, experiment.NewRegistry(), quietEngine(cfg.Engine.Workers))
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("trials: %d\n", len(results))
	fmt.Printf("stable: %d\n", stable)
	fmt.Printf("unstable: %d\n", unstable)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
	results, err := automation.RunScenario(ctx, sc, experiment.NewRegistry(), quietEngine(1), printProgress)
	for i, result := range results {
		step := sc.Steps[i]
		runID, serr := st.Save(storage.Run{
			Scene:      step.Scene,
			Integrator: step.Integrator,
			Dt:         step.Dt,
			Duration:   step.Duration,
			Seed:       step.Seed,
			Params:     step.Params,
		}, result)
		if serr != nil {
			return serr
		}
		fmt.Printf("  %s -> %s (drift %.2e)\n", step.Scene, runID, result.EnergyDrift)
	}
	return err
}

// parseGrid reads "name=lo:hi:n" into a parameter name and its values.
func parseGrid(arg string) (string, []float64, error) {
	name, rng, ok := strings.Cut(arg, "=")
	if !ok {
		return "", nil, fmt.Errorf("grid %q: want name=lo:hi:n", arg)
	}
	parts := strings.Split(rng, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("grid %q: want name=lo:hi:n", arg)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("grid %q: %w", arg, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("grid %q: %w", arg, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("grid %q: bad count", arg)
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	names := make([]string, 0, len(gridSpecs))
	ranges := make([][]float64, 0, len(gridSpecs))
	for _, g := range gridSpecs {
		name, vals, err := parseGrid(g)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	if len(names) == 0 {
		return fmt.Errorf("no --grid given")
	}

	reg := experiment.NewRegistry()
	eng := quietEngine(cfg.Engine.Workers)
	build := func(p experiment.Params) (*experiment.Experiment, error) {
		merged := experiment.Params(cfg.GetParams())
		for k, v := range p {
			merged[k] = v
		}
		exp := experiment.New(experiment.Config{
			Scene:      cfg.Scene,
			Integrator: cfg.Integrator,
			Dt:         cfg.Dt,
			Duration:   cfg.Duration,
			Seed:       cfg.Seed,
			Params:     merged,
		})
		if err := exp.Setup(reg, eng, reg.DefaultMetrics()); err != nil {
			return nil, err
		}
		return exp, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	best, val, err := optim.NewGridSearch(names, ranges).Search(ctx, build, tuneMetric)
	if err != nil {
		return err
	}
	fmt.Printf("best %s: %.6g\n", tuneMetric, val)
	for _, name := range names {
		fmt.Printf("  %s = %.6g\n", name, best[name])
	}
	return nil
}
