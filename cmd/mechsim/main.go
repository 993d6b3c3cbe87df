package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/mechsim/internal/config"
	"github.com/san-kum/mechsim/internal/experiment"
)

var (
	dataDir    string
	configFile string
	preset     string
	integrator string
	dt         float64
	duration   float64
	seed       int64
	workers    int
	params     map[string]string
	// Telemetry
	logTraversals bool
	metricsAddr   string
	otlpEndpoint  string
	// Plot and live view
	series    string
	frameRate int
	// Analysis
	analyzeSeries string
	coordIndex    int
	welch         bool
	poincareLevel float64
	svgOut        string
	svgDim        int
	// Batch runs
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	trials     int
	gridSpecs  []string
	tuneMetric string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mechsim",
		Short:        "mechanical scene graph simulator",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default from config)")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene and store the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addSceneFlags(runCmd)
	runCmd.Flags().BoolVar(&logTraversals, "log-traversals", false, "log every engine traversal")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	runCmd.Flags().StringVar(&otlpEndpoint, "otlp", "", "OTLP/HTTP trace endpoint")

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "run a scene with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&series, "series", "energy", "what to plot: energy, x or v")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list scenes and integrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			fmt.Println("scenes:")
			for _, name := range reg.ListScenes() {
				fmt.Printf("  %-8s %s\n", name, reg.Describe(name))
			}
			fmt.Println("integrators:")
			for _, name := range reg.ListIntegrators() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list available presets for a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for scene: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-8s %s dt=%g time=%g %v\n", p, cfg.Integrator, cfg.Dt, cfg.Duration, cfg.Params)
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the resolved configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(configFile)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}
	configCmd.Flags().StringVar(&configFile, "config", "", "config file to start from")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "power spectrum of a stored series",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&analyzeSeries, "series", "x", "energy, kinetic, potential, x or v")
	analyzeCmd.Flags().IntVar(&coordIndex, "index", 0, "coordinate index for x and v")
	analyzeCmd.Flags().BoolVar(&welch, "welch", false, "average overlapping segments")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase portrait or poincare section of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  phaseRun,
	}
	phaseCmd.Flags().IntVar(&coordIndex, "index", 0, "coordinate index")
	phaseCmd.Flags().Float64Var(&poincareLevel, "level", 0, "draw the section where x crosses this level")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render stored trajectories as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default stdout)")
	svgCmd.Flags().IntVar(&svgDim, "dim", 2, "coordinates per point in the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "run a scene over a range of one parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addSceneFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "sweep", "stiffness", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [scene]",
		Short: "run seeded trials of a scene concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	addSceneFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 10, "number of trials")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario and store every step",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [scene]",
		Short: "grid search scene parameters for the smallest metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runTune,
	}
	addSceneFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "parameter grid, e.g. --grid stiffness=100:1000:5")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "energy_drift", "metric to minimise")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, scenesCmd, presetsCmd, configCmd)
	rootCmd.AddCommand(analyzeCmd, phaseCmd, svgCmd, sweepCmd, monteCarloCmd, scenarioCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().IntVar(&workers, "workers", 1, "engine workers for parallel traversals")
	cmd.Flags().StringToStringVar(&params, "param", nil, "scene parameter, e.g. --param count=8")
}
