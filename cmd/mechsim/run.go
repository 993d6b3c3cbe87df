package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/mechsim/internal/config"
	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/experiment"
	"github.com/san-kum/mechsim/internal/storage"
	"github.com/san-kum/mechsim/internal/telemetry"
	"github.com/san-kum/mechsim/internal/viz"
)

// resolveConfig layers defaults, preset, config file, environment and
// explicit flags, in that order.
func resolveConfig(cmd *cobra.Command, sceneName string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(sceneName, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(sceneName))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Scene = sceneName
	flags := cmd.Flags()
	if flags.Changed("integrator") || cfg.Integrator == "" {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Engine.Workers = workers
	}
	if flags.Lookup("log-traversals") != nil && flags.Changed("log-traversals") {
		cfg.Telemetry.LogTraversals = logTraversals
	}
	if metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = metricsAddr
	}
	if otlpEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = otlpEndpoint
	}
	if dataDir != "" {
		cfg.Storage.Dir = dataDir
	}
	if cfg.Params == nil {
		cfg.Params = map[string]float64{}
	}
	for k, v := range params {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		cfg.Params[k] = f
	}
	return cfg, cfg.Validate()
}

// buildEngine wires the telemetry hooks cfg asks for. The returned
// shutdown stops the metrics server and flushes traces.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, func(context.Context) error, error) {
	var hooks engine.Hooks
	var closers []func(context.Context) error

	if cfg.Telemetry.LogTraversals {
		hooks = append(hooks, telemetry.NewLogHook(log.New(os.Stderr, "mechsim: ", log.LstdFlags), false))
	}

	if cfg.Telemetry.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		hooks = append(hooks, telemetry.NewMetricsHook(reg))
		srv := &http.Server{
			Addr:              cfg.Telemetry.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
		closers = append(closers, srv.Shutdown)
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
		if err != nil {
			return nil, nil, fmt.Errorf("tracing: %w", err)
		}
		hooks = append(hooks, telemetry.NewTraceHook(nil))
		closers = append(closers, shutdown)
	}

	opts := []engine.Option{engine.WithWorkers(cfg.Engine.Workers)}
	if len(hooks) > 0 {
		opts = append(opts, engine.WithHook(hooks))
	}
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}
	return engine.New(opts...), shutdown, nil
}

func newExperiment(cfg *config.Config, eng *engine.Engine) (*experiment.Experiment, error) {
	reg := experiment.NewRegistry()
	exp := experiment.New(experiment.Config{
		Scene:      cfg.Scene,
		Integrator: cfg.Integrator,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Seed:       cfg.Seed,
		Params:     experiment.Params(cfg.GetParams()),
	})
	if err := exp.Setup(reg, eng, reg.DefaultMetrics()); err != nil {
		return nil, err
	}
	return exp, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, shutdown, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	exp, err := newExperiment(cfg, eng)
	if err != nil {
		return err
	}

	st := storage.New(cfg.Storage.Dir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("running %s with %s...\n", cfg.Scene, cfg.Integrator)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(storage.Run{
		Scene:      cfg.Scene,
		Integrator: cfg.Integrator,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Seed:       cfg.Seed,
		Params:     cfg.Params,
	}, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("energy drift: %.3e\n", result.EnergyDrift)
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	eng := engine.New(
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithDiagnostics(&engine.RecordingDiagnostics{}),
	)
	exp, err := newExperiment(cfg, eng)
	if err != nil {
		return err
	}
	return viz.Run(viz.NewModel(exp.GetSimulator(), cfg.Scene, cfg.Dt, frameRate))
}

func openStore() (*storage.Store, error) {
	dir := dataDir
	if dir == "" {
		cfg, err := config.Resolve("")
		if err != nil {
			return nil, err
		}
		dir = cfg.Storage.Dir
	}
	return storage.New(dir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tINTEG\tSTEPS\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%.2e\n",
			run.ID,
			run.Scene,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Steps,
			run.EnergyDrift,
		)
	}
	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}
	run := storage.Run{
		Scene:      meta.Scene,
		Integrator: meta.Integrator,
		Dt:         meta.Dt,
		Duration:   meta.Duration,
		Seed:       meta.Seed,
		Params:     meta.Params,
	}
	return storage.ExportJSON(os.Stdout, run, resultFromFrames(meta, frames))
}
