// Package telemetry provides engine hooks that report traversals to a
// log, to Prometheus and to OpenTelemetry.
//
// Hooks are combined with engine.Hooks and installed with
// engine.WithHook:
//
//	reg := prometheus.NewRegistry()
//	eng := engine.New(engine.WithHook(engine.Hooks{
//		telemetry.NewLogHook(log.Default(), false),
//		telemetry.NewMetricsHook(reg),
//	}))
//
// # Thread Safety
//
// Node callbacks arrive from several goroutines when an operation runs in
// parallel. Every hook here guards its state with a mutex.
package telemetry
