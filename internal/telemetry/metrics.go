package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

// MetricsHook counts traversals and node visits and times traversals.
type MetricsHook struct {
	Traversals *prometheus.CounterVec
	Visits     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	clock      *stopwatch
}

// NewMetricsHook registers its collectors with reg. A nil reg leaves them
// unregistered.
func NewMetricsHook(reg prometheus.Registerer) *MetricsHook {
	h := &MetricsHook{
		Traversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mechsim",
			Name:      "traversals_total",
			Help:      "Engine traversals by operation and outcome.",
		}, []string{"op", "outcome"}),
		Visits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mechsim",
			Name:      "node_visits_total",
			Help:      "Node dispatches by operation, phase and result.",
		}, []string{"op", "phase", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mechsim",
			Name:      "traversal_duration_seconds",
			Help:      "Wall time of engine traversals.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"op"}),
		clock: newStopwatch(),
	}
	if reg != nil {
		reg.MustRegister(h.Traversals, h.Visits, h.Duration)
	}
	return h
}

func (h *MetricsHook) BeginTraversal(op engine.Operation, root *scene.Node) {
	h.clock.start(keyOf(op, root))
}

func (h *MetricsHook) EndTraversal(op engine.Operation, root *scene.Node, out engine.Outcome) {
	h.Traversals.WithLabelValues(op.Name(), out.String()).Inc()
	if d, ok := h.clock.stop(keyOf(op, root)); ok {
		h.Duration.WithLabelValues(op.Name()).Observe(d.Seconds())
	}
}

func (h *MetricsHook) BeginNode(engine.Operation, *scene.Node, engine.Phase) {}

func (h *MetricsHook) EndNode(op engine.Operation, _ *scene.Node, phase engine.Phase, res engine.Result) {
	h.Visits.WithLabelValues(op.Name(), phase.String(), res.String()).Inc()
}
