package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/ops"
	"github.com/san-kum/mechsim/internal/physics"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/telemetry"
)

// nestedSolver runs one ResetForce over its subtree, or fails.
type nestedSolver struct {
	eng  *engine.Engine
	fail bool
}

func (s *nestedSolver) Name() string { return "nested" }

func (s *nestedSolver) Solve(mp *scene.MechanicalParams, node *scene.Node) error {
	if s.fail {
		return errors.New("boom")
	}
	s.eng.Execute(ops.NewResetForce(mp, mp.F, false), node)
	return nil
}

// integrate builds root{solver} -> body{state} and runs one Integration.
func integrate(t *testing.T, hook engine.Hook, fail bool) engine.Outcome {
	t.Helper()
	eng := engine.New(engine.WithHook(hook), engine.WithDiagnostics(&engine.RecordingDiagnostics{}))
	root := scene.NewNode("root")
	root.MustAdd(&nestedSolver{eng: eng, fail: fail})
	root.NewChild("body").MustAdd(physics.NewState("s", 2, 2))
	return eng.Execute(ops.NewIntegration(scene.DefaultMechanicalParams()), root)
}

func TestMetricsHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := telemetry.NewMetricsHook(reg)

	if out := integrate(t, h, false); out != engine.Completed {
		t.Fatalf("outcome = %s", out)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"integration completed", testutil.ToFloat64(h.Traversals.WithLabelValues("Integration", "completed")), 1},
		{"nested completed", testutil.ToFloat64(h.Traversals.WithLabelValues("ResetForce", "completed")), 1},
		{"solver prunes root", testutil.ToFloat64(h.Visits.WithLabelValues("Integration", "top-down", "prune")), 1},
		{"nested top-down visits", testutil.ToFloat64(h.Visits.WithLabelValues("ResetForce", "top-down", "continue")), 2},
		{"nested bottom-up visits", testutil.ToFloat64(h.Visits.WithLabelValues("ResetForce", "bottom-up", "continue")), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(h.Duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}

	if out := integrate(t, h, true); out != engine.Aborted {
		t.Fatalf("outcome = %s", out)
	}
	if got := testutil.ToFloat64(h.Traversals.WithLabelValues("Integration", "aborted")); got != 1 {
		t.Errorf("aborted traversals = %v", got)
	}
	if got := testutil.ToFloat64(h.Visits.WithLabelValues("Integration", "top-down", "abort")); got != 1 {
		t.Errorf("abort visits = %v", got)
	}
}

func TestMetricsHookRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	telemetry.NewMetricsHook(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	telemetry.NewMetricsHook(reg)
}

func TestLogHook(t *testing.T) {
	var buf bytes.Buffer
	h := telemetry.NewLogHook(log.New(&buf, "", 0), false)
	integrate(t, h, false)

	out := buf.String()
	for _, want := range []string{
		"traversal ResetForce from /root: completed",
		"traversal Integration from /root: completed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "top-down") {
		t.Errorf("node lines logged without Nodes:\n%s", out)
	}

	buf.Reset()
	h.Nodes = true
	integrate(t, h, false)
	if !strings.Contains(buf.String(), "Integration top-down /root: prune") {
		t.Errorf("node line missing:\n%s", buf.String())
	}
}

func TestTraceHookNestsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	h := telemetry.NewTraceHook(tp)

	integrate(t, h, false)

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	inner, outer := spans[0], spans[1]
	if inner.Name() != "ResetForce" || outer.Name() != "Integration" {
		t.Fatalf("spans = %s, %s", inner.Name(), outer.Name())
	}
	if inner.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Error("nested traversal is not a child of Integration")
	}

	events := outer.Events()
	if len(events) != 1 || events[0].Name != "prune" {
		t.Errorf("events = %+v", events)
	}
}

// fanOut starts a slow traversal at every state it visits.
type fanOut struct {
	engine.Base
	eng *engine.Engine
}

func (f *fanOut) VisitState(ctx *engine.Context, _ scene.MechanicalState) engine.Result {
	f.eng.Execute(&pause{Base: engine.Base{OpName: "pause"}}, ctx.Node)
	return engine.Continue
}

type pause struct{ engine.Base }

func (*pause) VisitState(*engine.Context, scene.MechanicalState) engine.Result {
	time.Sleep(5 * time.Millisecond)
	return engine.Continue
}

func TestTraceHookParentsConcurrentTraversals(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	eng := engine.New(engine.WithWorkers(4), engine.WithHook(telemetry.NewTraceHook(tp)))

	root := scene.NewNode("root")
	for i := 0; i < 8; i++ {
		root.NewChild(fmt.Sprintf("b%d", i)).MustAdd(physics.NewState(fmt.Sprintf("s%d", i), 1, 1))
	}
	eng.Execute(&fanOut{Base: engine.Base{OpName: "fanout", Safe: true}, eng: eng}, root)

	var outer sdktrace.ReadOnlySpan
	var inner []sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		switch s.Name() {
		case "fanout":
			outer = s
		case "pause":
			inner = append(inner, s)
		}
	}
	if outer == nil || len(inner) != 8 {
		t.Fatalf("outer = %v, inner spans = %d", outer, len(inner))
	}
	for _, s := range inner {
		if s.Parent().SpanID() != outer.SpanContext().SpanID() {
			t.Errorf("%s at %v has the wrong parent", s.Name(), s.Attributes())
		}
	}
}

func TestTraceHookMarksAbort(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	integrate(t, telemetry.NewTraceHook(tp), true)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status())
	}
}

func TestHooksCombine(t *testing.T) {
	var buf bytes.Buffer
	m := telemetry.NewMetricsHook(nil)
	integrate(t, engine.Hooks{telemetry.NewLogHook(log.New(&buf, "", 0), false), m}, false)

	if buf.Len() == 0 {
		t.Error("log hook not called")
	}
	if got := testutil.ToFloat64(m.Traversals.WithLabelValues("Integration", "completed")); got != 1 {
		t.Errorf("metrics hook not called: %v", got)
	}
}

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "", "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// non-routable, nothing is exported
	shutdown, err := telemetry.Setup(context.Background(), "http://192.0.2.1:4318", "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Error("global provider not installed")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
