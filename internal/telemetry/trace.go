package telemetry

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

const instrumentation = "github.com/san-kum/mechsim/internal/engine"

// TraceHook opens a span per traversal. A traversal started from inside
// another one, such as a solver's inner operations under Integration,
// becomes a child of the traversal visiting its root at that moment.
// Pruned and aborted nodes are recorded as span events.
type TraceHook struct {
	tracer trace.Tracer

	mu   sync.Mutex
	open []openSpan
}

type openSpan struct {
	key    traversalKey
	ctx    context.Context
	span   trace.Span
	active map[*scene.Node]int
}

// NewTraceHook traces with tp, or the global provider when tp is nil.
func NewTraceHook(tp trace.TracerProvider) *TraceHook {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TraceHook{tracer: tp.Tracer(instrumentation)}
}

// depthIn returns how many levels below anc node sits, or -1 when anc is
// not node or one of its ancestors.
func depthIn(node, anc *scene.Node) int {
	d := 0
	for c := node; c != nil; c = c.Parent() {
		if c == anc {
			return d
		}
		d++
	}
	return -1
}

// parentOf picks the open traversal currently visiting root or its
// closest ancestor. Later traversals win ties.
func (h *TraceHook) parentOf(root *scene.Node) context.Context {
	parent, best := context.Background(), -1
	for _, o := range h.open {
		for n := range o.active {
			d := depthIn(root, n)
			if d < 0 {
				continue
			}
			if depth := depthIn(n, n.Root()); depth >= best {
				parent, best = o.ctx, depth
			}
		}
	}
	return parent
}

// owner returns the innermost open traversal of op whose root contains
// node, or -1.
func (h *TraceHook) owner(op string, node *scene.Node) int {
	for i := len(h.open) - 1; i >= 0; i-- {
		if h.open[i].key.op == op && depthIn(node, h.open[i].key.root) >= 0 {
			return i
		}
	}
	return -1
}

func (h *TraceHook) BeginTraversal(op engine.Operation, root *scene.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, span := h.tracer.Start(h.parentOf(root), op.Name(), trace.WithAttributes(
		attribute.String("mechsim.root", root.Path()),
		attribute.Bool("mechsim.thread_safe", op.ThreadSafe()),
	))
	h.open = append(h.open, openSpan{
		key:    keyOf(op, root),
		ctx:    ctx,
		span:   span,
		active: make(map[*scene.Node]int),
	})
}

func (h *TraceHook) EndTraversal(op engine.Operation, root *scene.Node, out engine.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := keyOf(op, root)
	for i := len(h.open) - 1; i >= 0; i-- {
		if h.open[i].key != k {
			continue
		}
		span := h.open[i].span
		span.SetAttributes(attribute.String("mechsim.outcome", out.String()))
		if out == engine.Aborted {
			span.SetStatus(codes.Error, "traversal aborted")
		}
		span.End()
		h.open = append(h.open[:i], h.open[i+1:]...)
		return
	}
}

func (h *TraceHook) BeginNode(op engine.Operation, node *scene.Node, _ engine.Phase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := h.owner(op.Name(), node); i >= 0 {
		h.open[i].active[node]++
	}
}

func (h *TraceHook) EndNode(op engine.Operation, node *scene.Node, phase engine.Phase, res engine.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := h.owner(op.Name(), node)
	if i < 0 {
		return
	}
	o := h.open[i]
	o.active[node]--
	if o.active[node] <= 0 {
		delete(o.active, node)
	}
	if res == engine.Continue {
		return
	}
	o.span.AddEvent(res.String(), trace.WithAttributes(
		attribute.String("mechsim.node", node.Path()),
		attribute.String("mechsim.phase", phase.String()),
	))
}

// Setup installs a global tracer provider exporting to an OTLP/HTTP
// endpoint. An empty endpoint leaves tracing off and returns a no-op
// shutdown. The returned shutdown flushes pending spans.
func Setup(ctx context.Context, endpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop, nil
	}

	opt := otlptracehttp.WithEndpoint(endpoint)
	if strings.Contains(endpoint, "://") {
		opt = otlptracehttp.WithEndpointURL(endpoint)
	}
	opts := []otlptracehttp.Option{opt}
	if !strings.HasPrefix(endpoint, "https://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
