package ops

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// VOp computes v = a + f b on every state. A null a or b drops the term;
// with both null v is zeroed. v may alias a or b.
type VOp struct {
	engine.Base
	v, a, b    vecid.MultiVecID
	f          float64
	mapped     bool
	onlyMapped bool
}

func NewVOp(v, a, b vecid.MultiVecID, f float64) *VOp {
	return &VOp{
		Base: engine.Base{OpName: "VOp", Safe: true},
		v:    v,
		a:    a,
		b:    b,
		f:    f,
	}
}

// SetMapped also applies the operation to mapped states.
func (o *VOp) SetMapped(m bool) *VOp {
	o.mapped = m
	return o
}

// SetOnlyMapped applies the operation to mapped states only.
func (o *VOp) SetOnlyMapped(m bool) *VOp {
	o.onlyMapped = m
	return o
}

func (o *VOp) StopAtMapping(n *scene.Node, m scene.Mapping) bool {
	if o.mapped || o.onlyMapped {
		return false
	}
	return o.Base.StopAtMapping(n, m)
}

func (o *VOp) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if !o.onlyMapped {
		o.apply(s)
	}
	return engine.Continue
}

func (o *VOp) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.mapped || o.onlyMapped {
		o.apply(s)
	}
	return engine.Continue
}

func (o *VOp) apply(s scene.MechanicalState) {
	v := vec(s, o.v)
	if v == nil {
		return
	}
	a, b := vec(s, o.a), vec(s, o.b)
	switch {
	case a == nil && b == nil:
		clear(v)
	case b == nil:
		copy(v, a)
	case a == nil:
		n := min(len(v), len(b))
		for i := 0; i < n; i++ {
			v[i] = b[i] * o.f
		}
	default:
		n := min(len(v), len(a), len(b))
		for i := 0; i < n; i++ {
			v[i] = a[i] + b[i]*o.f
		}
	}
}

type Term struct {
	ID     vecid.MultiVecID
	Factor float64
}

// LinearOp is one r = Σ factor·id line of a VMultiOp.
type LinearOp struct {
	Dest  vecid.MultiVecID
	Terms []Term
}

// VMultiOp evaluates a sequence of linear combinations, in order, on every
// state. Each line sees the results of the lines before it.
type VMultiOp struct {
	engine.Base
	lines  []LinearOp
	mapped bool
}

func NewVMultiOp(lines []LinearOp, mapped bool) *VMultiOp {
	return &VMultiOp{
		Base:   engine.Base{OpName: "VMultiOp", Safe: true},
		lines:  lines,
		mapped: mapped,
	}
}

func (o *VMultiOp) StopAtMapping(n *scene.Node, m scene.Mapping) bool {
	if o.mapped {
		return false
	}
	return o.Base.StopAtMapping(n, m)
}

func (o *VMultiOp) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	o.apply(s)
	return engine.Continue
}

func (o *VMultiOp) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	if o.mapped {
		o.apply(s)
	}
	return engine.Continue
}

func (o *VMultiOp) apply(s scene.MechanicalState) {
	var tmp []float64
	for _, line := range o.lines {
		dst := vec(s, line.Dest)
		if dst == nil {
			continue
		}
		if cap(tmp) < len(dst) {
			tmp = make([]float64, len(dst))
		}
		tmp = tmp[:len(dst)]
		clear(tmp)
		for _, t := range line.Terms {
			src := vec(s, t.ID)
			for i := 0; i < len(tmp) && i < len(src); i++ {
				tmp[i] += t.Factor * src[i]
			}
		}
		copy(dst, tmp)
	}
}

// VDot sums a·b over the independent states.
type VDot struct {
	engine.Base
	engine.SumReducer
	a, b   vecid.MultiVecID
	result float64
}

func NewVDot(a, b vecid.MultiVecID) *VDot {
	return &VDot{
		Base: engine.Base{OpName: "VDot", Safe: true},
		a:    a,
		b:    b,
	}
}

func (o *VDot) Result() float64      { return o.result }
func (o *VDot) Finish(total float64) { o.result = total }

func (o *VDot) VisitState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	a, b := vec(s, o.a), vec(s, o.b)
	if a != nil && b != nil {
		n := min(len(a), len(b))
		ctx.Acc += floats.Dot(a[:n], b[:n])
	}
	return engine.Continue
}

// VNorm computes the l-norm of a over the independent states; l = 0 is
// the max norm.
type VNorm struct {
	engine.Base
	a      vecid.MultiVecID
	l      int
	result float64
}

func NewVNorm(a vecid.MultiVecID, l int) *VNorm {
	return &VNorm{
		Base: engine.Base{OpName: "VNorm", Safe: true},
		a:    a,
		l:    l,
	}
}

func (o *VNorm) Result() float64 { return o.result }

func (o *VNorm) Seed(*scene.Node, float64) float64 { return 0 }

func (o *VNorm) Fold(parent, child float64) float64 {
	if o.l == 0 {
		return math.Max(parent, child)
	}
	return parent + child
}

func (o *VNorm) Finish(total float64) {
	switch o.l {
	case 0, 1:
		o.result = total
	case 2:
		o.result = math.Sqrt(total)
	default:
		o.result = math.Pow(total, 1/float64(o.l))
	}
}

func (o *VNorm) VisitState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	a := vec(s, o.a)
	if a == nil {
		return engine.Continue
	}
	switch o.l {
	case 0:
		ctx.Acc = math.Max(ctx.Acc, floats.Norm(a, math.Inf(1)))
	case 2:
		ctx.Acc += floats.Dot(a, a)
	default:
		ctx.Acc += math.Pow(floats.Norm(a, float64(o.l)), float64(o.l))
	}
	return engine.Continue
}

// GetDimension counts the degrees of freedom of the independent states.
type GetDimension struct {
	engine.Base
	engine.SumReducer
	result int
}

func NewGetDimension() *GetDimension {
	return &GetDimension{Base: engine.Base{OpName: "GetDimension", Safe: true}}
}

func (o *GetDimension) Result() int          { return o.result }
func (o *GetDimension) Finish(total float64) { o.result = int(total) }

func (o *GetDimension) VisitState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	ctx.Acc += float64(s.Size() * s.Dim())
	return engine.Continue
}

// VSize counts the entries of v held by every state, mapped ones included.
type VSize struct {
	engine.Base
	v      vecid.MultiVecID
	result int
}

func NewVSize(v vecid.MultiVecID) *VSize {
	return &VSize{
		Base: engine.Base{OpName: "VSize", Policy: engine.CrossAllMappings},
		v:    v,
	}
}

func (o *VSize) Result() int { return o.result }

func (o *VSize) VisitState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	o.result += len(vec(s, o.v))
	return engine.Continue
}

func (o *VSize) VisitMappedState(_ *engine.Context, s scene.MechanicalState) engine.Result {
	o.result += len(vec(s, o.v))
	return engine.Continue
}
