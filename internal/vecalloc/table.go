package vecalloc

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// Scope selects the states an allocation covers. The zero Scope covers
// the independent states of the subtree.
type Scope struct {
	// Mapped also covers states below mechanical mappings.
	Mapped bool
	// Interactions also covers states coupled to the subtree by
	// interaction force fields, wherever they live.
	Interactions bool
}

func (s Scope) policy() engine.MappingPolicy {
	if s.Mapped || s.Interactions {
		return engine.CrossAllMappings
	}
	return engine.StopAtAllMappings
}

type holding struct {
	state scene.DynamicState
	id    vecid.VecID
}

// Table tracks which dynamic slots are reserved on which states. One table
// serves a whole tree; calls are serialized.
type Table struct {
	mu       sync.Mutex
	reserved map[vecid.VecID]map[scene.MechanicalState]struct{}
	leases   map[vecid.VecID][]*Lease
}

type tableKey struct{}

// TableOf returns the table shared by every solver in n's tree.
func TableOf(n *scene.Node) *Table {
	return n.Shared(tableKey{}, func() any { return NewTable() }).(*Table)
}

func NewTable() *Table {
	return &Table{
		reserved: make(map[vecid.VecID]map[scene.MechanicalState]struct{}),
		leases:   make(map[vecid.VecID][]*Lease),
	}
}

func (t *Table) Reserved(id vecid.VecID, s scene.MechanicalState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.has(id, s)
}

func (t *Table) has(id vecid.VecID, s scene.MechanicalState) bool {
	_, ok := t.reserved[id][s]
	return ok
}

// Live returns the number of outstanding allocations.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, ls := range t.leases {
		n += len(ls)
	}
	return n
}

// Snapshot returns, per reserved slot, the sorted names of the states
// holding it.
func (t *Table) Snapshot() map[vecid.VecID][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[vecid.VecID][]string, len(t.reserved))
	for id, states := range t.reserved {
		names := make([]string, 0, len(states))
		for s := range states {
			names = append(names, s.Name())
		}
		sort.Strings(names)
		out[id] = names
	}
	return out
}

// Allocate reserves the lowest dynamic index of cat that is free on every
// state in scope. Disjoint scopes may share an index. Static states in
// scope are skipped with a diagnostic.
func (t *Table) Allocate(eng *engine.Engine, root *scene.Node, cat vecid.Category, scope Scope) (*Lease, error) {
	if cat > vecid.MatrixDeriv {
		return nil, fmt.Errorf("%w: %s", ErrCategory, cat)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	states := t.collect(eng, root, scope)

	idx := vecid.FirstDynamicIndex
	for !t.freeOnAll(vecid.Dynamic(cat, idx), states) {
		idx++
	}
	id := vecid.Dynamic(cat, idx)

	l := &Lease{table: t, id: id.Multi()}
	for _, s := range states {
		t.reserve(l, s, id)
	}
	t.leases[id] = append(t.leases[id], l)
	return l, nil
}

func (t *Table) freeOnAll(id vecid.VecID, states []scene.DynamicState) bool {
	for _, s := range states {
		if t.has(id, s) {
			return false
		}
	}
	return true
}

func (t *Table) lowestFreeOn(cat vecid.Category, s scene.MechanicalState) vecid.VecID {
	idx := vecid.FirstDynamicIndex
	for t.has(vecid.Dynamic(cat, idx), s) {
		idx++
	}
	return vecid.Dynamic(cat, idx)
}

func (t *Table) reserve(l *Lease, s scene.DynamicState, id vecid.VecID) {
	set, ok := t.reserved[id]
	if !ok {
		set = make(map[scene.MechanicalState]struct{})
		t.reserved[id] = set
	}
	set[s] = struct{}{}
	s.AllocVec(id)
	l.held = append(l.held, holding{state: s, id: id})
}

// Realloc extends a live allocation to states that entered its scope
// since it was made. Where the lease's index is already taken on such a
// state, the lowest free index there is used and recorded as an override.
func (t *Table) Realloc(eng *engine.Engine, root *scene.Node, l *Lease, scope Scope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := l.id.Default()
	if l.released || t.find(l) < 0 {
		return inconsistent(id, "realloc of a released slot")
	}
	held := make(map[scene.MechanicalState]bool, len(l.held))
	for _, h := range l.held {
		held[h.state] = true
	}
	for _, s := range t.collect(eng, root, scope) {
		if held[s] {
			continue
		}
		if !t.has(id, s) {
			t.reserve(l, s, id)
			continue
		}
		alt := t.lowestFreeOn(id.Cat, s)
		t.reserve(l, s, alt)
		l.id = l.id.WithOverride(s, alt)
	}
	return nil
}

// Free releases the most recent live allocation made under id.
func (t *Table) Free(id vecid.VecID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ls := t.leases[id]
	if len(ls) == 0 {
		return inconsistent(id, "free of an unallocated slot")
	}
	return t.release(ls[len(ls)-1])
}

func (t *Table) find(l *Lease) int {
	for i, x := range t.leases[l.id.Default()] {
		if x == l {
			return i
		}
	}
	return -1
}

// MustFree is Free that panics on an inconsistent free.
func (t *Table) MustFree(id vecid.VecID) {
	if err := t.Free(id); err != nil {
		panic(err)
	}
}

func (t *Table) releaseLease(l *Lease) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.release(l)
}

func (t *Table) release(l *Lease) error {
	id := l.id.Default()
	if l.released {
		return inconsistent(id, "double free")
	}
	at := t.find(l)
	if at < 0 {
		return inconsistent(id, "lease does not belong to this table")
	}
	var errs []error
	for _, h := range l.held {
		set := t.reserved[h.id]
		if _, ok := set[h.state]; !ok {
			errs = append(errs, inconsistent(h.id, "slot missing on "+h.state.Name()))
			continue
		}
		delete(set, h.state)
		if len(set) == 0 {
			delete(t.reserved, h.id)
		}
		h.state.FreeVec(h.id)
	}
	ls := append(t.leases[id][:at], t.leases[id][at+1:]...)
	if len(ls) == 0 {
		delete(t.leases, id)
	} else {
		t.leases[id] = ls
	}
	l.released = true
	l.held = nil
	return errors.Join(errs...)
}

// With allocates a slot, runs fn and releases the slot on every exit
// path, panics included.
func (t *Table) With(eng *engine.Engine, root *scene.Node, cat vecid.Category, scope Scope, fn func(*Lease) error) (err error) {
	l, err := t.Allocate(eng, root, cat, scope)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn(l)
}

func (t *Table) collect(eng *engine.Engine, root *scene.Node, scope Scope) []scene.DynamicState {
	c := &collector{
		Base:  engine.Base{OpName: "VAvail", Policy: scope.policy()},
		scope: scope,
		seen:  make(map[scene.MechanicalState]bool),
	}
	eng.Execute(c, root)
	return c.states
}

type collector struct {
	engine.Base
	scope  Scope
	seen   map[scene.MechanicalState]bool
	states []scene.DynamicState
}

func (c *collector) add(ctx *engine.Context, s scene.MechanicalState) {
	if c.seen[s] {
		return
	}
	c.seen[s] = true
	ds, ok := s.(scene.DynamicState)
	if !ok {
		ctx.Warn(s, "static structure: dynamic vectors unsupported, state skipped")
		return
	}
	c.states = append(c.states, ds)
}

func (c *collector) VisitState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	c.add(ctx, s)
	return engine.Continue
}

func (c *collector) VisitMappedState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	if c.scope.Mapped {
		c.add(ctx, s)
	}
	return engine.Continue
}

func (c *collector) VisitInteractionForceField(ctx *engine.Context, ff scene.InteractionForceField) engine.Result {
	if c.scope.Interactions {
		for _, s := range ff.InteractingStates() {
			c.add(ctx, s)
		}
	}
	return engine.Continue
}
