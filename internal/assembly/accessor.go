package assembly

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/scene"
)

var (
	// ErrNoJacobian reports a mapped block whose mapping cannot expose its
	// Jacobian, so the block cannot be projected onto independent states.
	ErrNoJacobian = errors.New("assembly: mapping has no jacobian")

	// ErrShape reports a Jacobian whose dimensions disagree with the
	// states it maps between.
	ErrShape = errors.New("assembly: jacobian shape mismatch")
)

type pair struct {
	row, col scene.MechanicalState
}

// Accessor lays the independent states of a scene out along the rows and
// columns of one dense global matrix. Blocks involving mapped states are
// kept locally and projected through their mappings by Finish.
type Accessor struct {
	order    []scene.MechanicalState
	index    map[scene.MechanicalState]int
	offsets  map[scene.MechanicalState]int
	mappings map[scene.MechanicalState]scene.Mapping
	size     int

	global *mat.Dense
	local  map[pair]*mat.Dense
}

func New() *Accessor {
	return &Accessor{
		index:    make(map[scene.MechanicalState]int),
		offsets:  make(map[scene.MechanicalState]int),
		mappings: make(map[scene.MechanicalState]scene.Mapping),
		local:    make(map[pair]*mat.Dense),
	}
}

func (a *Accessor) register(s scene.MechanicalState) bool {
	if _, ok := a.index[s]; ok {
		return false
	}
	a.index[s] = len(a.order)
	a.order = append(a.order, s)
	return true
}

// AddIndependent gives s the next contiguous range of global rows.
func (a *Accessor) AddIndependent(s scene.MechanicalState) {
	if !a.register(s) {
		return
	}
	a.offsets[s] = a.size
	a.size += s.Size() * s.Dim()
}

// AddMapped records that s is computed from another state through m.
func (a *Accessor) AddMapped(s scene.MechanicalState, m scene.Mapping) {
	if !a.register(s) {
		return
	}
	a.mappings[s] = m
}

// Setup allocates the global matrix once every state is registered.
func (a *Accessor) Setup() {
	if a.size == 0 {
		a.global = nil
		return
	}
	a.global = mat.NewDense(a.size, a.size, nil)
}

func (a *Accessor) Size() int { return a.size }

func (a *Accessor) Offset(s scene.MechanicalState) (int, bool) {
	off, ok := a.offsets[s]
	return off, ok
}

// States returns every registered state in registration order.
func (a *Accessor) States() []scene.MechanicalState {
	return append([]scene.MechanicalState(nil), a.order...)
}

// Matrix returns the global matrix, or nil before Setup or when no state
// was registered.
func (a *Accessor) Matrix() *mat.Dense { return a.global }

// Reset zeroes the global matrix and drops local blocks, keeping the layout.
func (a *Accessor) Reset() {
	if a.global != nil {
		a.global.Zero()
	}
	a.local = make(map[pair]*mat.Dense)
}

func (a *Accessor) Block(row, col scene.MechanicalState) scene.MatrixBlock {
	if a == nil || a.global == nil {
		return nullBlock{}
	}
	_, rowKnown := a.index[row]
	_, colKnown := a.index[col]
	if !rowKnown || !colKnown {
		return nullBlock{}
	}
	ro, rowIndep := a.offsets[row]
	co, colIndep := a.offsets[col]
	nr, nc := row.Size()*row.Dim(), col.Size()*col.Dim()
	if nr == 0 || nc == 0 {
		return nullBlock{}
	}
	if rowIndep && colIndep {
		return &globalBlock{m: a.global, ro: ro, co: co, nr: nr, nc: nc}
	}
	k := pair{row, col}
	d, ok := a.local[k]
	if !ok {
		d = mat.NewDense(nr, nc, nil)
		a.local[k] = d
	}
	return &localBlock{m: d}
}

// Finish projects every local block onto the independent states:
// K_parent += Jᵀ K J, chained until both sides are independent.
func (a *Accessor) Finish() error {
	keys := make([]pair, 0, len(a.local))
	for k := range a.local {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := a.index[keys[i].row], a.index[keys[j].row]
		if ri != rj {
			return ri < rj
		}
		return a.index[keys[i].col] < a.index[keys[j].col]
	})

	for _, k := range keys {
		if err := a.project(k, a.local[k]); err != nil {
			return err
		}
	}
	a.local = make(map[pair]*mat.Dense)
	return nil
}

func (a *Accessor) project(k pair, block *mat.Dense) error {
	var cur mat.Matrix = block
	row, col := k.row, k.col
	for {
		rm, rowMapped := a.mappings[row]
		cm, colMapped := a.mappings[col]
		if !rowMapped && !colMapped {
			break
		}
		if rowMapped {
			j, err := jacobian(rm)
			if err != nil {
				return err
			}
			var next mat.Dense
			next.Mul(j.T(), cur)
			cur, row = &next, rm.From()
		}
		if colMapped {
			j, err := jacobian(cm)
			if err != nil {
				return err
			}
			var next mat.Dense
			next.Mul(cur, j)
			cur, col = &next, cm.From()
		}
	}

	ro, okr := a.offsets[row]
	co, okc := a.offsets[col]
	if !okr || !okc {
		return nil
	}
	r, c := cur.Dims()
	dst := a.global.Slice(ro, ro+r, co, co+c).(*mat.Dense)
	dst.Add(dst, cur)
	return nil
}

func jacobian(m scene.Mapping) (mat.Matrix, error) {
	jm, ok := m.(scene.JacobianMapping)
	if !ok || jm.Jacobian() == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoJacobian, m.Name())
	}
	j := jm.Jacobian()
	r, c := j.Dims()
	to, from := m.To(), m.From()
	if r != to.Size()*to.Dim() || c != from.Size()*from.Dim() {
		return nil, fmt.Errorf("%w: %s is %dx%d", ErrShape, m.Name(), r, c)
	}
	return j, nil
}
