package engine

import (
	"fmt"

	"github.com/san-kum/mechsim/internal/scene"
)

// MappingPolicy decides whether a traversal stops at a mechanical mapping.
// Operations pick one policy per flag combination instead of overriding
// StopAtMapping ad hoc.
type MappingPolicy uint8

const (
	// StopAtNonForceMapping stops where the mapping does not carry forces.
	StopAtNonForceMapping MappingPolicy = iota
	// StopAtNonMatrixMapping stops where the mapping does not carry
	// matrices.
	StopAtNonMatrixMapping
	// CrossAllMappings never stops. Used where geometry must stay
	// consistent through every mapping.
	CrossAllMappings
	// StopAtAllMappings only visits independent states.
	StopAtAllMappings
)

func (p MappingPolicy) Stops(m scene.Mapping) bool {
	switch p {
	case StopAtNonForceMapping:
		return !m.ForcesMapped()
	case StopAtNonMatrixMapping:
		return !m.MatricesMapped()
	case CrossAllMappings:
		return false
	case StopAtAllMappings:
		return true
	default:
		return !m.ForcesMapped()
	}
}

func (p MappingPolicy) String() string {
	switch p {
	case StopAtNonForceMapping:
		return "stop-at-non-force"
	case StopAtNonMatrixMapping:
		return "stop-at-non-matrix"
	case CrossAllMappings:
		return "cross-all"
	case StopAtAllMappings:
		return "stop-at-all"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// Base implements Operation for visitors that only need a name, a thread
// safety flag and a mapping policy.
type Base struct {
	OpName string
	Safe   bool
	Policy MappingPolicy
}

func (b Base) Name() string     { return b.OpName }
func (b Base) ThreadSafe() bool { return b.Safe }

func (b Base) StopAtMapping(_ *scene.Node, m scene.Mapping) bool {
	return b.Policy.Stops(m)
}

// SumReducer seeds every node with zero and adds children into parents.
type SumReducer struct{}

func (SumReducer) Seed(*scene.Node, float64) float64  { return 0 }
func (SumReducer) Fold(parent, child float64) float64 { return parent + child }

// MaxReducer keeps the largest value seen.
type MaxReducer struct{}

func (MaxReducer) Seed(*scene.Node, float64) float64 { return 0 }

func (MaxReducer) Fold(parent, child float64) float64 {
	if child > parent {
		return child
	}
	return parent
}
