package vecid

import "fmt"

type Category uint8

const (
	Coord Category = iota
	Deriv
	MatrixDeriv
)

func (c Category) String() string {
	switch c {
	case Coord:
		return "coord"
	case Deriv:
		return "deriv"
	case MatrixDeriv:
		return "matrixderiv"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

type Index uint32

// FirstDynamicIndex is the lowest index handed out by allocation. Indices
// below it are reserved for the well-known slots.
const FirstDynamicIndex Index = 16

// VecID names one vector slot on every mechanical state. The zero index is
// the null slot of its category.
type VecID struct {
	Cat   Category
	Index Index
}

var (
	Null = VecID{}

	Position      = VecID{Coord, 1}
	RestPosition  = VecID{Coord, 2}
	FreePosition  = VecID{Coord, 3}
	ResetPosition = VecID{Coord, 4}

	Velocity      = VecID{Deriv, 1}
	ResetVelocity = VecID{Deriv, 2}
	FreeVelocity  = VecID{Deriv, 3}
	Normal        = VecID{Deriv, 4}
	Force         = VecID{Deriv, 5}
	ExternalForce = VecID{Deriv, 6}
	Dx            = VecID{Deriv, 7}
	DForce        = VecID{Deriv, 8}

	ConstraintJacobian = VecID{MatrixDeriv, 1}
	MappingJacobian    = VecID{MatrixDeriv, 2}
)

var reservedNames = map[VecID]string{
	Position:           "position",
	RestPosition:       "restPosition",
	FreePosition:       "freePosition",
	ResetPosition:      "resetPosition",
	Velocity:           "velocity",
	ResetVelocity:      "resetVelocity",
	FreeVelocity:       "freeVelocity",
	Normal:             "normal",
	Force:              "force",
	ExternalForce:      "externalForce",
	Dx:                 "dx",
	DForce:             "dforce",
	ConstraintJacobian: "constraintJacobian",
	MappingJacobian:    "mappingJacobian",
}

// Reserved lists the well-known slots of a category in index order.
func Reserved(cat Category) []VecID {
	var ids []VecID
	for i := Index(1); i < FirstDynamicIndex; i++ {
		id := VecID{cat, i}
		if _, ok := reservedNames[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func NullOf(cat Category) VecID { return VecID{Cat: cat} }

func Dynamic(cat Category, index Index) VecID { return VecID{Cat: cat, Index: index} }

func (v VecID) IsNull() bool    { return v.Index == 0 }
func (v VecID) IsDynamic() bool { return v.Index >= FirstDynamicIndex }

func (v VecID) String() string {
	if v.IsNull() {
		return v.Cat.String() + "(null)"
	}
	if name, ok := reservedNames[v]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", v.Cat, v.Index)
}

// Multi returns a MultiVecID resolving to v for every object.
func (v VecID) Multi() MultiVecID { return MultiVecID{def: v} }
