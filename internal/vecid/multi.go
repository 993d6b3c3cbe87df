package vecid

import "fmt"

// MultiVecID resolves a slot per object: a default VecID plus overrides for
// objects whose storage lives at another index. Values are immutable;
// WithOverride returns a copy.
type MultiVecID struct {
	def       VecID
	overrides map[any]VecID
}

func Multi(def VecID) MultiVecID { return MultiVecID{def: def} }

func (m MultiVecID) Default() VecID     { return m.def }
func (m MultiVecID) Category() Category { return m.def.Cat }
func (m MultiVecID) IsNull() bool       { return m.def.IsNull() && len(m.overrides) == 0 }
func (m MultiVecID) HasOverrides() bool { return len(m.overrides) > 0 }

func (m MultiVecID) Equal(o MultiVecID) bool {
	if m.def != o.def || len(m.overrides) != len(o.overrides) {
		return false
	}
	for k, v := range m.overrides {
		if ov, ok := o.overrides[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// For returns the slot used by obj. obj must be comparable.
func (m MultiVecID) For(obj any) VecID {
	if id, ok := m.overrides[obj]; ok {
		return id
	}
	return m.def
}

func (m MultiVecID) WithOverride(obj any, id VecID) MultiVecID {
	if id.Cat != m.def.Cat {
		panic(fmt.Sprintf("vecid: override %s does not match category %s", id, m.def.Cat))
	}
	next := MultiVecID{def: m.def, overrides: make(map[any]VecID, len(m.overrides)+1)}
	for k, v := range m.overrides {
		next.overrides[k] = v
	}
	next.overrides[obj] = id
	return next
}

func (m MultiVecID) String() string {
	if len(m.overrides) == 0 {
		return m.def.String()
	}
	return fmt.Sprintf("%s+%d overrides", m.def, len(m.overrides))
}
