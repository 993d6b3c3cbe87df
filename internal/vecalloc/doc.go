// Package vecalloc hands out scratch vector slots across a scene tree.
//
// [Table.Allocate] picks the lowest dynamic index free on every state in
// scope, reserves it on all of them and returns a [Lease] recording the
// exact set. Releasing the lease frees exactly that set; releasing twice
// or freeing an unknown slot returns an error wrapping
// [ErrInconsistentAllocation].
//
// # Example
//
//	table := vecalloc.TableOf(root)
//	err := table.With(eng, root, vecid.Deriv, vecalloc.Scope{}, func(tmp *vecalloc.Lease) error {
//		vecalloc.Init(eng, root, tmp.ID(), vecid.Velocity.Multi(), false)
//		return nil
//	})
//
// Solvers share one table per tree, found with [TableOf], so overlapping
// scopes never hand out the same slot twice.
//
// # Thread Safety
//
// Table methods are serialized by a mutex. The traversals they run are
// thread-unsafe operations and never run in parallel.
package vecalloc
