// Package vecid names per-object vector storage symbolically.
//
// A [VecID] is a (category, index) pair. Categories separate coordinate,
// derivative and matrix-derivative slots. Indices below [FirstDynamicIndex]
// are the well-known slots ([Position], [Velocity], [Force], ...); the rest
// are handed out by the allocation table in package vecalloc.
//
// A [MultiVecID] lets one operation address a different index on some
// objects, which happens when a scratch vector had to be widened onto a
// state where its default index was already taken.
//
// # Example
//
//	f := vecid.Force.Multi()
//	id := f.For(state) // vecid.Force unless overridden
package vecid
