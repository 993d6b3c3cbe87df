// Package assembly builds the global system matrix of a scene.
//
// An [Accessor] is filled in two steps: a dimension pass registers every
// independent state (which gets a contiguous block of rows) and every
// mapped state, then Setup allocates the matrix. Contributors write
// through [Accessor.Block]; blocks touching mapped states are projected
// onto their parents by [Accessor.Finish].
package assembly
