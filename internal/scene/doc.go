// Package scene defines the simulation tree consumed by the traversal
// engine: [Node], the capability interfaces simulation objects implement,
// and the parameter bundles passed to them.
//
// A node owns at most one [MechanicalState] and at most one mechanical
// [Mapping] (which must target that state). Every other capability may
// appear several times and keeps insertion order. An object implementing
// several capabilities, such as a mass that is also a force field, is
// filed under each of them.
//
// Context values (gravity, time step) are looked up through ancestors;
// simulation time lives on the root.
package scene
