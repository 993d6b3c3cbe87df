// Package ops is the library of mechanical operations run by the engine.
//
// Every operation is a value built by a New* constructor from the vector
// ids and factors it works on, and implements only the visitor callbacks
// it needs. Each one names its thread safety and the mapping policy that
// decides where the traversal stops:
//
//   - forces and force differentials stop at mappings that do not carry
//     forces, and carry mapped contributions back with ApplyJT;
//   - position and velocity propagation crosses every mapping;
//   - projection and mass operations prune at mappings;
//   - constraint operations cross every mapping and are not thread safe
//     because they thread a row counter through the traversal.
//
// Reductions (VDot, VNorm, GetDimension) fold per-node accumulators and
// report through Result after the traversal.
//
// # Example
//
//	mp := scene.DefaultMechanicalParams()
//	eng.Execute(ops.NewResetForce(mp, mp.F, false), root)
//	eng.Execute(ops.NewComputeForce(mp, mp.F, true), root)
//	dot := ops.NewVDot(mp.F, mp.V)
//	eng.Execute(dot, root)
//	power := dot.Result()
package ops
