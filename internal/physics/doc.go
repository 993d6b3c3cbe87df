// Package physics provides the scene objects the solvers act on.
//
//   - [State]: points with dynamic vector slots, force mask and external forces
//   - [StaticState]: fixed slots only; allocation skips it
//   - [UniformMass]: per-point mass, also a gravity force field
//   - [ConstantForceField], [SpringForceField]: forces with energy and stiffness
//   - [FixedConstraint]: projective constraint pinning points to rest
//   - [PointConstraint]: bilateral constraint with a violation
//   - [AffineMapping]: x_to = A x_from + b with Jacobian A
//   - [Servo]: PID force driving one coordinate to a target
//
// Objects that need their node (masses, constraints) receive it through
// SetContext when added, and read the node's state lazily.
//
// # Example
//
//	root := scene.NewNode("root")
//	root.SetGravity([]float64{0, -9.8, 0})
//	ball := physics.NewState("ball", 1, 3)
//	root.NewChild("ball").MustAdd(ball, physics.NewUniformMass("m", 1))
package physics
