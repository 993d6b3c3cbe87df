// Package experiment wires named scenes and integrators into runnable
// simulations.
//
// Scenes:
//
//   - fall: independent balls, no interactions
//   - chain: particles joined by springs, first one projected in place
//   - mapped: a tethered mass carrying markers through an affine mapping
//   - pinned: spring pendulum held by a solved bilateral constraint
//
// # Example
//
//	exp := experiment.New(experiment.Config{Scene: "chain", Integrator: "implicit", Dt: 0.01, Duration: 2})
//	if err := exp.Setup(experiment.NewRegistry(), engine.New(), nil); err != nil {
//		return err
//	}
//	res, err := exp.Run(ctx)
package experiment
