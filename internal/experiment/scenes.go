package experiment

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/integrators"
	"github.com/san-kum/mechsim/internal/physics"
	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/vecid"
)

// Params are the numeric knobs of a scene. Missing keys take defaults.
type Params map[string]float64

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func (p Params) count(key string, def int) int {
	n := int(p.get(key, float64(def)))
	if n < 1 {
		return 1
	}
	return n
}

const standardGravity = -9.81

// fall drops independent balls from staggered heights.
func fall(p Params, rng *rand.Rand, _ *engine.Engine) *scene.Node {
	root := scene.NewNode("fall")
	root.SetGravity([]float64{0, p.get("gravity", standardGravity), 0})
	n := p.count("count", 3)
	jitter := p.get("jitter", 0)
	for i := 0; i < n; i++ {
		s := physics.NewState("ball", 1, 3)
		s.SetPoint(vecid.Position, 0, jitter*(rng.Float64()-0.5), p.get("height", 10)+float64(i), 0)
		root.NewChild("ball").MustAdd(s, physics.NewUniformMass("mass", p.get("mass", 1)))
	}
	return root
}

// chain hangs a row of particles on springs from a fixed first particle.
func chain(p Params, _ *rand.Rand, _ *engine.Engine) *scene.Node {
	root := scene.NewNode("chain")
	root.SetGravity([]float64{0, p.get("gravity", standardGravity)})
	n := p.count("count", 6)
	if n < 2 {
		n = 2
	}
	spacing := p.get("spacing", 0.5)

	s := physics.NewState("particles", n, 2)
	for i := 0; i < n; i++ {
		s.SetPoint(vecid.Position, i, float64(i)*spacing, 0)
	}
	s.StoreRest()

	springs := physics.NewSpringForceField("springs", s, s)
	for i := 0; i+1 < n; i++ {
		springs.AddSpring(physics.Spring{
			A:    i,
			B:    i + 1,
			Ks:   p.get("stiffness", 200),
			Kd:   p.get("damping", 0.5),
			Rest: spacing,
		})
	}
	root.NewChild("chain").MustAdd(
		s,
		physics.NewUniformMass("mass", p.get("mass", 0.1)),
		physics.NewFixedConstraint("anchor", 0),
		springs,
	)
	return root
}

// mapped hangs a point mass on a spring and carries markers rigidly
// offset from it. A constant wind acts on the markers only and reaches the
// mass through the mapping.
func mapped(p Params, _ *rand.Rand, _ *engine.Engine) *scene.Node {
	root := scene.NewNode("mapped")
	root.SetGravity([]float64{0, p.get("gravity", standardGravity)})

	anchor := physics.NewState("anchor", 1, 2)
	root.NewChild("anchor").MustAdd(anchor, physics.NewFixedConstraint("pin", 0))

	body := physics.NewState("body", 1, 2)
	body.SetPoint(vecid.Position, 0, 0, -1)
	bodyNode := root.NewChild("body").MustAdd(body, physics.NewUniformMass("mass", p.get("mass", 1)))

	// two markers, each a translated copy of the body
	a := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 0,
		0, 1,
	})
	offset := p.get("offset", 0.25)
	markers := physics.NewState("markers", 2, 2)
	bodyNode.NewChild("markers").MustAdd(
		markers,
		physics.NewAffineMapping("rigid", body, markers, a, []float64{-offset, 0, offset, 0}),
		physics.NewConstantForceField("wind", p.get("wind", 0.5), 0),
	)

	root.MustAdd(physics.NewSpringForceField("tether", anchor, body, physics.Spring{
		A: 0, B: 0, Ks: p.get("stiffness", 50), Kd: p.get("damping", 0.2), Rest: 1,
	}))
	return root
}

// pinned is a swinging pair of particles whose first particle is held in
// place by a bilateral constraint instead of a projection.
func pinned(p Params, _ *rand.Rand, eng *engine.Engine) *scene.Node {
	root := scene.NewNode("pinned")
	root.SetGravity([]float64{0, p.get("gravity", standardGravity)})

	s := physics.NewState("pair", 2, 2)
	s.SetPoint(vecid.Position, 1, 1, 0)
	root.NewChild("pair").MustAdd(
		s,
		physics.NewUniformMass("mass", p.get("mass", 1)),
		physics.NewPointConstraint("pin", 0, 0, 0),
		physics.NewSpringForceField("rod", s, s, physics.Spring{
			A: 0, B: 1, Ks: p.get("stiffness", 500), Kd: p.get("damping", 1), Rest: 1,
		}),
	)
	root.MustAdd(integrators.NewLinearConstraintSolver(eng))
	return root
}

// servo holds a mass against gravity at a target height with a PID force.
func servo(p Params, _ *rand.Rand, _ *engine.Engine) *scene.Node {
	root := scene.NewNode("servo")
	root.SetGravity([]float64{0, p.get("gravity", standardGravity)})

	s := physics.NewState("load", 1, 2)
	root.NewChild("load").MustAdd(
		s,
		physics.NewUniformMass("mass", p.get("mass", 1)),
		physics.NewServo("lift", 0, 1, p.get("kp", 40), p.get("ki", 40), p.get("kd", 8), p.get("target", 2)),
	)
	return root
}
