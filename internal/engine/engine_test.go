package engine_test

import (
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mechsim/internal/engine"
	"github.com/san-kum/mechsim/internal/scene"
)

var _ = Describe("Execute", func() {
	var eng *engine.Engine

	BeforeEach(func() {
		eng = engine.New(engine.WithDiagnostics(&engine.RecordingDiagnostics{}))
	})

	Describe("dispatch order", func() {
		It("visits capabilities in the fixed order regardless of insertion order", func() {
			root := scene.NewNode("root")
			dofs := &fakeState{name: "dofs", size: 3}
			root.MustAdd(
				&fakeConstraint{name: "point"},
				&fakeForceField{name: "gravity"},
				&fakeProjective{name: "fixed"},
				&fakeMass{fakeForceField{name: "mass"}},
				dofs,
				&fakeInteraction{fakeForceField: fakeForceField{name: "spring"}},
				&fakeConstraintSolver{name: "lcp"},
				&fakeSolver{name: "euler"},
			)

			rec := newRecorder(engine.StopAtNonForceMapping)
			Expect(eng.Execute(rec, root)).To(Equal(engine.Completed))
			Expect(rec.Events()).To(Equal([]string{
				"solver:euler",
				"csolver:lcp",
				"state:dofs",
				"mass:mass",
				"ff:gravity",
				"ff:mass",
				"ff:spring",
				"proj:fixed",
				"cons:point",
				"~proj:fixed",
				"~cons:point",
				"~state:dofs",
				"~solver:euler",
				"~csolver:lcp",
			}))
		})

		It("runs a node's top-down before its children and bottom-up after them", func() {
			root := scene.NewNode("root").MustAdd(&fakeState{name: "r", size: 1})
			a := root.NewChild("a").MustAdd(&fakeState{name: "a", size: 1})
			a.NewChild("a1").MustAdd(&fakeState{name: "a1", size: 1})
			root.NewChild("b").MustAdd(&fakeState{name: "b", size: 1})

			rec := newRecorder(engine.StopAtNonForceMapping)
			eng.Execute(rec, root)
			Expect(rec.Events()).To(Equal([]string{
				"state:r", "state:a", "state:a1", "~state:a1", "~state:a",
				"state:b", "~state:b", "~state:r",
			}))
		})
	})

	Describe("results", func() {
		var root *scene.Node

		BeforeEach(func() {
			root = scene.NewNode("root").MustAdd(
				&fakeState{name: "r", size: 1},
				&fakeForceField{name: "ff"},
			)
			root.NewChild("child").MustAdd(&fakeState{name: "c", size: 1})
		})

		It("prunes children and the rest of the node but still runs bottom-up", func() {
			rec := newRecorder(engine.StopAtNonForceMapping)
			rec.prune["r"] = true
			Expect(eng.Execute(rec, root)).To(Equal(engine.Completed))
			Expect(rec.Events()).To(Equal([]string{"state:r", "~state:r"}))
		})

		It("aborts without further callbacks", func() {
			rec := newRecorder(engine.StopAtNonForceMapping)
			rec.abortAt = "c"
			Expect(eng.Execute(rec, root)).To(Equal(engine.Aborted))
			Expect(rec.Events()).To(Equal([]string{"state:r", "ff:ff", "state:c"}))
		})
	})

	Describe("mapping boundaries", func() {
		var (
			root   *scene.Node
			child  *scene.Node
			parent *fakeState
			mapped *fakeState
			m      *fakeMapping
		)

		BeforeEach(func() {
			parent = &fakeState{name: "parent", size: 3}
			mapped = &fakeState{name: "mapped", size: 2}
			m = &fakeMapping{name: "map", from: parent, to: mapped}
			root = scene.NewNode("root").MustAdd(parent)
			child = root.NewChild("child").MustAdd(mapped, m)
			child.NewChild("leaf").MustAdd(&fakeState{name: "leaf", size: 1})
		})

		It("crosses a force mapping with the default policy", func() {
			m.forces = true
			rec := newRecorder(engine.StopAtNonForceMapping)
			eng.Execute(rec, root)
			Expect(rec.Events()).To(Equal([]string{
				"state:parent", "map:map", "mstate:mapped",
				"state:leaf", "~state:leaf",
				"~mstate:mapped", "~map:map", "~state:parent",
			}))
		})

		It("stops at a non-force mapping and skips its bottom-up callbacks", func() {
			rec := newRecorder(engine.StopAtNonForceMapping)
			eng.Execute(rec, root)
			Expect(rec.Events()).To(Equal([]string{"state:parent", "~state:parent"}))
		})

		It("crosses every mapping when asked to", func() {
			rec := newRecorder(engine.CrossAllMappings)
			eng.Execute(rec, root)
			Expect(rec.Events()).To(ContainElements("map:map", "state:leaf", "~map:map"))
		})

		It("stops at matrix-free mappings under the matrix policy", func() {
			m.forces = true
			rec := newRecorder(engine.StopAtNonMatrixMapping)
			eng.Execute(rec, root)
			Expect(rec.Events()).NotTo(ContainElement("map:map"))

			m.matrices = true
			rec = newRecorder(engine.StopAtNonMatrixMapping)
			eng.Execute(rec, root)
			Expect(rec.Events()).To(ContainElement("map:map"))
		})

		DescribeTable("policy decisions",
			func(p engine.MappingPolicy, forces, matrices, want bool) {
				m.forces, m.matrices = forces, matrices
				Expect(p.Stops(m)).To(Equal(want))
			},
			Entry("non-force on force mapping", engine.StopAtNonForceMapping, true, false, false),
			Entry("non-force on geometric mapping", engine.StopAtNonForceMapping, false, false, true),
			Entry("non-matrix on force-only mapping", engine.StopAtNonMatrixMapping, true, false, true),
			Entry("non-matrix on matrix mapping", engine.StopAtNonMatrixMapping, true, true, false),
			Entry("cross-all", engine.CrossAllMappings, false, false, false),
			Entry("stop-at-all", engine.StopAtAllMappings, true, true, true),
		)
	})

	Describe("child order", func() {
		It("reverses the children of a 3-child node on request", func() {
			root := scene.NewNode("root")
			for _, name := range []string{"first", "second", "third"} {
				root.NewChild(name).MustAdd(&fakeState{name: name, size: 1})
			}

			rec := newRecorder(engine.StopAtNonForceMapping)
			rec.reverse = true
			eng.Execute(rec, root)
			Expect(rec.Events()).To(Equal([]string{
				"state:third", "~state:third",
				"state:second", "~state:second",
				"state:first", "~state:first",
			}))
		})
	})

	Describe("sleeping nodes", func() {
		It("skips a sleeping subtree", func() {
			root := scene.NewNode("root").MustAdd(&fakeState{name: "r", size: 1})
			nap := root.NewChild("nap").MustAdd(&fakeState{name: "n", size: 1})
			nap.SetSleeping(true)

			rec := newRecorder(engine.StopAtNonForceMapping)
			eng.Execute(rec, root)
			Expect(rec.Events()).To(Equal([]string{"state:r", "~state:r"}))
		})
	})

	Describe("reductions", func() {
		buildWide := func() (*scene.Node, float64) {
			root := scene.NewNode("root").MustAdd(&fakeState{name: "root", size: 2})
			want := 2.0
			for i := 0; i < 8; i++ {
				c := root.NewChild(fmt.Sprintf("c%d", i)).MustAdd(&fakeState{name: fmt.Sprintf("c%d", i), size: i + 1})
				want += float64(i + 1)
				for j := 0; j < 4; j++ {
					size := 10*i + j
					c.NewChild(fmt.Sprintf("c%d.%d", i, j)).MustAdd(&fakeState{name: fmt.Sprintf("c%d.%d", i, j), size: size})
					want += float64(size)
				}
			}
			return root, want
		}

		It("folds children into the parent", func() {
			root, want := buildWide()
			op := &sizeSum{Base: engine.Base{OpName: "size", Safe: true}}
			eng.Execute(op, root)
			Expect(op.total).To(Equal(want))
		})

		It("gives the same result serially and in parallel", func() {
			root, want := buildWide()
			serial := &sizeSum{Base: engine.Base{OpName: "size", Safe: true}}
			parallel := &sizeSum{Base: engine.Base{OpName: "size", Safe: true}}

			engine.New().Execute(serial, root)
			engine.New(engine.WithWorkers(4)).Execute(parallel, root)
			Expect(serial.total).To(Equal(want))
			Expect(parallel.total).To(Equal(serial.total))
		})
	})

	Describe("parallel dispatch", func() {
		It("replays mapping leaves on the parent in child order", func() {
			parent := &fakeState{name: "parent", size: 1}
			root := scene.NewNode("root").MustAdd(parent)
			var want []string
			for i := 0; i < 16; i++ {
				name := fmt.Sprintf("m%d", i)
				mapped := &fakeState{name: name, size: 1}
				root.NewChild(name).MustAdd(mapped, &fakeMapping{name: name, from: parent, to: mapped, forces: true})
				want = append(want, "~map:"+name)
			}

			rec := newRecorder(engine.StopAtNonForceMapping)
			rec.Safe = true
			Expect(engine.New(engine.WithWorkers(4)).Execute(rec, root)).To(Equal(engine.Completed))

			var leaves []string
			for _, e := range rec.Events() {
				if strings.HasPrefix(e, "~map:") {
					leaves = append(leaves, e)
				}
			}
			Expect(leaves).To(Equal(want))
			Expect(rec.Events()[len(rec.Events())-1]).To(Equal("~state:parent"))
		})

		It("keeps siblings coupled by an interaction on one goroutine", func() {
			root := scene.NewNode("root")
			var states []scene.MechanicalState
			for i := 0; i < 6; i++ {
				s := &fakeState{name: fmt.Sprintf("s%d", i), size: 1}
				states = append(states, s)
				root.NewChild(s.name).MustAdd(s)
			}
			root.Children()[0].MustAdd(&fakeInteraction{
				fakeForceField: fakeForceField{name: "spring"},
				states:         []scene.MechanicalState{states[0], states[5]},
			})

			op := &overlap{Base: engine.Base{OpName: "overlap", Safe: true}}
			engine.New(engine.WithWorkers(4)).Execute(op, root)
			Expect(op.peak.Load()).To(BeEquivalentTo(1))
		})
	})

	Describe("hooks", func() {
		It("sees every node in both phases", func() {
			root := scene.NewNode("root").MustAdd(&fakeState{name: "r", size: 1})
			root.NewChild("a")
			root.NewChild("b")

			h := &countingHook{}
			e := engine.New(engine.WithHook(h))
			Expect(e.Execute(newRecorder(engine.StopAtNonForceMapping), root)).To(Equal(engine.Completed))
			Expect(h.began).To(Equal(1))
			Expect(h.topDown).To(Equal(3))
			Expect(h.bottomUp).To(Equal(3))
			Expect(h.ended).To(Equal(engine.Completed))
		})

		It("reports aborted traversals", func() {
			root := scene.NewNode("root").MustAdd(&fakeState{name: "r", size: 1})
			h := &countingHook{}
			rec := newRecorder(engine.StopAtNonForceMapping)
			rec.abortAt = "r"
			engine.New(engine.WithHook(h)).Execute(rec, root)
			Expect(h.ended).To(Equal(engine.Aborted))
		})
	})

	Describe("diagnostics", func() {
		It("routes warnings from callbacks to the sink", func() {
			diag := &engine.RecordingDiagnostics{}
			e := engine.New(engine.WithDiagnostics(diag))
			root := scene.NewNode("root").MustAdd(&fakeState{name: "r", size: 1})
			e.Execute(warner{}, root)

			Expect(diag.Warnings()).To(HaveLen(1))
			Expect(diag.Warnings()[0].Object).To(Equal("r"))
			Expect(diag.Warnings()[0].Msg).To(Equal("size 1"))
		})
	})
})

type warner struct{ engine.Base }

func (warner) VisitState(ctx *engine.Context, s scene.MechanicalState) engine.Result {
	ctx.Warn(s, "size %d", s.Size())
	return engine.Continue
}
