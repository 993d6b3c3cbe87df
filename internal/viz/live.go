package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mechsim/internal/scene"
	"github.com/san-kum/mechsim/internal/sim"
	"github.com/san-kum/mechsim/internal/vecid"
)

const (
	width           = 72
	height          = 22
	historyCapacity = 600
)

// Body is the planar projection of one mechanical state: the first two
// coordinates of each point.
type Body struct {
	Path   string
	Mapped bool
	Points [][2]float64
}

// CollectBodies reads the current positions of every state under root.
func CollectBodies(root *scene.Node) []Body {
	var bodies []Body
	root.Walk(func(n *scene.Node) bool {
		st := n.MechanicalState()
		if st == nil {
			return true
		}
		x, dim := st.Vec(vecid.Position), st.Dim()
		b := Body{Path: n.Path(), Mapped: n.MechanicalMapping() != nil}
		for i := 0; i < st.Size() && (i+1)*dim <= len(x); i++ {
			p := [2]float64{x[i*dim], 0}
			if dim > 1 {
				p[1] = x[i*dim+1]
			}
			b.Points = append(b.Points, p)
		}
		bodies = append(bodies, b)
		return true
	})
	return bodies
}

// Snapshot is what the view replays when scrubbing.
type Snapshot struct {
	Step   int
	Time   float64
	Energy float64
	Bodies []Body
}

type TickMsg time.Time

// Model steps a simulator on a timer and draws its states.
type Model struct {
	sim       *sim.Simulator
	sceneName string
	dt        float64
	tick      time.Duration

	canvas   *Canvas
	view     Viewport
	theme    int
	running  bool
	showHelp bool

	history  []Snapshot
	playHead int
	energy   []float64
	err      error
}

// NewModel initialises s and records the starting frame. fps <= 0 means 30.
func NewModel(s *sim.Simulator, sceneName string, dt float64, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	s.Init()
	m := Model{
		sim:       s,
		sceneName: sceneName,
		dt:        dt,
		tick:      time.Second / time.Duration(fps),
		canvas:    NewCanvas(width, height),
		running:   true,
		history:   make([]Snapshot, 0, historyCapacity),
		energy:    make([]float64, 0, historyCapacity),
		playHead:  -1,
	}
	m.record(s.Frame(0))
	return m
}

func (m Model) Init() tea.Cmd { return m.nextTick() }

func (m Model) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running && m.err == nil
		case "s":
			if !m.running && m.playHead == -1 {
				m.advance()
			}
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.advance()
			} else {
				m.scrub(1)
			}
		}
		return m, m.nextTick()
	}
	return m, nil
}

// advance runs one simulator step. A failed step stops the view.
func (m *Model) advance() {
	last := m.history[len(m.history)-1]
	if err := m.sim.Step(last.Step, m.dt); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.record(m.sim.Frame(last.Step + 1))
}

func (m *Model) record(f sim.Frame) {
	snap := Snapshot{Step: f.Step, Time: f.Time, Energy: f.Energy(), Bodies: CollectBodies(m.sim.Root())}
	m.history = append(m.history, snap)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
	m.energy = append(m.energy, snap.Energy)
	if len(m.energy) > historyCapacity {
		m.energy = m.energy[1:]
	}
	for _, b := range snap.Bodies {
		m.view = m.view.Fit(b.Points)
	}
}

func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// Current returns the snapshot on screen.
func (m Model) Current() Snapshot {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead]
	}
	return m.history[len(m.history)-1]
}

func (m Model) Err() error { return m.err }

func (m Model) draw(snap Snapshot) {
	m.canvas.Clear()
	for _, b := range snap.Bodies {
		for _, p := range b.Points {
			x, y := m.view.Project(m.canvas, p[0], p[1])
			if b.Mapped {
				m.canvas.Set(x, y)
			} else {
				m.canvas.Blob(x, y)
			}
		}
	}
}

func (m Model) View() string {
	st := Themes[m.theme].styles()
	snap := m.Current()
	m.draw(snap)

	status := "RUNNING"
	switch {
	case m.err != nil:
		status = "FAILED"
	case m.playHead != -1:
		status = fmt.Sprintf("REPLAY (%.2fs)", snap.Time-m.history[len(m.history)-1].Time)
	case !m.running:
		status = "PAUSED"
	}

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.sceneName)) + "\n")
	s.WriteString(st.status.Render(status) + "\n\n")
	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("energy"))
		s.WriteString(st.graph.Render(chart) + "\n\n")
	}
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.3fs", snap.Time))
	row("step", fmt.Sprintf("%d", snap.Step))
	row("energy", fmt.Sprintf("%.4f", snap.Energy))
	row("bodies", fmt.Sprintf("%d", len(snap.Bodies)))
	row("theme", Themes[m.theme].Name)
	if m.err != nil {
		s.WriteString("\n" + st.err.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.help.Render("SP:pause S:step [ ]:scrub T:theme ?:help Q:quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(m.canvas.String()), st.stats.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

const helpText = `  space  pause or resume
  s      single step while paused
  [ ]    rewind or forward through history
  t      cycle themes
  q      quit`

// Run shows m full screen until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
