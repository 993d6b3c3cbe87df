package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/mechsim/internal/sim"
	"github.com/san-kum/mechsim/internal/storage"
)

const maxPlots = 6

func resultFromFrames(meta *storage.RunMetadata, frames []sim.Frame) *sim.Result {
	return &sim.Result{
		Frames:      frames,
		Metrics:     meta.Metrics,
		EnergyDrift: meta.EnergyDrift,
		StepsTaken:  meta.Steps,
	}
}

// plotSeries extracts the named series from frames: the energy terms, or
// up to maxPlots position or velocity coordinates.
func plotSeries(frames []sim.Frame, name string) (map[string][]float64, []string, error) {
	out := make(map[string][]float64)
	var order []string
	add := func(label string, v float64) {
		if _, ok := out[label]; !ok {
			order = append(order, label)
		}
		out[label] = append(out[label], v)
	}

	for _, f := range frames {
		switch name {
		case "energy":
			add("total energy", f.Energy())
			add("kinetic", f.Kinetic)
			add("potential", f.Potential)
		case "x", "v":
			coords := f.Positions
			if name == "v" {
				coords = f.Velocities
			}
			for i := 0; i < len(coords) && i < maxPlots; i++ {
				add(fmt.Sprintf("%s%d vs time", name, i), coords[i])
			}
		default:
			return nil, nil, fmt.Errorf("unknown series: %s (energy, x, v)", name)
		}
	}
	return out, order, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no data to plot")
	}

	data, order, err := plotSeries(frames, series)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s (%s)\n", meta.Scene, meta.Integrator)
	fmt.Printf("samples: %d\n\n", len(frames))

	for _, label := range order {
		graph := asciigraph.Plot(data[label],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(label),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}
