package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/mechsim/internal/sim"
)

type ExportData struct {
	Run         Run                `json:"run"`
	Steps       int                `json:"steps"`
	EnergyDrift float64            `json:"energy_drift"`
	Frames      []sim.Frame        `json:"frames"`
	Metrics     map[string]float64 `json:"metrics"`
}

// ExportJSON writes run and result as one indented JSON document.
func ExportJSON(w io.Writer, run Run, result *sim.Result) error {
	data := ExportData{
		Run:         run,
		Steps:       result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Frames:      result.Frames,
		Metrics:     result.Metrics,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSONFile(path string, run Run, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, run, result)
}
