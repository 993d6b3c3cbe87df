package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/mechsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Run describes how a result was produced.
type Run struct {
	Scene      string
	Integrator string
	Dt         float64
	Duration   float64
	Seed       int64
	Params     map[string]float64
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Scene       string             `json:"scene"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Params      map[string]float64 `json:"params,omitempty"`
	Steps       int                `json:"steps"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
	Errors      []string           `json:"errors,omitempty"`
}

func (s *Store) Save(run Run, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", run.Scene, uuid.NewString())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Scene:       run.Scene,
		Timestamp:   time.Now().UTC(),
		Seed:        run.Seed,
		Dt:          run.Dt,
		Duration:    run.Duration,
		Integrator:  run.Integrator,
		Params:      run.Params,
		Steps:       result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeFrames(filepath.Join(runDir, framesFile), result.Frames); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func writeFrames(path string, frames []sim.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(frames) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"step", "time", "kinetic", "potential"}
	for i := range frames[0].Positions {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := range frames[0].Velocities {
		header = append(header, fmt.Sprintf("v%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, fr := range frames {
		row := []string{
			strconv.Itoa(fr.Step),
			formatFloat(fr.Time),
			formatFloat(fr.Kinetic),
			formatFloat(fr.Potential),
		}
		for _, v := range fr.Positions {
			row = append(row, formatFloat(v))
		}
		for _, v := range fr.Velocities {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadFrames reads back the trajectory saved with a run.
func (s *Store) LoadFrames(runID string) ([]sim.Frame, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Frame{}, nil
	}

	header := records[0]
	frames := make([]sim.Frame, 0, len(records)-1)
	for line, record := range records[1:] {
		fr, err := parseFrame(header, record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, line+2, err)
		}
		frames = append(frames, fr)
	}
	return frames, nil
}

func parseFrame(header, record []string) (sim.Frame, error) {
	var fr sim.Frame
	for j, col := range header {
		if col == "step" {
			step, err := strconv.Atoi(record[j])
			if err != nil {
				return fr, err
			}
			fr.Step = step
			continue
		}
		val, err := strconv.ParseFloat(record[j], 64)
		if err != nil {
			return fr, err
		}
		switch {
		case col == "time":
			fr.Time = val
		case col == "kinetic":
			fr.Kinetic = val
		case col == "potential":
			fr.Potential = val
		case strings.HasPrefix(col, "x"):
			fr.Positions = append(fr.Positions, val)
		case strings.HasPrefix(col, "v"):
			fr.Velocities = append(fr.Velocities, val)
		}
	}
	return fr, nil
}
