// Package storage keeps finished runs on disk: one directory per run with
// metadata.json, the resolved config.yaml and a telemetry.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/experiment"
	"github.com/san-kum/rotorbridge/internal/msgs"
)

const (
	metadataFile  = "metadata.json"
	configFile    = "config.yaml"
	telemetryFile = "telemetry.csv"
)

// Columns is the telemetry.csv header after the leading "time" column.
var Columns = func() []string {
	cols := []string{
		"x", "y", "z", "vx", "vy", "vz",
		"roll", "pitch", "yaw",
		"thrust", "tx", "ty", "tz",
		"voltage", "current", "charge",
		"trigger", "applied", "on",
	}
	for i := 0; i < msgs.NumMotors; i++ {
		cols = append(cols, fmt.Sprintf("f%d", i))
	}
	return cols
}()

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Robot         string             `json:"robot"`
	Timestamp     time.Time          `json:"timestamp"`
	StepSize      float64            `json:"step_size"`
	Duration      float64            `json:"duration"`
	Integrator    string             `json:"integrator"`
	Controller    string             `json:"controller"`
	ControlPeriod float64            `json:"control_period"`
	Tolerance     float64            `json:"tolerance"`
	Delay         float64            `json:"delay"`
	Steps         int                `json:"steps"`
	Triggers      int                `json:"triggers"`
	Applied       int                `json:"applied"`
	Commands      int                `json:"commands"`
	WallTime      float64            `json:"wall_time"`
	Metrics       map[string]float64 `json:"metrics"`
}

// Save writes a finished run and returns its ID.
func (s *Store) Save(name string, cfg *config.Config, result *experiment.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	period := 0.0
	if cfg.Bridge.ControlRate > 0 {
		period = 1 / cfg.Bridge.ControlRate
	} else if cfg.Bridge.ControlPeriod > 0 {
		period = cfg.Bridge.ControlPeriod
	}
	meta := RunMetadata{
		ID:            runID,
		Name:          name,
		Robot:         cfg.Bridge.RobotNamespace,
		Timestamp:     now,
		StepSize:      cfg.World.StepSize,
		Duration:      cfg.World.Duration,
		Integrator:    cfg.World.Integrator,
		Controller:    cfg.Controller.Type,
		ControlPeriod: period,
		Tolerance:     cfg.Bridge.ControlTolerance,
		Delay:         cfg.Bridge.ControlDelay,
		Steps:         result.StepsTaken,
		Triggers:      result.Triggers,
		Applied:       result.Applied,
		Commands:      result.Commands,
		WallTime:      result.WallTime.Seconds(),
		Metrics:       result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeTelemetry(filepath.Join(runDir, telemetryFile), result.Samples); err != nil {
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

func writeTelemetry(path string, samples []experiment.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, Columns...)); err != nil {
		return err
	}
	for _, smp := range samples {
		if err := w.Write(row(smp)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func row(s experiment.Sample) []string {
	vals := []float64{
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		s.Roll, s.Pitch, s.Yaw,
		s.Thrust, s.Torque.X, s.Torque.Y, s.Torque.Z,
		s.Voltage, s.Current, s.Charge,
		flag(s.Trigger), flag(s.Applied), flag(s.On),
	}
	for i := 0; i < msgs.NumMotors; i++ {
		f := 0.0
		if i < len(s.Frequency) {
			f = s.Frequency[i]
		}
		vals = append(vals, f)
	}

	out := make([]string, 0, len(vals)+1)
	out = append(out, strconv.FormatFloat(s.Time.Seconds(), 'f', 6, 64))
	for _, v := range vals {
		out = append(out, strconv.FormatFloat(v, 'g', 8, 64))
	}
	return out
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// List returns every readable run, oldest first.
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
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadConfig reads back the configuration a run was flown with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

// Telemetry is telemetry.csv parsed into columns.
type Telemetry struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns one named series, or nil if there is no such column.
func (t *Telemetry) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if idx < len(r) {
			out = append(out, r[idx])
		}
	}
	return out
}

func (s *Store) LoadTelemetry(runID string) (*Telemetry, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, telemetryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	tel := &Telemetry{}
	if len(records) == 0 {
		return tel, nil
	}
	tel.Columns = records[0][1:]

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		vals := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				v = 0
			}
			vals = append(vals, v)
		}
		tel.Times = append(tel.Times, t)
		tel.Rows = append(tel.Rows, vals)
	}
	return tel, nil
}
