package storage

import (
	"encoding/json"
	"os"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Columns []string    `json:"columns"`
	Times   []float64   `json:"times"`
	Rows    [][]float64 `json:"rows"`
}

// ExportJSON writes a stored run's metadata and telemetry as one document.
func (s *Store) ExportJSON(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tel, err := s.LoadTelemetry(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Run:     *meta,
		Columns: tel.Columns,
		Times:   tel.Times,
		Rows:    tel.Rows,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
