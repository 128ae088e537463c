// Package storage persists analysis runs as flat files: one directory
// per run holding metadata.json and the output tables as CSV.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/canosim/internal/integrate"
	"github.com/san-kum/canosim/internal/metrics"
	"github.com/san-kum/canosim/internal/report"
	"github.com/san-kum/canosim/internal/sobol"
)

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
	ID           string    `json:"id"`
	Kind         string    `json:"kind"` // "run" or "sensitivity"
	Timestamp    time.Time `json:"timestamp"`
	Seed         int64     `json:"seed"`
	InitialState float64   `json:"initialState"`
	Samples      int       `json:"samples,omitempty"`
	Bootstrap    int       `json:"bootstrap,omitempty"`
	FailedRows   int       `json:"failedRows,omitempty"`
	Metrics      *Summary  `json:"metrics,omitempty"`
}

type Summary struct {
	PeakValue float64 `json:"peakValue"`
	PeakTime  float64 `json:"peakTime"`
	MeanValue float64 `json:"meanValue"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 12, 64)
}

// SaveRun persists a nominal trajectory run.
func (s *Store) SaveRun(seed int64, initialState float64, tr *integrate.Trajectory, result metrics.Result) (string, error) {
	runID := fmt.Sprintf("run_%d", time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:           runID,
		Kind:         "run",
		Timestamp:    time.Now(),
		Seed:         seed,
		InitialState: initialState,
		Metrics: &Summary{
			PeakValue: result.PeakValue,
			PeakTime:  result.PeakTime,
			MeanValue: result.MeanValue,
		},
	}
	if err := s.writeMetadata(runDir, meta); err != nil {
		return "", err
	}
	if err := s.writeTrajectory(runDir, tr); err != nil {
		return "", err
	}
	return runID, nil
}

// SaveSensitivity persists a full analysis: the per-row metrics table,
// the Sobol index table, and an export.json holding both for JSON
// consumers.
func (s *Store) SaveSensitivity(seed int64, initialState float64, rep *sobol.Report) (string, error) {
	runID := fmt.Sprintf("sensitivity_%d", time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	failed := 0
	for _, m := range rep.Metrics {
		if rep.FailedRows[m] > failed {
			failed = rep.FailedRows[m]
		}
	}
	meta := RunMetadata{
		ID:           runID,
		Kind:         "sensitivity",
		Timestamp:    time.Now(),
		Seed:         seed,
		InitialState: initialState,
		Samples:      rep.SampleCount,
		FailedRows:   failed,
	}
	if err := s.writeMetadata(runDir, meta); err != nil {
		return "", err
	}
	if err := s.writeMetricsTable(runDir, rep); err != nil {
		return "", err
	}
	if err := s.writeIndexTable(runDir, rep); err != nil {
		return "", err
	}
	if err := report.WriteJSONFile(filepath.Join(runDir, "export.json"), report.NewSensitivityExport(rep)); err != nil {
		return "", err
	}
	return runID, nil
}

// LoadSensitivityExport reads back the export written by
// SaveSensitivity.
func (s *Store) LoadSensitivityExport(runID string) (*report.SensitivityExport, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "export.json"))
	if err != nil {
		return nil, err
	}
	var exp report.SensitivityExport
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

func (s *Store) writeMetadata(runDir string, meta RunMetadata) error {
	file, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (s *Store) writeTrajectory(runDir string, tr *integrate.Trajectory) error {
	file, err := os.Create(filepath.Join(runDir, "trajectory.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"time", "state"}); err != nil {
		return err
	}
	for i := 0; i < tr.Len(); i++ {
		t, y := tr.At(i)
		if err := w.Write([]string{formatFloat(t), formatFloat(y)}); err != nil {
			return err
		}
	}
	return w.Error()
}

func (s *Store) writeMetricsTable(runDir string, rep *sobol.Report) error {
	file, err := os.Create(filepath.Join(runDir, "metrics.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"row", "block", "ok"}
	header = append(header, rep.Metrics...)
	header = append(header, "error")
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rep.Rows {
		rec := []string{strconv.Itoa(row.Index), row.Block, strconv.FormatBool(row.OK)}
		for _, m := range rep.Metrics {
			if row.OK {
				rec = append(rec, formatFloat(row.Values[m]))
			} else {
				rec = append(rec, "")
			}
		}
		rec = append(rec, row.Err)
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

func (s *Store) writeIndexTable(runDir string, rep *sobol.Report) error {
	file, err := os.Create(filepath.Join(runDir, "indices.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"metric", "parameter", "first_order", "first_order_ci_low",
		"first_order_ci_high", "total", "total_ci_low", "total_ci_high",
		"not_computable", "failed_rows",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, m := range rep.Metrics {
		for _, p := range rep.Params {
			idx := rep.Indices[m][p]
			rec := []string{m, p}
			if idx.NotComputable {
				rec = append(rec, "", "", "", "", "", "")
			} else {
				rec = append(rec,
					formatFloat(idx.FirstOrder),
					formatFloat(idx.FirstOrderCI.Low),
					formatFloat(idx.FirstOrderCI.High),
					formatFloat(idx.Total),
					formatFloat(idx.TotalCI.Low),
					formatFloat(idx.TotalCI.High),
				)
			}
			rec = append(rec,
				strconv.FormatBool(idx.NotComputable),
				strconv.Itoa(rep.FailedRows[m]),
			)
			if err := w.Write(rec); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

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
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads back a saved nominal trajectory.
func (s *Store) LoadTrajectory(runID string) (*integrate.Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &integrate.Trajectory{}
	for i := 1; i < len(records); i++ {
		if len(records[i]) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(records[i][0], 64)
		if err != nil {
			continue
		}
		y, err := strconv.ParseFloat(records[i][1], 64)
		if err != nil {
			continue
		}
		tr.Times = append(tr.Times, t)
		tr.States = append(tr.States, y)
	}
	return tr, nil
}
