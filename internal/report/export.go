// Package report renders and exports analysis results for terminal
// and downstream consumers.
package report

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/canosim/internal/integrate"
	"github.com/san-kum/canosim/internal/metrics"
	"github.com/san-kum/canosim/internal/sobol"
)

// TrajectoryExport mirrors the trajectory table.
type TrajectoryExport struct {
	InitialState float64   `json:"initialState"`
	Times        []float64 `json:"times"`
	States       []float64 `json:"states"`
	PeakValue    float64   `json:"peakValue"`
	PeakTime     float64   `json:"peakTime"`
	MeanValue    float64   `json:"meanValue"`
}

// IndexExport is one row of the Sobol index table.
type IndexExport struct {
	Metric          string  `json:"metric"`
	Parameter       string  `json:"parameter"`
	FirstOrder      float64 `json:"firstOrder"`
	FirstOrderCILow float64 `json:"firstOrderCILow"`
	FirstOrderCIHi  float64 `json:"firstOrderCIHigh"`
	Total           float64 `json:"total"`
	TotalCILow      float64 `json:"totalCILow"`
	TotalCIHi       float64 `json:"totalCIHigh"`
	NotComputable   bool    `json:"notComputable"`
	FailedRows      int     `json:"failedRows"`
}

// RowExport is one row of the per-row metrics table.
type RowExport struct {
	Row    int                `json:"row"`
	Block  string             `json:"block"`
	OK     bool               `json:"ok"`
	Values map[string]float64 `json:"values,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// SensitivityExport mirrors the full analysis output: the design shape,
// the per-row metrics table, and the index table.
type SensitivityExport struct {
	Samples    int           `json:"samples"`
	DesignRows int           `json:"designRows"`
	Params     []string      `json:"params"`
	Metrics    []string      `json:"metrics"`
	Rows       []RowExport   `json:"rows"`
	Indices    []IndexExport `json:"indices"`
}

func NewTrajectoryExport(initial float64, tr *integrate.Trajectory, result metrics.Result) *TrajectoryExport {
	return &TrajectoryExport{
		InitialState: initial,
		Times:        tr.Times,
		States:       tr.States,
		PeakValue:    result.PeakValue,
		PeakTime:     result.PeakTime,
		MeanValue:    result.MeanValue,
	}
}

func NewSensitivityExport(r *sobol.Report) *SensitivityExport {
	out := &SensitivityExport{
		Samples:    r.SampleCount,
		DesignRows: len(r.Rows),
		Params:     r.Params,
		Metrics:    r.Metrics,
	}
	for _, row := range r.Rows {
		out.Rows = append(out.Rows, RowExport{
			Row:    row.Index,
			Block:  row.Block,
			OK:     row.OK,
			Values: row.Values,
			Error:  row.Err,
		})
	}
	for _, m := range r.Metrics {
		for _, p := range r.Params {
			idx := r.Indices[m][p]
			out.Indices = append(out.Indices, IndexExport{
				Metric:          m,
				Parameter:       p,
				FirstOrder:      idx.FirstOrder,
				FirstOrderCILow: idx.FirstOrderCI.Low,
				FirstOrderCIHi:  idx.FirstOrderCI.High,
				Total:           idx.Total,
				TotalCILow:      idx.TotalCI.Low,
				TotalCIHi:       idx.TotalCI.High,
				NotComputable:   idx.NotComputable,
				FailedRows:      r.FailedRows[m],
			})
		}
	}
	return out
}

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func WriteJSONFile(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, v)
}
