// Package metrics reduces a trajectory to scalar summary metrics.
package metrics

import (
	"errors"

	"github.com/san-kum/canosim/internal/integrate"
)

// Metric names, in reporting order.
const (
	PeakValue = "peak_value"
	PeakTime  = "peak_time"
	MeanValue = "mean_value"
)

// Names returns the metric reporting order.
func Names() []string {
	return []string{PeakValue, PeakTime, MeanValue}
}

var ErrEmptyTrajectory = errors.New("empty trajectory")

// Result holds the summary metrics for one trajectory.
type Result struct {
	PeakValue float64
	PeakTime  float64
	MeanValue float64
}

// Values returns the result keyed by metric name.
func (r Result) Values() map[string]float64 {
	return map[string]float64{
		PeakValue: r.PeakValue,
		PeakTime:  r.PeakTime,
		MeanValue: r.MeanValue,
	}
}

// Observer accumulates a metric over trajectory points.
type Observer interface {
	Name() string
	Observe(t, y float64)
	Value() float64
	Reset()
}

// Peak tracks the maximum state value. Ties keep the earliest time.
type Peak struct {
	value float64
	time  float64
	seen  bool
}

func NewPeak() *Peak { return &Peak{} }

func (p *Peak) Name() string { return PeakValue }

func (p *Peak) Observe(t, y float64) {
	if !p.seen || y > p.value {
		p.value = y
		p.time = t
		p.seen = true
	}
}

func (p *Peak) Value() float64 { return p.value }
func (p *Peak) Time() float64  { return p.time }

func (p *Peak) Reset() {
	p.value = 0
	p.time = 0
	p.seen = false
}

// Mean is the unweighted arithmetic mean over all reported points,
// matching averaging over a uniform yearly grid.
type Mean struct {
	sum     float64
	samples int
}

func NewMean() *Mean { return &Mean{} }

func (m *Mean) Name() string { return MeanValue }

func (m *Mean) Observe(t, y float64) {
	m.sum += y
	m.samples++
}

func (m *Mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Mean) Reset() {
	m.sum = 0
	m.samples = 0
}

// Extract runs the standard observers over a trajectory.
func Extract(tr *integrate.Trajectory) (Result, error) {
	if tr == nil || tr.Len() == 0 {
		return Result{}, ErrEmptyTrajectory
	}

	peak := NewPeak()
	mean := NewMean()
	for i := 0; i < tr.Len(); i++ {
		t, y := tr.At(i)
		peak.Observe(t, y)
		mean.Observe(t, y)
	}

	return Result{
		PeakValue: peak.Value(),
		PeakTime:  peak.Time(),
		MeanValue: mean.Value(),
	}, nil
}
