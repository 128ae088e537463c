package sobol

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/san-kum/canosim/internal/sample"
)

// RowRunner evaluates one parameter set and returns its metric values
// keyed by metric name. Runs must be pure functions of their input:
// the engine calls them concurrently.
type RowRunner func(values map[string]float64) (map[string]float64, error)

// Progress reports batch completion; sent on the optional progress
// channel after each finished row.
type Progress struct {
	Done  int
	Total int
}

// Options configure an analysis.
type Options struct {
	Metrics   []string        // output metric names, required
	Bootstrap int             // bootstrap resamples; 0 means the sample count
	Workers   int             // concurrent rows; 0 means NumCPU
	Seed      int64           // bootstrap resampling seed
	Progress  chan<- Progress // optional; sends never block
}

// Interval is a percentile confidence interval.
type Interval struct {
	Low  float64
	High float64
}

// Index holds the sensitivity indices for one (metric, parameter)
// pair. NotComputable marks a degenerate pooled variance; numeric
// fields are meaningless in that case.
type Index struct {
	FirstOrder    float64
	FirstOrderCI  Interval
	Total         float64
	TotalCI       Interval
	NotComputable bool
}

// RowResult records the outcome of one design row.
type RowResult struct {
	Index  int
	Block  string
	Values map[string]float64
	Err    string
	OK     bool
}

// Report is the full analysis output.
type Report struct {
	SampleCount int
	Params      []string
	Metrics     []string
	Rows        []RowResult
	FailedRows  map[string]int              // failed design rows per metric
	Indices     map[string]map[string]Index // metric -> parameter -> indices
}

// Engine drives the design evaluation and variance decomposition.
type Engine struct {
	design *Design
	opts   Options
}

// New validates the base matrices and options. All fatal setup errors
// surface here, before any integration work begins.
func New(a, b *sample.Matrix, opts Options) (*Engine, error) {
	design, err := NewDesign(a, b)
	if err != nil {
		return nil, err
	}
	if len(opts.Metrics) == 0 {
		return nil, fmt.Errorf("no output metrics configured")
	}
	if opts.Bootstrap < 0 {
		return nil, fmt.Errorf("bootstrap count must be non-negative, got %d", opts.Bootstrap)
	}
	if opts.Bootstrap == 0 {
		opts.Bootstrap = design.SampleCount()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Engine{design: design, opts: opts}, nil
}

// Design exposes the evaluation plan, e.g. for persisting alongside
// results.
func (e *Engine) Design() *Design { return e.design }

// Run evaluates every design row on a worker pool and decomposes the
// output variance. A failing row is recorded and excluded from the
// estimator sums; it never aborts the batch.
func (e *Engine) Run(ctx context.Context, runner RowRunner) (*Report, error) {
	rows := e.design.Rows()
	results := make([]RowResult, len(rows))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var done int64

	for w := 0; w < e.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.runRow(rows[idx], runner)
				n := atomic.AddInt64(&done, 1)
				if e.opts.Progress != nil {
					select {
					case e.opts.Progress <- Progress{Done: int(n), Total: len(rows)}:
					default:
					}
				}
			}
		}()
	}

	cancelled := false
dispatch:
	for idx := range rows {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}

	report := &Report{
		SampleCount: e.design.SampleCount(),
		Params:      e.design.Params(),
		Metrics:     append([]string(nil), e.opts.Metrics...),
		Rows:        results,
		FailedRows:  make(map[string]int, len(e.opts.Metrics)),
		Indices:     make(map[string]map[string]Index, len(e.opts.Metrics)),
	}

	failed := 0
	for i := range results {
		if !results[i].OK {
			failed++
		}
	}
	for _, m := range e.opts.Metrics {
		report.FailedRows[m] = failed
	}

	e.computeIndices(report)
	return report, nil
}

func (e *Engine) runRow(row Row, runner RowRunner) RowResult {
	out := RowResult{Index: row.Index, Block: row.Block}

	values, err := runner(row.Values)
	if err != nil {
		out.Err = err.Error()
		return out
	}
	for _, m := range e.opts.Metrics {
		if _, ok := values[m]; !ok {
			out.Err = fmt.Sprintf("runner returned no value for metric %q", m)
			return out
		}
	}
	out.Values = values
	out.OK = true
	return out
}
