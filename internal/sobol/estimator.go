package sobol

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// pairVectors holds positionally aligned metric values for one
// parameter's estimator: rows where the A, B and C_p evaluations all
// succeeded (paired deletion keeps the three vectors aligned).
type pairVectors struct {
	yA []float64
	yB []float64
	yC []float64
}

// computeIndices fills the report's index table. Pairs are independent
// once the metric vectors exist, so they run concurrently.
func (e *Engine) computeIndices(report *Report) {
	params := report.Params
	names := report.Metrics
	for _, m := range names {
		report.Indices[m] = make(map[string]Index, len(params))
	}

	out := make([]Index, len(names)*len(params))
	var wg sync.WaitGroup
	for mi, m := range names {
		for pi, p := range params {
			wg.Add(1)
			go func(slot int, metric, param string) {
				defer wg.Done()
				vec := e.gatherPair(report.Rows, metric, param)
				seed := e.opts.Seed + int64(slot+1)*7919
				out[slot] = estimateIndex(vec, e.opts.Bootstrap, seed)
			}(mi*len(params)+pi, m, p)
		}
	}
	wg.Wait()

	for mi, m := range names {
		for pi, p := range params {
			report.Indices[m][p] = out[mi*len(params)+pi]
		}
	}
}

func (e *Engine) gatherPair(rows []RowResult, metric, param string) pairVectors {
	n := e.design.SampleCount()
	aOff := e.design.blockOffset(BlockA)
	bOff := e.design.blockOffset(BlockB)
	cOff := e.design.blockOffset(param)

	var v pairVectors
	for i := 0; i < n; i++ {
		ra, rb, rc := rows[aOff+i], rows[bOff+i], rows[cOff+i]
		if !ra.OK || !rb.OK || !rc.OK {
			continue
		}
		v.yA = append(v.yA, ra.Values[metric])
		v.yB = append(v.yB, rb.Values[metric])
		v.yC = append(v.yC, rc.Values[metric])
	}
	return v
}

func estimateIndex(v pairVectors, bootstrap int, seed int64) Index {
	s1, st, ok := pointEstimate(v.yA, v.yB, v.yC, nil)
	if !ok {
		return Index{NotComputable: true}
	}
	idx := Index{FirstOrder: s1, Total: st}

	rng := rand.New(rand.NewSource(seed))
	m := len(v.yA)
	pick := make([]int, m)
	s1s := make([]float64, 0, bootstrap)
	sts := make([]float64, 0, bootstrap)
	for b := 0; b < bootstrap; b++ {
		for j := range pick {
			pick[j] = rng.Intn(m)
		}
		bs1, bst, bok := pointEstimate(v.yA, v.yB, v.yC, pick)
		if bok {
			s1s = append(s1s, bs1)
			sts = append(sts, bst)
		}
	}

	idx.FirstOrderCI = percentileInterval(s1s, s1)
	idx.TotalCI = percentileInterval(sts, st)
	return idx
}

// pointEstimate computes the Saltelli first-order and total estimator
// pair over the aligned vectors. pick selects resampled row positions
// (nil means all rows in order). Variance is pooled from the A and B
// samples; a degenerate pooled variance makes the pair not computable.
func pointEstimate(yA, yB, yC []float64, pick []int) (s1, st float64, ok bool) {
	m := len(yA)
	if pick != nil {
		m = len(pick)
	}
	if m < 2 {
		return 0, 0, false
	}
	at := func(s []float64, j int) float64 {
		if pick == nil {
			return s[j]
		}
		return s[pick[j]]
	}

	sum := 0.0
	for j := 0; j < m; j++ {
		sum += at(yA, j) + at(yB, j)
	}
	mean := sum / float64(2*m)

	varSum := 0.0
	for j := 0; j < m; j++ {
		da := at(yA, j) - mean
		db := at(yB, j) - mean
		varSum += da*da + db*db
	}
	variance := varSum / float64(2*m-1)
	if variance <= 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
		return 0, 0, false
	}

	// Center on the pooled mean: leaves the estimator expectation
	// unchanged and keeps finite-sample noise independent of the
	// output's offset.
	num1, numT := 0.0, 0.0
	for j := 0; j < m; j++ {
		a := at(yA, j) - mean
		b := at(yB, j) - mean
		c := at(yC, j) - mean
		num1 += b * (c - a)
		numT += a * (c - b)
	}
	s1 = num1 / float64(m) / variance
	st = 1 - numT/float64(m)/variance
	if math.IsNaN(s1) || math.IsInf(s1, 0) || math.IsNaN(st) || math.IsInf(st, 0) {
		return 0, 0, false
	}
	return s1, st, true
}

// percentileInterval returns the 2.5/97.5 percentile interval of the
// bootstrap estimates, falling back to the point estimate when too few
// resamples were computable.
func percentileInterval(samples []float64, point float64) Interval {
	if len(samples) < 2 {
		return Interval{Low: point, High: point}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return Interval{
		Low:  quantile(sorted, 0.025),
		High: quantile(sorted, 0.975),
	}
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
