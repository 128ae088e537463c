package sobol_test

import (
	"context"
	"errors"
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/canosim/internal/sample"
	"github.com/san-kum/canosim/internal/sobol"
)

var paramNames = []string{"r", "K", "g", "canopy_threshold"}

func drawMatrices(n int, seed int64, dists map[string]sample.Dist) (*sample.Matrix, *sample.Matrix) {
	s := sample.NewSampler(seed)
	a, err := s.Sample(n, paramNames, dists)
	Expect(err).NotTo(HaveOccurred())
	b, err := s.Sample(n, paramNames, dists)
	Expect(err).NotTo(HaveOccurred())
	return a, b
}

func unitDists(sds map[string]float64) map[string]sample.Dist {
	d := make(map[string]sample.Dist, len(paramNames))
	for _, name := range paramNames {
		d[name] = sample.Dist{Mean: 10, StdDev: sds[name]}
	}
	return d
}

// sumRunner is an additive model with no interactions: the analytic
// first-order index of each parameter is its variance share, and total
// indices coincide with first-order ones.
func sumRunner(values map[string]float64) (map[string]float64, error) {
	sum := 0.0
	for _, name := range paramNames {
		sum += values[name]
	}
	return map[string]float64{"y": sum}, nil
}

var _ = Describe("Design", func() {
	dists := unitDists(map[string]float64{"r": 1, "K": 1, "g": 1, "canopy_threshold": 1})

	It("builds N(2+P) rows from two base matrices", func() {
		a, b := drawMatrices(50, 1, dists)
		d, err := sobol.NewDesign(a, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Size()).To(Equal(50 * (2 + 4)))
		Expect(d.SampleCount()).To(Equal(50))
		Expect(d.Params()).To(Equal(paramNames))
	})

	It("swaps exactly one column per C_p block", func() {
		a, b := drawMatrices(50, 2, dists)
		d, err := sobol.NewDesign(a, b)
		Expect(err).NotTo(HaveOccurred())

		rows := d.Rows()
		n := d.SampleCount()
		for pi, p := range paramNames {
			offset := (2 + pi) * n
			for i := 0; i < n; i++ {
				cp := rows[offset+i]
				Expect(cp.Block).To(Equal(p))
				for _, name := range paramNames {
					if name == p {
						Expect(cp.Values[name]).To(Equal(b.At(name, i)),
							"row %d of block %s should take column %s from B", i, p, name)
					} else {
						Expect(cp.Values[name]).To(Equal(a.At(name, i)),
							"row %d of block %s should keep column %s from A", i, p, name)
					}
				}
			}
		}
	})

	It("preserves positional row identity across blocks", func() {
		a, b := drawMatrices(10, 3, dists)
		d, err := sobol.NewDesign(a, b)
		Expect(err).NotTo(HaveOccurred())
		for i, row := range d.Rows() {
			Expect(row.Index).To(Equal(i))
		}
	})

	It("rejects a copied base matrix", func() {
		s := sample.NewSampler(4)
		a, err := s.Sample(20, paramNames, dists)
		Expect(err).NotTo(HaveOccurred())
		copied, err := a.WithColumn("r", mustColumn(a, "r"))
		Expect(err).NotTo(HaveOccurred())

		_, err = sobol.NewDesign(a, copied)
		var mismatch *sobol.MismatchError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
	})

	It("rejects shape and label mismatches", func() {
		a, _ := drawMatrices(20, 5, dists)
		_, b := drawMatrices(30, 6, dists)
		_, err := sobol.NewDesign(a, b)
		Expect(err).To(HaveOccurred())

		s := sample.NewSampler(7)
		swapped, err := s.Sample(20, []string{"K", "r", "g", "canopy_threshold"}, dists)
		Expect(err).NotTo(HaveOccurred())
		_, err = sobol.NewDesign(a, swapped)
		var mismatch *sobol.MismatchError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
	})
})

var _ = Describe("Engine", func() {
	newEngine := func(n int, seed int64, dists map[string]sample.Dist, opts sobol.Options) *sobol.Engine {
		a, b := drawMatrices(n, seed, dists)
		e, err := sobol.New(a, b, opts)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("recovers variance shares of an additive model", func() {
		sds := map[string]float64{"r": 1, "K": 2, "g": 3, "canopy_threshold": 4}
		e := newEngine(2000, 11, unitDists(sds), sobol.Options{
			Metrics:   []string{"y"},
			Bootstrap: 200,
			Seed:      1,
		})

		report, err := e.Run(context.Background(), sumRunner)
		Expect(err).NotTo(HaveOccurred())

		totalVar := 0.0
		for _, sd := range sds {
			totalVar += sd * sd
		}
		for _, p := range paramNames {
			idx := report.Indices["y"][p]
			Expect(idx.NotComputable).To(BeFalse())
			want := sds[p] * sds[p] / totalVar
			Expect(idx.FirstOrder).To(BeNumerically("~", want, 0.1),
				"first-order index for %s", p)
			// No interactions: total matches first-order.
			Expect(idx.Total).To(BeNumerically("~", idx.FirstOrder, 0.1))
		}
	})

	It("brackets point estimates with bootstrap intervals", func() {
		sds := map[string]float64{"r": 1, "K": 2, "g": 3, "canopy_threshold": 4}
		e := newEngine(500, 13, unitDists(sds), sobol.Options{
			Metrics:   []string{"y"},
			Bootstrap: 300,
			Seed:      2,
		})

		report, err := e.Run(context.Background(), sumRunner)
		Expect(err).NotTo(HaveOccurred())

		for _, p := range paramNames {
			idx := report.Indices["y"][p]
			Expect(idx.FirstOrderCI.Low).To(BeNumerically("<=", idx.FirstOrder))
			Expect(idx.FirstOrderCI.High).To(BeNumerically(">=", idx.FirstOrder))
			Expect(idx.TotalCI.Low).To(BeNumerically("<=", idx.Total))
			Expect(idx.TotalCI.High).To(BeNumerically(">=", idx.Total))
		}
	})

	It("is deterministic given the same base matrices", func() {
		dists := unitDists(map[string]float64{"r": 1, "K": 2, "g": 3, "canopy_threshold": 4})
		a, b := drawMatrices(200, 17, dists)
		opts := sobol.Options{Metrics: []string{"y"}, Bootstrap: 100, Seed: 5}

		run := func() *sobol.Report {
			e, err := sobol.New(a, b, opts)
			Expect(err).NotTo(HaveOccurred())
			r, err := e.Run(context.Background(), sumRunner)
			Expect(err).NotTo(HaveOccurred())
			return r
		}

		first := run()
		second := run()
		for _, p := range paramNames {
			Expect(second.Indices["y"][p]).To(Equal(first.Indices["y"][p]))
		}
	})

	It("reports a degenerate output variance as not computable", func() {
		dists := unitDists(map[string]float64{"r": 1, "K": 1, "g": 1, "canopy_threshold": 1})
		e := newEngine(100, 19, dists, sobol.Options{
			Metrics: []string{"y"},
			Seed:    3,
		})

		constant := func(map[string]float64) (map[string]float64, error) {
			return map[string]float64{"y": 5}, nil
		}
		report, err := e.Run(context.Background(), constant)
		Expect(err).NotTo(HaveOccurred())

		for _, p := range paramNames {
			idx := report.Indices["y"][p]
			Expect(idx.NotComputable).To(BeTrue())
			Expect(math.IsNaN(idx.FirstOrder)).To(BeFalse())
			Expect(math.IsNaN(idx.Total)).To(BeFalse())
		}
	})

	It("isolates row failures and counts them per metric", func() {
		dists := unitDists(map[string]float64{"r": 1, "K": 8, "g": 1, "canopy_threshold": 1})
		e := newEngine(300, 23, dists, sobol.Options{
			Metrics:   []string{"y"},
			Bootstrap: 50,
			Seed:      4,
		})

		flaky := func(values map[string]float64) (map[string]float64, error) {
			if values["K"] < 5 {
				return nil, fmt.Errorf("invalid parameter K=%g", values["K"])
			}
			return sumRunner(values)
		}
		report, err := e.Run(context.Background(), flaky)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.FailedRows["y"]).To(BeNumerically(">", 0))
		failedSeen := 0
		for _, row := range report.Rows {
			if !row.OK {
				failedSeen++
				Expect(row.Err).To(ContainSubstring("invalid parameter"))
			}
		}
		Expect(failedSeen).To(Equal(report.FailedRows["y"]))

		// Enough valid rows remain for the indices to be computable.
		for _, p := range paramNames {
			Expect(report.Indices["y"][p].NotComputable).To(BeFalse())
		}
	})

	It("streams progress events for the whole batch", func() {
		dists := unitDists(map[string]float64{"r": 1, "K": 1, "g": 1, "canopy_threshold": 1})
		total := 30 * (2 + 4)
		progress := make(chan sobol.Progress, total)
		e := newEngine(30, 29, dists, sobol.Options{
			Metrics:  []string{"y"},
			Seed:     6,
			Progress: progress,
		})

		_, err := e.Run(context.Background(), sumRunner)
		Expect(err).NotTo(HaveOccurred())

		maxDone := 0
		count := 0
		for len(progress) > 0 {
			ev := <-progress
			count++
			Expect(ev.Total).To(Equal(total))
			if ev.Done > maxDone {
				maxDone = ev.Done
			}
		}
		Expect(count).To(Equal(total))
		Expect(maxDone).To(Equal(total))
	})

	It("stops when the context is cancelled", func() {
		dists := unitDists(map[string]float64{"r": 1, "K": 1, "g": 1, "canopy_threshold": 1})
		e := newEngine(50, 31, dists, sobol.Options{Metrics: []string{"y"}, Seed: 7})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Run(ctx, sumRunner)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("rejects empty metric lists and negative bootstrap counts", func() {
		dists := unitDists(map[string]float64{"r": 1, "K": 1, "g": 1, "canopy_threshold": 1})
		a, b := drawMatrices(10, 37, dists)

		_, err := sobol.New(a, b, sobol.Options{})
		Expect(err).To(HaveOccurred())

		_, err = sobol.New(a, b, sobol.Options{Metrics: []string{"y"}, Bootstrap: -1})
		Expect(err).To(HaveOccurred())
	})
})

func mustColumn(m *sample.Matrix, name string) []float64 {
	col, ok := m.Column(name)
	Expect(ok).To(BeTrue())
	return col
}
