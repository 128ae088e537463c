// Package sample draws randomized parameter matrices for the Sobol
// experiment design. Columns are tagged by parameter name so that
// column identity survives design construction and index attribution.
package sample

import (
	"fmt"
	"math/rand"
)

// Dist is an independent normal marginal for one parameter.
type Dist struct {
	Mean   float64
	StdDev float64
}

// Matrix is an n-row sample with one named column per parameter.
// Column order is fixed at construction.
type Matrix struct {
	names []string
	cols  map[string][]float64
	n     int
}

func NewMatrix(names []string, n int) *Matrix {
	m := &Matrix{
		names: append([]string(nil), names...),
		cols:  make(map[string][]float64, len(names)),
		n:     n,
	}
	for _, name := range names {
		m.cols[name] = make([]float64, n)
	}
	return m
}

func (m *Matrix) Len() int { return m.n }

// Names returns the column order.
func (m *Matrix) Names() []string {
	return append([]string(nil), m.names...)
}

// Column returns the samples for one parameter.
func (m *Matrix) Column(name string) ([]float64, bool) {
	col, ok := m.cols[name]
	return col, ok
}

// Set writes one cell.
func (m *Matrix) Set(name string, i int, v float64) {
	m.cols[name][i] = v
}

// At reads one cell.
func (m *Matrix) At(name string, i int) float64 {
	return m.cols[name][i]
}

// Row returns row i keyed by parameter name.
func (m *Matrix) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(m.names))
	for _, name := range m.names {
		row[name] = m.cols[name][i]
	}
	return row
}

// WithColumn returns a copy of the matrix with one column replaced.
// Used to build the C_p blocks of the Sobol design.
func (m *Matrix) WithColumn(name string, col []float64) (*Matrix, error) {
	if _, ok := m.cols[name]; !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	if len(col) != m.n {
		return nil, fmt.Errorf("column %q has %d rows, matrix has %d", name, len(col), m.n)
	}
	out := NewMatrix(m.names, m.n)
	for _, c := range m.names {
		src := m.cols[c]
		if c == name {
			src = col
		}
		copy(out.cols[c], src)
	}
	return out, nil
}

// Equal reports whether two matrices hold identical columns. Useful to
// detect a copied base matrix where an independent draw was required.
func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil || m.n != other.n || len(m.names) != len(other.names) {
		return false
	}
	for i, name := range m.names {
		if other.names[i] != name {
			return false
		}
		a, b := m.cols[name], other.cols[name]
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// Sampler draws i.i.d. normal samples from a single sequential
// generator, so a whole analysis is reproducible from one seed.
type Sampler struct {
	rng *rand.Rand
}

func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample draws an n-row matrix with one column per name, each drawn
// independently from its marginal. No truncation is applied: negative
// draws for strictly positive parameters pass through, and downstream
// validation rejects the resulting parameter sets.
func (s *Sampler) Sample(n int, names []string, dists map[string]Dist) (*Matrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no parameter names")
	}
	for _, name := range names {
		if _, ok := dists[name]; !ok {
			return nil, fmt.Errorf("no distribution for parameter %q", name)
		}
	}
	if len(dists) != len(names) {
		for key := range dists {
			known := false
			for _, name := range names {
				if name == key {
					known = true
					break
				}
			}
			if !known {
				return nil, fmt.Errorf("distribution for unknown parameter %q", key)
			}
		}
	}

	m := NewMatrix(names, n)
	for _, name := range names {
		d := dists[name]
		col := m.cols[name]
		for i := 0; i < n; i++ {
			col[i] = s.rng.NormFloat64()*d.StdDev + d.Mean
		}
	}
	return m, nil
}
