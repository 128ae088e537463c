// Package sobol implements variance-based global sensitivity analysis
// over a two-matrix Saltelli design: first-order and total indices per
// parameter and output metric, with percentile bootstrap confidence
// intervals.
package sobol

import (
	"fmt"

	"github.com/san-kum/canosim/internal/sample"
)

// Block labels for the base matrices. Re-sampled blocks are labeled by
// the parameter whose column was swapped, so attribution is carried by
// name rather than bare position.
const (
	BlockA = "A"
	BlockB = "B"
)

// MismatchError is a fatal setup error: column or parameter identity
// was lost between sampling and design construction.
type MismatchError struct {
	Reason string
}

func (e *MismatchError) Error() string {
	return "design mismatch: " + e.Reason
}

// Row is one evaluation point of the design.
type Row struct {
	Index  int
	Block  string
	Values map[string]float64
}

// Design holds the full re-sampled evaluation plan: all rows of A, all
// rows of B, and one swapped-column copy of A per parameter. Row
// identity is positional and preserved end to end.
type Design struct {
	params []string
	n      int
	rows   []Row
}

// NewDesign builds the evaluation plan from two independently drawn
// base matrices. Shape and label assertions run here, before any
// integration work.
func NewDesign(a, b *sample.Matrix) (*Design, error) {
	if a == nil || b == nil {
		return nil, &MismatchError{Reason: "missing base matrix"}
	}
	if a.Len() == 0 {
		return nil, &MismatchError{Reason: "empty base matrix"}
	}
	if a.Len() != b.Len() {
		return nil, &MismatchError{Reason: fmt.Sprintf("base matrices differ in size: %d vs %d", a.Len(), b.Len())}
	}
	aNames, bNames := a.Names(), b.Names()
	if len(aNames) == 0 {
		return nil, &MismatchError{Reason: "no parameter columns"}
	}
	if len(aNames) != len(bNames) {
		return nil, &MismatchError{Reason: "base matrices differ in columns"}
	}
	for i := range aNames {
		if aNames[i] != bNames[i] {
			return nil, &MismatchError{Reason: fmt.Sprintf("column %d is %q in A but %q in B", i, aNames[i], bNames[i])}
		}
	}
	if a.Equal(b) {
		return nil, &MismatchError{Reason: "base matrices are identical; B must be an independent draw"}
	}

	n := a.Len()
	d := &Design{
		params: aNames,
		n:      n,
		rows:   make([]Row, 0, n*(2+len(aNames))),
	}

	appendBlock := func(m *sample.Matrix, block string) {
		for i := 0; i < n; i++ {
			d.rows = append(d.rows, Row{
				Index:  len(d.rows),
				Block:  block,
				Values: m.Row(i),
			})
		}
	}

	appendBlock(a, BlockA)
	appendBlock(b, BlockB)
	for _, p := range aNames {
		bCol, ok := b.Column(p)
		if !ok {
			return nil, &MismatchError{Reason: fmt.Sprintf("column %q missing from B", p)}
		}
		cp, err := a.WithColumn(p, bCol)
		if err != nil {
			return nil, &MismatchError{Reason: err.Error()}
		}
		appendBlock(cp, p)
	}

	return d, nil
}

// Params returns the parameter column order.
func (d *Design) Params() []string {
	return append([]string(nil), d.params...)
}

// SampleCount returns N, the base matrix row count.
func (d *Design) SampleCount() int { return d.n }

// Size returns the total design row count, N(2+P).
func (d *Design) Size() int { return len(d.rows) }

// Rows returns the evaluation rows in design order.
func (d *Design) Rows() []Row { return d.rows }

// blockOffset returns the starting row of a block: A at 0, B at n, and
// the C_p blocks in parameter order after that.
func (d *Design) blockOffset(block string) int {
	switch block {
	case BlockA:
		return 0
	case BlockB:
		return d.n
	}
	for i, p := range d.params {
		if p == block {
			return (2 + i) * d.n
		}
	}
	return -1
}
