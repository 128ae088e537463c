package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/canosim/internal/integrate"
	"github.com/san-kum/canosim/internal/sobol"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	paramStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// TrajectoryPlot renders the state series as a terminal graph.
func TrajectoryPlot(tr *integrate.Trajectory, height int) string {
	if tr == nil || tr.Len() == 0 {
		return ""
	}
	if height <= 0 {
		height = 12
	}
	t0, _ := tr.At(0)
	tn, _ := tr.At(tr.Len() - 1)
	caption := fmt.Sprintf("state, t=%g..%g", t0, tn)
	return asciigraph.Plot(tr.States,
		asciigraph.Height(height),
		asciigraph.Width(72),
		asciigraph.Caption(caption),
	)
}

// IndexTable renders the Sobol index table, one section per metric.
func IndexTable(r *sobol.Report) string {
	var b strings.Builder

	for _, m := range r.Metrics {
		b.WriteString(sectionStyle.Render(m))
		b.WriteString("\n")
		if failed := r.FailedRows[m]; failed > 0 {
			b.WriteString(warnStyle.Render(
				fmt.Sprintf("  %d of %d design rows failed", failed, len(r.Rows))))
			b.WriteString("\n")
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("  %-18s %10s %23s %10s %23s",
			"parameter", "S1", "S1 95% CI", "ST", "ST 95% CI")))
		b.WriteString("\n")
		for _, p := range r.Params {
			idx := r.Indices[m][p]
			name := paramStyle.Render(fmt.Sprintf("%-18s", p))
			if idx.NotComputable {
				b.WriteString(fmt.Sprintf("  %s %s\n", name,
					warnStyle.Render("not computable (zero output variance)")))
				continue
			}
			b.WriteString(fmt.Sprintf("  %s %10.4f [%9.4f, %9.4f] %10.4f [%9.4f, %9.4f]\n",
				name,
				idx.FirstOrder, idx.FirstOrderCI.Low, idx.FirstOrderCI.High,
				idx.Total, idx.TotalCI.Low, idx.TotalCI.High))
		}
		b.WriteString("\n")
	}

	return b.String()
}
