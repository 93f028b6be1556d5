package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dshills/patchwaste/internal/findings"
	"github.com/dshills/patchwaste/internal/report"
)

// TextWriter outputs the human-readable summary printed to stderr. Colors
// are chosen per destination: plain text when w is not a terminal or
// NO_COLOR is set.
type TextWriter struct{}

type palette struct {
	bold, dim, red, yellow, green, orange lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		bold:   r.NewStyle().Bold(true),
		dim:    r.NewStyle().Faint(true),
		red:    r.NewStyle().Foreground(lipgloss.Color("197")),
		yellow: r.NewStyle().Foreground(lipgloss.Color("214")),
		green:  r.NewStyle().Foreground(lipgloss.Color("78")),
		orange: r.NewStyle().Foreground(lipgloss.Color("208")),
	}
}

func (t *TextWriter) Write(w io.Writer, r *report.Report) error {
	ew := &errWriter{w: w}
	p := newPalette(w)

	ew.printf("\n  %s%s%s  %s\n\n",
		p.bold.Render("patch"), p.orange.Render("|"), p.dim.Render("waste"),
		p.dim.Render("patch efficiency gate"))

	mt := r.Metrics
	row := func(label, value string) {
		ew.printf("  %s %s\n", p.dim.Render(fmt.Sprintf("%-21s", label)), value)
	}
	row("new_bytes", p.bold.Render(humanize.Comma(int64Clamp(mt.NewBytes)))+" "+p.dim.Render("("+humanize.IBytes(mt.NewBytes)+")"))
	row("changed_content_bytes", p.bold.Render(humanize.Comma(int64Clamp(mt.ChangedContentBytes)))+" "+p.dim.Render("("+humanize.IBytes(mt.ChangedContentBytes)+")"))
	row("waste_ratio", wasteStyle(p, mt.WasteRatio).Bold(true).Render(fmt.Sprintf("%.3f", mt.WasteRatio)))
	row("delta_efficiency", p.bold.Render(fmt.Sprintf("%.3f", mt.DeltaEfficiency)))
	row("confidence", string(mt.Confidence.Overall))

	if len(r.PerDepot) > 0 {
		ew.println("")
		for _, d := range r.PerDepot {
			ew.printf("  %s %s  waste %s\n",
				p.dim.Render(fmt.Sprintf("depot %-15s", d.Depot)),
				humanize.IBytes(d.Metrics.NewBytes),
				wasteStyle(p, d.Metrics.WasteRatio).Render(fmt.Sprintf("%.3f", d.Metrics.WasteRatio)))
		}
	}

	if len(r.Findings) > 0 {
		ew.println("")
		for _, f := range r.Findings {
			ew.printf("  %s  %s\n", severityStyle(p, f.Severity).Render(fmt.Sprintf("%-8s", f.Severity)), f.Code)
			for _, line := range wrapText(f.LikelyCause, 70) {
				ew.printf("            %s\n", p.dim.Render(line))
			}
		}
	}

	if c := r.BaselineComparison; c != nil {
		ew.println("")
		row("baseline_new_bytes", humanize.Comma(int64Clamp(c.BaselineNewBytes)))
		row("ratio", fmt.Sprintf("%.2fx", c.Ratio))
	}

	ew.println("")
	switch b := r.Budget; {
	case b == nil || b.Verdict == "PASS":
		ew.printf("  %s\n", p.green.Bold(true).Render("PASS"))
	case b.Verdict == "FAIL":
		ew.printf("  %s  %s\n", p.red.Bold(true).Render("BUDGET FAILED"), p.dim.Render("("+b.Reason+")"))
	default:
		ew.printf("  %s  %s\n", p.red.Bold(true).Render("GATE ERROR"), b.Reason)
	}
	ew.println("")
	return ew.err
}

func wasteStyle(p palette, ratio float64) lipgloss.Style {
	switch {
	case ratio < 0.3:
		return p.green
	case ratio < 0.5:
		return p.yellow
	default:
		return p.red
	}
}

func severityStyle(p palette, s findings.Severity) lipgloss.Style {
	switch s {
	case findings.SeverityCritical, findings.SeverityHigh:
		return p.red
	case findings.SeverityMedium:
		return p.yellow
	default:
		return p.dim
	}
}

func int64Clamp(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
