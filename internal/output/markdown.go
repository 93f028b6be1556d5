package output

import (
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dshills/patchwaste/internal/findings"
	"github.com/dshills/patchwaste/internal/report"
)

// MarkdownWriter renders report.md. Identical reports render identical
// bytes: no timestamps, no map iteration.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, r *report.Report) error {
	ew := &errWriter{w: w}

	ew.println("# patchwaste report")
	ew.println("")
	ew.printf("- report_version: `%s`\n", r.ReportVersion)
	ew.printf("- input_path: `%s`\n", r.InputPath)
	ew.printf("- parse_mode: `%s`\n", r.ParseMode)
	if len(r.Sources) > 0 {
		ew.printf("- sources: `%d`\n", len(r.Sources))
	}
	ew.println("")

	mt := r.Metrics
	ew.println("## Metrics")
	ew.println("")
	ew.printf("- new_bytes: `%d` (%s)\n", mt.NewBytes, humanize.IBytes(mt.NewBytes))
	ew.printf("- changed_content_bytes: `%d` (%s)\n", mt.ChangedContentBytes, humanize.IBytes(mt.ChangedContentBytes))
	ew.printf("- delta_efficiency: `%.3f`\n", mt.DeltaEfficiency)
	ew.printf("- waste_ratio: `%.3f`\n", mt.WasteRatio)
	ew.printf("- confidence: `%s` (new_bytes `%s`, changed_content_bytes `%s`)\n",
		mt.Confidence.Overall, mt.Confidence.NewBytes, mt.Confidence.ChangedContentBytes)
	ew.println("")

	if c := r.BaselineComparison; c != nil {
		ew.println("## Baseline comparison")
		ew.println("")
		if c.BaselinePath != "" {
			ew.printf("- baseline_path: `%s`\n", c.BaselinePath)
		}
		ew.printf("- baseline_new_bytes: `%d`\n", c.BaselineNewBytes)
		ew.printf("- current_new_bytes: `%d`\n", c.CurrentNewBytes)
		ew.printf("- delta_new_bytes: `%d`\n", c.DeltaNewBytes)
		ew.printf("- ratio: `%.3f`\n", c.Ratio)
		ew.println("")
	}

	if b := r.Budget; b != nil {
		ew.println("## Budget gate")
		ew.println("")
		if b.BudgetRatio != nil {
			ew.printf("- budget_ratio: `%.3f`\n", *b.BudgetRatio)
		}
		ew.printf("- verdict: `%s`\n", b.Verdict)
		if b.Reason != "" {
			ew.printf("- reason: %s\n", b.Reason)
		}
		if b.Error != "" {
			ew.printf("- error: `%s`\n", b.Error)
		}
		if len(b.Depots) > 0 {
			ew.println("")
			ew.println("| Depot | Ratio | Budget | Verdict |")
			ew.println("|-------|-------|--------|---------|")
			for _, d := range b.Depots {
				ew.printf("| %s | %.3f | %.3f | %s |\n", d.Depot, d.Ratio, d.BudgetRatio, d.Verdict)
			}
		}
		ew.println("")
	}

	if len(r.PerDepot) > 0 {
		ew.println("## Per-depot metrics")
		ew.println("")
		for _, d := range r.PerDepot {
			ew.printf("### Depot %s\n", d.Depot)
			ew.printf("- new_bytes: `%d`\n", d.Metrics.NewBytes)
			ew.printf("- changed_content_bytes: `%d`\n", d.Metrics.ChangedContentBytes)
			ew.printf("- waste_ratio: `%.3f`\n", d.Metrics.WasteRatio)
			ew.printf("- confidence: `%s`\n", d.Metrics.Confidence.Overall)
			ew.println("")
		}
	}

	if md := r.BuildMetadata; md != nil {
		ew.println("## Build metadata")
		ew.println("")
		if md.SHA != "" {
			ew.printf("- sha: `%s`\n", md.SHA)
		}
		if md.Branch != "" {
			ew.printf("- branch: `%s`\n", md.Branch)
		}
		if md.BuildID != "" {
			ew.printf("- build_id: `%s`\n", md.BuildID)
		}
		ew.println("")
	}

	if len(r.ParseWarnings) > 0 {
		ew.println("## Parse warnings")
		ew.println("")
		for _, pw := range r.ParseWarnings {
			ew.printf("- %s\n", mdEscape(pw))
		}
		ew.println("")
	}

	ew.println("## Findings")
	ew.println("")
	if len(r.Findings) == 0 {
		ew.println("- (none)")
		return ew.err
	}

	counts := findings.Summarize(r.Findings).Counts
	ew.println("| Severity | Count |")
	ew.println("|----------|-------|")
	ew.printf("| Critical | %d |\n", counts.Critical)
	ew.printf("| High | %d |\n", counts.High)
	ew.printf("| Medium | %d |\n", counts.Medium)
	ew.printf("| Low | %d |\n", counts.Low)
	ew.println("")

	for _, f := range r.Findings {
		ew.printf("### %s %s\n", mdSeverityIcon(f.Severity), f.Code)
		ew.printf("- severity: `%s`\n", f.Severity)
		ew.printf("- likely_cause: %s\n", f.LikelyCause)
		if len(f.Evidence) > 0 {
			ew.println("- evidence:")
			for _, e := range f.Evidence {
				ew.printf("  - %s\n", mdCode(e))
			}
		}
		if len(f.SuggestedActions) > 0 {
			ew.println("- suggested_actions:")
			for _, a := range f.SuggestedActions {
				ew.printf("  - %s\n", a)
			}
		}
		ew.println("")
	}
	return ew.err
}

func mdSeverityIcon(s findings.Severity) string {
	switch s {
	case findings.SeverityCritical:
		return ":no_entry:"
	case findings.SeverityHigh:
		return ":red_circle:"
	case findings.SeverityMedium:
		return ":orange_circle:"
	case findings.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

var mdReplacer = strings.NewReplacer("`", "\\`", "*", "\\*", "_", "\\_", "<", "&lt;")

// mdEscape keeps raw log excerpts from turning into markup.
func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

// mdCode renders s as one inline code span. The fence is one backtick longer
// than the longest run inside s, so quoted log text cannot close it early.
func mdCode(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	longest, run := 0, 0
	for _, c := range s {
		if c == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", longest+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return fence + s + fence
}
