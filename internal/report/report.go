package report

import (
	"sort"

	"github.com/dshills/patchwaste/internal/findings"
	"github.com/dshills/patchwaste/internal/metrics"
	"github.com/dshills/patchwaste/internal/parser"
)

// ReportVersion is the schema version written by this build.
const ReportVersion = "1.0.0"

// Source is one log file that contributed to the report.
type Source struct {
	Path  string `json:"path"`
	Depot string `json:"depot,omitempty"`
	Bytes int64  `json:"bytes"`
}

// DepotMetrics is the snapshot of a single depot.
type DepotMetrics struct {
	Depot   string           `json:"depot"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// BuildMetadata identifies the build that produced the log.
type BuildMetadata struct {
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
	BuildID string `json:"build_id,omitempty"`
}

// Empty reports whether no field is set.
func (b BuildMetadata) Empty() bool {
	return b.SHA == "" && b.Branch == "" && b.BuildID == ""
}

// Comparison is the baseline comparison attached to a gated report.
type Comparison struct {
	BaselinePath     string  `json:"baseline_path,omitempty"`
	BaselineNewBytes uint64  `json:"baseline_new_bytes"`
	CurrentNewBytes  uint64  `json:"current_new_bytes"`
	DeltaNewBytes    int64   `json:"delta_new_bytes"`
	Ratio            float64 `json:"ratio"`
}

// DepotBudget is the gate outcome of one depot.
type DepotBudget struct {
	Depot       string  `json:"depot"`
	BudgetRatio float64 `json:"budget_ratio"`
	Ratio       float64 `json:"ratio"`
	Verdict     string  `json:"verdict"`
}

// Budget is the gate outcome attached to a report.
type Budget struct {
	BudgetRatio *float64      `json:"budget_ratio,omitempty"`
	Verdict     string        `json:"verdict"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	Depots      []DepotBudget `json:"depots,omitempty"`
}

// Report is the serialized result of one analysis run.
type Report struct {
	ReportVersion      string             `json:"report_version"`
	InputPath          string             `json:"input_path"`
	ParseMode          parser.Mode        `json:"parse_mode"`
	Sources            []Source           `json:"sources,omitempty"`
	ParseWarnings      []string           `json:"parse_warnings,omitempty"`
	Metrics            metrics.Snapshot   `json:"metrics"`
	Findings           []findings.Finding `json:"findings"`
	PerDepot           []DepotMetrics     `json:"per_depot,omitempty"`
	BuildMetadata      *BuildMetadata     `json:"build_metadata,omitempty"`
	BaselineComparison *Comparison        `json:"baseline_comparison,omitempty"`
	Budget             *Budget            `json:"budget,omitempty"`
}

// Input carries everything New needs.
type Input struct {
	InputPath     string
	Manifest      parser.BuildManifest
	Metrics       metrics.Snapshot
	Findings      []findings.Finding
	Sources       []Source
	DepotMetrics  map[string]metrics.Snapshot
	BuildMetadata *BuildMetadata
}

// New assembles a report. It never fails.
func New(in Input) Report {
	r := Report{
		ReportVersion: ReportVersion,
		InputPath:     in.InputPath,
		ParseMode:     in.Manifest.Mode,
		Metrics:       in.Metrics,
		Findings:      normalizeFindings(in.Findings),
	}
	if r.ParseMode == "" {
		r.ParseMode = parser.ModeBestEffort
	}
	if len(in.Sources) > 0 {
		r.Sources = append([]Source(nil), in.Sources...)
	}
	if len(in.Manifest.Warnings) > 0 {
		r.ParseWarnings = append([]string(nil), in.Manifest.Warnings...)
	}
	if len(in.DepotMetrics) > 0 {
		ids := make([]string, 0, len(in.DepotMetrics))
		for id := range in.DepotMetrics {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			r.PerDepot = append(r.PerDepot, DepotMetrics{Depot: id, Metrics: in.DepotMetrics[id]})
		}
	}
	if in.BuildMetadata != nil && !in.BuildMetadata.Empty() {
		md := *in.BuildMetadata
		r.BuildMetadata = &md
	}
	return r
}

// WithGate returns a copy of r carrying the comparison and budget outcome.
func (r Report) WithGate(c *Comparison, b *Budget) Report {
	out := r
	if c != nil {
		cc := *c
		out.BaselineComparison = &cc
	}
	if b != nil {
		bb := *b
		bb.Depots = append([]DepotBudget(nil), b.Depots...)
		if len(bb.Depots) == 0 {
			bb.Depots = nil
		}
		out.Budget = &bb
	}
	return out
}

// Depot returns the metrics of the given depot.
func (r Report) Depot(id string) (metrics.Snapshot, bool) {
	for _, d := range r.PerDepot {
		if d.Depot == id {
			return d.Metrics, true
		}
	}
	return metrics.Snapshot{}, false
}

// Summary counts the report's findings by severity.
func (r Report) Summary() findings.Summary {
	return findings.Summarize(r.Findings)
}

func normalizeFindings(in []findings.Finding) []findings.Finding {
	out := make([]findings.Finding, len(in))
	for i, f := range in {
		if f.Evidence == nil {
			f.Evidence = []string{}
		}
		if f.SuggestedActions == nil {
			f.SuggestedActions = []string{}
		}
		out[i] = f
	}
	return out
}
