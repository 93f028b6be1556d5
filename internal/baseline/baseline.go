package baseline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/patchwaste/internal/report"
)

// Verdict is the outcome of the budget gate.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
	// VerdictError means the gate could not be evaluated.
	VerdictError Verdict = "ERROR"
)

// Delta is the growth of the current build relative to the baseline.
type Delta struct {
	BaselineNewBytes uint64
	CurrentNewBytes  uint64
	DeltaNewBytes    int64
	Ratio            float64
}

// Compare computes the growth of current over base.
func Compare(current report.Report, base report.Partial) (Delta, error) {
	if err := report.CheckVersion(base.Version()); err != nil {
		if errors.Is(err, report.ErrSchemaTooNew) {
			return Delta{}, &GateError{Kind: ErrSchemaTooNew, Detail: "report_version " + base.Version(), Err: err}
		}
		return Delta{}, &GateError{Kind: ErrMalformedBaseline, Err: err}
	}
	n, ok := base.NewBytes()
	if !ok {
		return Delta{}, &GateError{Kind: ErrMissingBaselineCounter}
	}
	return delta(n, current.Metrics.NewBytes, "")
}

func delta(baseline, current uint64, depot string) (Delta, error) {
	if baseline == 0 {
		return Delta{}, &GateError{Kind: ErrZeroBaseline, Depot: depot}
	}
	d := Delta{
		BaselineNewBytes: baseline,
		CurrentNewBytes:  current,
		DeltaNewBytes:    signedDiff(current, baseline),
		Ratio:            float64(current) / float64(baseline),
	}
	return d, nil
}

// signedDiff returns a-b saturated to the int64 range.
func signedDiff(a, b uint64) int64 {
	if a >= b {
		d := a - b
		if d > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(d)
	}
	d := b - a
	if d > math.MaxInt64 {
		return math.MinInt64
	}
	return -int64(d)
}

// Gate fails iff the growth ratio exceeds the budget.
func Gate(d Delta, budgetRatio float64) Verdict {
	// Written so a NaN ratio or budget fails closed.
	if !(d.Ratio <= budgetRatio) {
		return VerdictFail
	}
	return VerdictPass
}

// Budget holds the thresholds a run is gated on. A nil Ratio with no depot
// budgets means compare only.
type Budget struct {
	Ratio  *float64
	Depots map[string]float64
	// RequireHighConfidence rejects estimated current metrics.
	RequireHighConfidence bool
}

// DepotOutcome is the gate result of one depot.
type DepotOutcome struct {
	Depot   string
	Budget  float64
	Delta   Delta
	Verdict Verdict
}

// Outcome is the result of evaluating the gate for one run.
type Outcome struct {
	Verdict    Verdict
	Reason     string
	Comparison *Delta
	Depots     []DepotOutcome
	Err        *GateError
}

// Evaluate runs the comparison and gate. A nil base skips the gate and
// passes. Gate errors are returned in Outcome.Err with VerdictError.
func Evaluate(current report.Report, base *report.Partial, b Budget) Outcome {
	if base == nil {
		return Outcome{Verdict: VerdictPass, Reason: "no baseline supplied; analysis only"}
	}

	d, err := Compare(current, *base)
	if err != nil {
		return errorOutcome(nil, err)
	}
	out := Outcome{Verdict: VerdictPass, Comparison: &d}

	if b.RequireHighConfidence && current.Metrics.Estimated() {
		return errorOutcome(&d, &GateError{
			Kind:   ErrEstimatedCounters,
			Detail: "confidence " + string(current.Metrics.Confidence.Overall),
		})
	}

	if b.Ratio == nil && len(b.Depots) == 0 {
		out.Reason = "no budget ratio supplied; comparison only"
		return out
	}

	var failed []string
	if b.Ratio != nil {
		if Gate(d, *b.Ratio) == VerdictFail {
			out.Verdict = VerdictFail
			failed = append(failed, fmt.Sprintf("ratio %.3f exceeds budget %.3f", d.Ratio, *b.Ratio))
		}
	}

	ids := make([]string, 0, len(b.Depots))
	for id := range b.Depots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cur, ok := current.Depot(id)
		if !ok {
			continue
		}
		baseBytes, ok := base.DepotNewBytes(id)
		if !ok {
			return errorOutcome(&d, &GateError{Kind: ErrMissingBaselineCounter, Depot: id})
		}
		dd, err := delta(baseBytes, cur.NewBytes, id)
		if err != nil {
			return errorOutcome(&d, err)
		}
		budget := b.Depots[id]
		v := Gate(dd, budget)
		out.Depots = append(out.Depots, DepotOutcome{Depot: id, Budget: budget, Delta: dd, Verdict: v})
		if v == VerdictFail {
			out.Verdict = VerdictFail
			failed = append(failed, fmt.Sprintf("depot %s ratio %.3f exceeds budget %.3f", id, dd.Ratio, budget))
		}
	}

	if out.Verdict == VerdictFail {
		out.Reason = strings.Join(failed, "; ")
	} else {
		out.Reason = "within budget"
	}
	return out
}

func errorOutcome(d *Delta, err error) Outcome {
	var ge *GateError
	if !errors.As(err, &ge) {
		ge = &GateError{Kind: ErrMalformedBaseline, Err: err}
	}
	return Outcome{Verdict: VerdictError, Reason: ge.Error(), Comparison: d, Err: ge}
}

// MalformedBaseline wraps a baseline read or decode failure.
func MalformedBaseline(path string, err error) *GateError {
	return &GateError{Kind: ErrMalformedBaseline, Detail: path, Err: err}
}

// Attach returns a copy of r carrying the outcome.
func Attach(r report.Report, o Outcome, baselinePath string, b Budget) report.Report {
	var cmp *report.Comparison
	if o.Comparison != nil {
		cmp = &report.Comparison{
			BaselinePath:     baselinePath,
			BaselineNewBytes: o.Comparison.BaselineNewBytes,
			CurrentNewBytes:  o.Comparison.CurrentNewBytes,
			DeltaNewBytes:    o.Comparison.DeltaNewBytes,
			Ratio:            o.Comparison.Ratio,
		}
	}
	if cmp == nil && o.Err == nil && b.Ratio == nil {
		return r
	}
	bud := &report.Budget{Verdict: string(o.Verdict), Reason: o.Reason}
	if b.Ratio != nil {
		v := *b.Ratio
		bud.BudgetRatio = &v
	}
	if o.Err != nil {
		bud.Error = string(o.Err.Kind)
	}
	for _, d := range o.Depots {
		bud.Depots = append(bud.Depots, report.DepotBudget{
			Depot:       d.Depot,
			BudgetRatio: d.Budget,
			Ratio:       d.Delta.Ratio,
			Verdict:     string(d.Verdict),
		})
	}
	return r.WithGate(cmp, bud)
}
