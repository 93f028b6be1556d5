package findings

import (
	"fmt"
	"strconv"

	"github.com/dshills/patchwaste/internal/metrics"
	"github.com/dshills/patchwaste/internal/parser"
)

// Rule codes.
const (
	CodeHighWasteRatio        = "HIGH_WASTE_RATIO"
	CodeLargeTopOffender      = "LARGE_TOP_OFFENDER"
	CodePackedContainerChurn  = "PACKED_CONTAINER_CHURN"
	CodeDeclaredTotalMismatch = "DECLARED_TOTAL_MISMATCH"
	CodeEstimatedMetrics      = "ESTIMATED_METRICS"
	CodeParseWarnings         = "PARSE_WARNINGS"
)

// Policy thresholds.
const (
	WasteMediumThreshold = 0.50
	WasteHighThreshold   = 0.75

	TopOffenderShareThreshold = 0.40
	TopOffenderHighBytes      = 100 * 1024 * 1024

	PackedShareThreshold    = 0.25
	PackedWasteThreshold    = 0.50
	PackedCriticalThreshold = 0.90

	DeclaredMismatchThreshold = 0.01

	ParseWarningsMediumCount = 10
)

// input is what every rule sees.
type input struct {
	manifest parser.BuildManifest
	metrics  metrics.Snapshot
}

// rule is one catalog entry. check returns ok=false when the rule does not
// fire.
type rule struct {
	code        string
	description string
	cause       string
	actions     []string
	check       func(in input) (sev Severity, evidence []string, ok bool)
}

// catalog is append-only: new rules go at the end.
var catalog = []rule{
	{
		code:        CodeHighWasteRatio,
		description: "Most transferred bytes are not genuinely changed content.",
		cause:       "Small content edits are forcing large re-downloads, usually because content is rebuilt or reordered inside large files.",
		actions: []string{
			"Keep the asset build deterministic so unchanged content produces identical bytes.",
			"Avoid re-compressing or re-encrypting content that did not change.",
			"Split large files so unrelated assets do not share transfer chunks.",
		},
		check: checkHighWasteRatio,
	},
	{
		code:        CodeLargeTopOffender,
		description: "A single entry dominates the transfer size.",
		cause:       "One file or container accounts for most of the update, so any churn inside it is paid for in full.",
		actions: []string{
			"Inspect the top offender for content that changes on every build (timestamps, build ids, shader caches).",
			"Consider splitting the file so frequently changing content is isolated.",
		},
		check: checkLargeTopOffender,
	},
	{
		code:        CodePackedContainerChurn,
		description: "Packed containers carry a large, mostly wasted share of the update.",
		cause:       "Pack files are rewritten wholesale; entries shift position so the delta cannot reuse earlier bytes.",
		actions: []string{
			"Order entries inside pack files deterministically and append new content at the end.",
			"Align pack entries so unchanged entries keep their offsets.",
			"Disable whole-archive compression; compress entries individually.",
		},
		check: checkPackedContainerChurn,
	},
	{
		code:        CodeDeclaredTotalMismatch,
		description: "The log's declared update size disagrees with the sum of its entries.",
		cause:       "The log lists only part of the changed entries, or the declared counter covers content the entries omit.",
		actions: []string{
			"Capture the complete preview log, including per-file entries for every depot.",
		},
		check: checkDeclaredTotalMismatch,
	},
	{
		code:        CodeEstimatedMetrics,
		description: "Metrics were derived from incomplete counters.",
		cause:       "The log lacked changed-content counters for some entries or totals, so changed content was assumed equal to transferred bytes.",
		actions: []string{
			"Enable verbose preview output so per-entry changed_content_bytes are logged.",
			"Run with --strict in CI to reject logs without the expected counters.",
		},
		check: checkEstimatedMetrics,
	},
	{
		code:        CodeParseWarnings,
		description: "Some log lines could not be parsed and were skipped.",
		cause:       "The log format differs from the expected shapes, possibly from a newer build tool version.",
		actions: []string{
			"Review the parse warnings in the report.",
			"Run with --strict to make unrecognized lines fatal.",
		},
		check: checkParseWarnings,
	},
}

func checkHighWasteRatio(in input) (Severity, []string, bool) {
	s := in.metrics
	if s.NewBytes == 0 || s.WasteRatio < WasteMediumThreshold {
		return "", nil, false
	}
	sev := SeverityMedium
	if s.WasteRatio > WasteHighThreshold {
		sev = SeverityHigh
	}
	return sev, []string{
		"waste_ratio=" + ratio(s.WasteRatio),
		"delta_efficiency=" + ratio(s.DeltaEfficiency),
		"new_bytes=" + count(s.NewBytes),
		"changed_content_bytes=" + count(s.ChangedContentBytes),
	}, true
}

func checkLargeTopOffender(in input) (Severity, []string, bool) {
	total := in.metrics.NewBytes
	if total == 0 || len(in.manifest.Records) == 0 {
		return "", nil, false
	}
	top := in.manifest.Records[0]
	for _, r := range in.manifest.Records[1:] {
		if r.NewBytes > top.NewBytes {
			top = r
		}
	}
	share := float64(top.NewBytes) / float64(total)
	if share <= TopOffenderShareThreshold {
		return "", nil, false
	}
	sev := SeverityMedium
	if top.NewBytes >= TopOffenderHighBytes {
		sev = SeverityHigh
	}
	return sev, []string{
		"path=" + top.Path,
		"kind=" + string(top.Kind),
		"new_bytes=" + count(top.NewBytes),
		"share=" + ratio(share),
	}, true
}

func checkPackedContainerChurn(in input) (Severity, []string, bool) {
	total := in.metrics.NewBytes
	if total == 0 {
		return "", nil, false
	}
	var packedNew, packedChanged uint64
	containers := 0
	for _, r := range in.manifest.Records {
		if r.Kind != parser.KindPackedContainer {
			continue
		}
		var ok1, ok2 bool
		packedNew, ok1 = parser.AddBytes(packedNew, r.NewBytes)
		packedChanged, ok2 = parser.AddBytes(packedChanged, r.ChangedContentBytes)
		if !ok1 || !ok2 {
			return "", nil, false
		}
		containers++
	}
	if packedNew == 0 {
		return "", nil, false
	}
	share := float64(packedNew) / float64(total)
	_, waste := metrics.Ratios(packedNew, packedChanged)
	if share < PackedShareThreshold || waste < PackedWasteThreshold {
		return "", nil, false
	}
	sev := SeverityHigh
	if waste >= PackedCriticalThreshold {
		sev = SeverityCritical
	}
	return sev, []string{
		"containers=" + strconv.Itoa(containers),
		"packed_new_bytes=" + count(packedNew),
		"packed_share=" + ratio(share),
		"packed_waste_ratio=" + ratio(waste),
	}, true
}

func checkDeclaredTotalMismatch(in input) (Severity, []string, bool) {
	// Only logs that both declare a total and list entries can disagree.
	var declared, summed uint64
	compared := 0
	for _, u := range in.manifest.Units() {
		if u.Declared == nil || u.Declared.PredictedUpdateBytes == nil || len(u.Records) == 0 {
			continue
		}
		n, _, err := u.RecordTotals()
		if err != nil {
			return "", nil, false
		}
		var ok1, ok2 bool
		declared, ok1 = parser.AddBytes(declared, *u.Declared.PredictedUpdateBytes)
		summed, ok2 = parser.AddBytes(summed, n)
		if !ok1 || !ok2 {
			return "", nil, false
		}
		compared++
	}
	if compared == 0 {
		return "", nil, false
	}
	diff := declared - summed
	if summed > declared {
		diff = summed - declared
	}
	if diff == 0 {
		return "", nil, false
	}
	if declared > 0 && float64(diff)/float64(declared) <= DeclaredMismatchThreshold {
		return "", nil, false
	}
	evidence := []string{
		"declared_new_bytes=" + count(declared),
		"record_new_bytes=" + count(summed),
	}
	if declared > 0 {
		evidence = append(evidence, "difference="+ratio(float64(diff)/float64(declared)))
	}
	return SeverityLow, evidence, true
}

func checkEstimatedMetrics(in input) (Severity, []string, bool) {
	c := in.metrics.Confidence
	if !in.metrics.Estimated() {
		return "", nil, false
	}
	return SeverityLow, []string{
		"confidence_new_bytes=" + string(c.NewBytes),
		"confidence_changed_content_bytes=" + string(c.ChangedContentBytes),
		"confidence_overall=" + string(c.Overall),
	}, true
}

func checkParseWarnings(in input) (Severity, []string, bool) {
	w := in.manifest.Warnings
	if len(w) == 0 {
		return "", nil, false
	}
	sev := SeverityLow
	if len(w) >= ParseWarningsMediumCount {
		sev = SeverityMedium
	}
	return sev, []string{
		"warnings=" + strconv.Itoa(len(w)),
		"first_warning=" + w[0],
	}, true
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func count(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// RuleInfo describes a catalog entry.
type RuleInfo struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Catalog lists every rule in registration order.
func Catalog() []RuleInfo {
	out := make([]RuleInfo, len(catalog))
	for i, r := range catalog {
		out[i] = RuleInfo{Code: r.code, Description: r.description}
	}
	return out
}

// ValidateCodes returns an error naming the first unknown rule code.
func ValidateCodes(codes []string) error {
	for _, c := range codes {
		if _, ok := lookup(c); !ok {
			return fmt.Errorf("unknown rule code %q", c)
		}
	}
	return nil
}

func lookup(code string) (rule, bool) {
	for _, r := range catalog {
		if r.code == code {
			return r, true
		}
	}
	return rule{}, false
}
