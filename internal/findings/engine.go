package findings

import (
	"sort"

	"github.com/dshills/patchwaste/internal/metrics"
	"github.com/dshills/patchwaste/internal/parser"
)

// Engine evaluates the enabled subset of the catalog. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	rules []rule
}

// NewEngine builds an engine with every catalog rule except the disabled
// codes. Unknown codes are an error.
func NewEngine(disabled []string) (*Engine, error) {
	if err := ValidateCodes(disabled); err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(disabled))
	for _, c := range disabled {
		skip[c] = true
	}
	e := &Engine{}
	for _, r := range catalog {
		if !skip[r.code] {
			e.rules = append(e.rules, r)
		}
	}
	return e, nil
}

var defaultEngine = &Engine{rules: catalog}

// Evaluate runs every catalog rule.
func Evaluate(m parser.BuildManifest, s metrics.Snapshot) []Finding {
	return defaultEngine.Evaluate(m, s)
}

// Evaluate runs the engine's rules and returns findings ordered by
// descending severity, ties in registration order. The result is never nil.
func (e *Engine) Evaluate(m parser.BuildManifest, s metrics.Snapshot) []Finding {
	in := input{manifest: m, metrics: s}
	out := make([]Finding, 0, len(e.rules))
	for _, r := range e.rules {
		sev, evidence, ok := r.check(in)
		if !ok {
			continue
		}
		if evidence == nil {
			evidence = []string{}
		}
		out = append(out, Finding{
			Code:             r.code,
			Severity:         sev,
			LikelyCause:      r.cause,
			Evidence:         evidence,
			SuggestedActions: append([]string(nil), r.actions...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return SeverityRank(out[i].Severity) > SeverityRank(out[j].Severity)
	})
	return out
}

// Codes returns the codes of the engine's enabled rules in order.
func (e *Engine) Codes() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.code
	}
	return out
}
