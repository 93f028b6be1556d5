package report

import (
	"encoding/json"
	"fmt"
)

// PartialMetrics is the optional view of a report's metrics.
type PartialMetrics struct {
	NewBytes            *uint64  `json:"new_bytes"`
	ChangedContentBytes *uint64  `json:"changed_content_bytes"`
	DeltaEfficiency     *float64 `json:"delta_efficiency"`
	WasteRatio          *float64 `json:"waste_ratio"`
}

// PartialDepot is the optional view of one per-depot entry.
type PartialDepot struct {
	Depot   string          `json:"depot"`
	Metrics *PartialMetrics `json:"metrics"`
}

// Partial is a report as read from a baseline file. Any field may be
// missing, including the whole metrics object.
type Partial struct {
	ReportVersion *string         `json:"report_version"`
	InputPath     *string         `json:"input_path"`
	Metrics       *PartialMetrics `json:"metrics"`
	PerDepot      []PartialDepot  `json:"per_depot"`
}

// ParsePartial decodes a possibly partial or older report. It does not
// check the schema version; callers decide how to treat a newer one.
func ParsePartial(data []byte) (Partial, error) {
	var p Partial
	if err := json.Unmarshal(data, &p); err != nil {
		return Partial{}, fmt.Errorf("decoding baseline report: %w", err)
	}
	return p, nil
}

// NewBytes returns the baseline's new_bytes counter if present.
func (p Partial) NewBytes() (uint64, bool) {
	if p.Metrics == nil || p.Metrics.NewBytes == nil {
		return 0, false
	}
	return *p.Metrics.NewBytes, true
}

// DepotNewBytes returns a depot's new_bytes counter if present.
func (p Partial) DepotNewBytes(id string) (uint64, bool) {
	for _, d := range p.PerDepot {
		if d.Depot == id && d.Metrics != nil && d.Metrics.NewBytes != nil {
			return *d.Metrics.NewBytes, true
		}
	}
	return 0, false
}

// Version returns the baseline's report_version, or "" when absent.
func (p Partial) Version() string {
	if p.ReportVersion == nil {
		return ""
	}
	return *p.ReportVersion
}
