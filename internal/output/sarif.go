package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/patchwaste/internal/findings"
	"github.com/dshills/patchwaste/internal/report"
)

// SARIFWriter outputs findings in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, r *report.Report) error {
	sarif := buildSARIF(r)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations,omitempty"`
	Fixes      []sarifFix        `json:"fixes,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

func buildSARIF(r *report.Report) sarifLog {
	descriptions := make(map[string]string)
	for _, info := range findings.Catalog() {
		descriptions[info.Code] = info.Description
	}

	results := []sarifResult{}
	var rules []sarifRule
	seen := make(map[string]bool)

	for _, f := range r.Findings {
		if !seen[f.Code] {
			seen[f.Code] = true
			rules = append(rules, sarifRule{
				ID:               f.Code,
				Name:             f.Code,
				ShortDescription: sarifMessage{Text: descriptions[f.Code]},
				DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(f.Severity)},
			})
		}

		msg := f.LikelyCause
		if len(f.Evidence) > 0 {
			msg += " (" + strings.Join(f.Evidence, ", ") + ")"
		}
		result := sarifResult{
			RuleID:     f.Code,
			Level:      severityToLevel(f.Severity),
			Message:    sarifMessage{Text: msg},
			Properties: map[string]string{"severity": string(f.Severity)},
		}
		if uri := resultURI(r, f); uri != "" {
			result.Locations = []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: uri}},
			}}
		}
		for _, a := range f.SuggestedActions {
			result.Fixes = append(result.Fixes, sarifFix{Description: sarifMessage{Text: a}})
		}
		results = append(results, result)
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "patchwaste",
						Version:        r.ReportVersion,
						InformationURI: "https://github.com/dshills/patchwaste",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}
}

// resultURI points a finding at the offending entry when its evidence names
// one, otherwise at the analyzed input.
func resultURI(r *report.Report, f findings.Finding) string {
	for _, e := range f.Evidence {
		if p, ok := strings.CutPrefix(e, "path="); ok {
			return p
		}
	}
	return r.InputPath
}

// severityToLevel maps finding severity to SARIF level.
func severityToLevel(s findings.Severity) string {
	switch s {
	case findings.SeverityCritical, findings.SeverityHigh:
		return "error"
	case findings.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
