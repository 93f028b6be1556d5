package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrSchemaTooNew is returned for reports written by a newer major schema.
var ErrSchemaTooNew = errors.New("report schema version is newer than supported")

// Marshal encodes r as indented JSON with a trailing newline.
func Marshal(r Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a full report. Unknown keys are ignored and missing
// findings decode as an empty list.
func Unmarshal(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decoding report: %w", err)
	}
	if err := CheckVersion(r.ReportVersion); err != nil {
		return Report{}, err
	}
	r.Findings = normalizeFindings(r.Findings)
	return r, nil
}

// CheckVersion accepts an empty version (pre-versioned reports) and any
// version whose major component is not newer than ReportVersion's.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	sv := v
	if !strings.HasPrefix(sv, "v") {
		sv = "v" + sv
	}
	if !semver.IsValid(sv) {
		return fmt.Errorf("invalid report_version %q", v)
	}
	if semver.Compare(semver.Major(sv), semver.Major("v"+ReportVersion)) > 0 {
		return fmt.Errorf("report_version %s (supported major %s): %w", v, semver.Major("v"+ReportVersion), ErrSchemaTooNew)
	}
	return nil
}
