package parser

import (
	"errors"
	"fmt"
	"math/bits"
)

// Mode controls how permissive parsing is.
type Mode string

const (
	ModeBestEffort Mode = "BEST_EFFORT"
	ModeStrict     Mode = "STRICT"
)

// ModeFor returns ModeStrict when strict is set and ModeBestEffort otherwise.
func ModeFor(strict bool) Mode {
	if strict {
		return ModeStrict
	}
	return ModeBestEffort
}

// Valid reports whether m is a known parse mode.
func (m Mode) Valid() bool {
	return m == ModeBestEffort || m == ModeStrict
}

// Kind classifies what a change record describes.
type Kind string

const (
	KindFile            Kind = "FILE"
	KindChunk           Kind = "CHUNK"
	KindPackedContainer Kind = "PACKED_CONTAINER"
)

// ChangeRecord is one changed or added file, chunk or packed container.
type ChangeRecord struct {
	Path                string `json:"path"`
	Kind                Kind   `json:"kind"`
	NewBytes            uint64 `json:"new_bytes"`
	ChangedContentBytes uint64 `json:"changed_content_bytes"`
	// Estimated is set when the log carried no changed-content counter for
	// this entry and ChangedContentBytes was assumed equal to NewBytes.
	Estimated bool `json:"estimated,omitempty"`
	Line      int  `json:"line"`
}

// Counters holds the aggregate totals a log declares about itself.
// A nil field means the log never mentioned that counter.
type Counters struct {
	PredictedUpdateBytes *uint64 `json:"predicted_update_bytes,omitempty"`
	ChangedContentBytes  *uint64 `json:"changed_content_bytes,omitempty"`
}

// BuildManifest is the structured form of a preview-patch log.
type BuildManifest struct {
	Mode     Mode
	Records  []ChangeRecord
	Declared *Counters
	Warnings []string
	// Fragments holds the single-log manifests a merged manifest was built
	// from. It is nil for a manifest parsed from one log.
	Fragments []BuildManifest
}

// Units returns the single-log manifests m is made of: its fragments when
// it was merged, otherwise m itself.
func (m BuildManifest) Units() []BuildManifest {
	if len(m.Fragments) > 0 {
		return m.Fragments
	}
	return []BuildManifest{m}
}

// HasCounters reports whether the manifest carries anything metrics can be
// computed from: at least one record or a declared predicted-update total.
func (m BuildManifest) HasCounters() bool {
	if len(m.Records) > 0 {
		return true
	}
	return m.Declared != nil && m.Declared.PredictedUpdateBytes != nil
}

// RecordTotals sums NewBytes and ChangedContentBytes over all records.
func (m BuildManifest) RecordTotals() (newBytes, changedBytes uint64, err error) {
	for _, r := range m.Records {
		var ok bool
		if newBytes, ok = AddBytes(newBytes, r.NewBytes); !ok {
			return 0, 0, fmt.Errorf("summing new_bytes at %s (line %d): %w", r.Path, r.Line, ErrOverflow)
		}
		if changedBytes, ok = AddBytes(changedBytes, r.ChangedContentBytes); !ok {
			return 0, 0, fmt.Errorf("summing changed_content_bytes at %s (line %d): %w", r.Path, r.Line, ErrOverflow)
		}
	}
	return newBytes, changedBytes, nil
}

// Merge combines several manifests into one. Records and warnings are
// concatenated in argument order and every input is kept in Fragments, so
// each log's counters can still be judged on their own. Declared is the sum
// of the counters the logs actually declared; a side no log declared stays
// nil and no record sums are folded into it.
func Merge(manifests ...BuildManifest) (BuildManifest, error) {
	var out BuildManifest
	if len(manifests) == 0 {
		out.Mode = ModeBestEffort
		return out, nil
	}
	out.Mode = manifests[0].Mode

	var predicted, changed *uint64
	for _, m := range manifests {
		out.Fragments = append(out.Fragments, m.Units()...)
		out.Records = append(out.Records, m.Records...)
		out.Warnings = append(out.Warnings, m.Warnings...)
		if m.Declared == nil {
			continue
		}
		var err error
		if predicted, err = addOptional(predicted, m.Declared.PredictedUpdateBytes); err != nil {
			return BuildManifest{}, fmt.Errorf("merging predicted update totals: %w", err)
		}
		if changed, err = addOptional(changed, m.Declared.ChangedContentBytes); err != nil {
			return BuildManifest{}, fmt.Errorf("merging changed content totals: %w", err)
		}
	}
	if predicted != nil || changed != nil {
		out.Declared = &Counters{PredictedUpdateBytes: predicted, ChangedContentBytes: changed}
	}
	return out, nil
}

func addOptional(acc, v *uint64) (*uint64, error) {
	if v == nil {
		return acc, nil
	}
	if acc == nil {
		x := *v
		return &x, nil
	}
	sum, ok := AddBytes(*acc, *v)
	if !ok {
		return nil, ErrOverflow
	}
	return &sum, nil
}

// AddBytes adds two byte counts and reports false if the sum overflows.
func AddBytes(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// ErrOverflow is returned when byte counters do not fit in 64 bits.
var ErrOverflow = errors.New("byte counter overflows 64 bits")

// ErrMalformed is matched by parse errors for unusable lines.
var ErrMalformed = errors.New("malformed log line")

// ErrNoCounters is matched by parse errors for logs with nothing to measure.
var ErrNoCounters = errors.New("missing required counters")

// ErrorKind distinguishes the parse failures.
type ErrorKind string

const (
	ErrorMalformed  ErrorKind = "MALFORMED"
	ErrorNoCounters ErrorKind = "NO_COUNTERS"
)

// ParseError is returned by strict parsing.
type ParseError struct {
	Kind   ErrorKind
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Kind == ErrorNoCounters {
		return "insufficient input: missing required counters; " +
			"expected FILE/CHUNK/PACK entries or PREDICTED_UPDATE_BYTES=... " +
			"(run without --strict to analyze anyway)"
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	if e.Kind == ErrorNoCounters {
		return ErrNoCounters
	}
	return ErrMalformed
}
