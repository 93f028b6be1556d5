package metrics

import (
	"fmt"
	"sort"

	"github.com/dshills/patchwaste/internal/parser"
)

// ErrOverflow is returned when aggregated byte counts do not fit in 64 bits.
var ErrOverflow = parser.ErrOverflow

// Level is a confidence level for a counter.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// LevelRank returns a numeric rank for comparison (higher = more confident).
func LevelRank(l Level) int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	default:
		return 0
	}
}

// Confidence describes how much each counter can be trusted.
type Confidence struct {
	NewBytes            Level `json:"new_bytes"`
	ChangedContentBytes Level `json:"changed_content_bytes"`
	Overall             Level `json:"overall"`
}

// Snapshot is the aggregate view of one manifest.
type Snapshot struct {
	NewBytes            uint64     `json:"new_bytes"`
	ChangedContentBytes uint64     `json:"changed_content_bytes"`
	DeltaEfficiency     float64    `json:"delta_efficiency"`
	WasteRatio          float64    `json:"waste_ratio"`
	Confidence          Confidence `json:"confidence"`
}

// Estimated reports whether any counter is below high confidence.
func (s Snapshot) Estimated() bool {
	return s.Confidence.Overall != LevelHigh
}

type side struct {
	value   uint64
	present bool
	level   Level
}

// Compute derives a snapshot from a manifest. Each contributing log is
// measured on its own: declared totals take precedence over record sums,
// gaps are filled from the other counter and marked LOW. The logs are then
// summed per counter, each counter keeping the lowest level any log gave
// it. Logs without records or counters do not contribute. When nothing is
// transferred the efficiency is 0 and the waste ratio 1.
func Compute(m parser.BuildManifest) (Snapshot, error) {
	newSide := side{level: LevelLow}
	changedSide := side{level: LevelLow}
	counted := 0
	for _, u := range m.Units() {
		if len(u.Records) == 0 && u.Declared == nil {
			continue
		}
		n, c, err := computeUnit(u)
		if err != nil {
			return Snapshot{}, err
		}
		if counted == 0 {
			newSide, changedSide = n, c
		} else {
			if newSide, err = newSide.add(n); err != nil {
				return Snapshot{}, fmt.Errorf("summing new_bytes: %w", err)
			}
			if changedSide, err = changedSide.add(c); err != nil {
				return Snapshot{}, fmt.Errorf("summing changed_content_bytes: %w", err)
			}
		}
		counted++
	}

	s := Snapshot{
		NewBytes:            newSide.value,
		ChangedContentBytes: changedSide.value,
		Confidence: Confidence{
			NewBytes:            newSide.level,
			ChangedContentBytes: changedSide.level,
			Overall:             overall(newSide.level, changedSide.level),
		},
	}
	s.DeltaEfficiency, s.WasteRatio = Ratios(s.NewBytes, s.ChangedContentBytes)
	return s, nil
}

// computeUnit measures a single log. Both returned sides are present and
// changed never exceeds new.
func computeUnit(m parser.BuildManifest) (side, side, error) {
	sumNew, sumChanged, err := m.RecordTotals()
	if err != nil {
		return side{}, side{}, err
	}
	recordLevel := recordsLevel(m.Records)

	newSide := side{level: LevelLow}
	changedSide := side{level: LevelLow}
	if len(m.Records) > 0 {
		newSide = side{value: sumNew, present: true, level: recordLevel}
		changedSide = side{value: sumChanged, present: true, level: recordLevel}
	}
	if m.Declared != nil {
		if p := m.Declared.PredictedUpdateBytes; p != nil {
			newSide = side{value: *p, present: true, level: declaredLevel(*p)}
		}
		if c := m.Declared.ChangedContentBytes; c != nil {
			changedSide = side{value: *c, present: true, level: declaredLevel(*c)}
		}
	}

	switch {
	case newSide.present && !changedSide.present:
		changedSide = side{value: newSide.value, present: true, level: LevelLow}
	case !newSide.present && changedSide.present:
		newSide = side{value: changedSide.value, present: true, level: LevelLow}
	}

	if newSide.value == 0 && changedSide.value > 0 {
		newSide.value = changedSide.value
		newSide.level = LevelLow
	}
	if changedSide.value > newSide.value {
		changedSide.value = newSide.value
		changedSide.level = LevelLow
	}
	return newSide, changedSide, nil
}

func (s side) add(o side) (side, error) {
	v, ok := parser.AddBytes(s.value, o.value)
	if !ok {
		return side{}, ErrOverflow
	}
	level := s.level
	if LevelRank(o.level) < LevelRank(level) {
		level = o.level
	}
	return side{value: v, present: s.present || o.present, level: level}, nil
}

// Ratios returns delta efficiency and waste ratio for the given counters.
// changed is clamped to newBytes so both results stay within [0, 1].
func Ratios(newBytes, changed uint64) (efficiency, waste float64) {
	if newBytes == 0 {
		return 0, 1
	}
	if changed > newBytes {
		changed = newBytes
	}
	efficiency = float64(changed) / float64(newBytes)
	return efficiency, 1 - efficiency
}

// ComputeByDepot computes one snapshot per depot manifest.
func ComputeByDepot(depots map[string]parser.BuildManifest) (map[string]Snapshot, error) {
	if len(depots) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(depots))
	for id := range depots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]Snapshot, len(depots))
	for _, id := range ids {
		s, err := Compute(depots[id])
		if err != nil {
			return nil, fmt.Errorf("depot %s: %w", id, err)
		}
		out[id] = s
	}
	return out, nil
}

func recordsLevel(records []parser.ChangeRecord) Level {
	estimated := 0
	for _, r := range records {
		if r.Estimated {
			estimated++
		}
	}
	switch {
	case estimated == 0:
		return LevelHigh
	case estimated < len(records):
		return LevelMedium
	default:
		return LevelLow
	}
}

func declaredLevel(v uint64) Level {
	if v > 0 {
		return LevelHigh
	}
	return LevelMedium
}

func overall(a, b Level) Level {
	lo := a
	if LevelRank(b) < LevelRank(a) {
		lo = b
	}
	if LevelRank(lo) == 0 {
		return LevelLow
	}
	return lo
}
