package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patchwaste/internal/metrics"
	"github.com/dshills/patchwaste/internal/parser"
)

func manifest(records ...parser.ChangeRecord) parser.BuildManifest {
	return parser.BuildManifest{Mode: parser.ModeBestEffort, Records: records}
}

func file(path string, newBytes, changed uint64) parser.ChangeRecord {
	return parser.ChangeRecord{Path: path, Kind: parser.KindFile, NewBytes: newBytes, ChangedContentBytes: changed}
}

func pack(path string, newBytes, changed uint64) parser.ChangeRecord {
	return parser.ChangeRecord{Path: path, Kind: parser.KindPackedContainer, NewBytes: newBytes, ChangedContentBytes: changed}
}

func evaluate(t *testing.T, m parser.BuildManifest) []Finding {
	t.Helper()
	s, err := metrics.Compute(m)
	require.NoError(t, err)
	return Evaluate(m, s)
}

func find(fs []Finding, code string) (Finding, bool) {
	for _, f := range fs {
		if f.Code == code {
			return f, true
		}
	}
	return Finding{}, false
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityRank(SeverityCritical), SeverityRank(SeverityHigh))
	assert.Greater(t, SeverityRank(SeverityHigh), SeverityRank(SeverityMedium))
	assert.Greater(t, SeverityRank(SeverityMedium), SeverityRank(SeverityLow))
	assert.Equal(t, 0, SeverityRank("bogus"))
	assert.True(t, AtLeast(SeverityHigh, SeverityMedium))
	assert.False(t, AtLeast(SeverityLow, SeverityMedium))
}

func TestHighWasteRatio(t *testing.T) {
	tests := []struct {
		name    string
		changed uint64
		want    Severity
		fires   bool
	}{
		{"efficient", 800, "", false},
		{"just below medium", 501, "", false},
		{"medium at threshold", 500, SeverityMedium, true},
		{"medium at high threshold", 250, SeverityMedium, true},
		{"high", 100, SeverityHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := metrics.Snapshot{NewBytes: 1000, ChangedContentBytes: tt.changed}
			s.DeltaEfficiency, s.WasteRatio = metrics.Ratios(s.NewBytes, s.ChangedContentBytes)
			s.Confidence = metrics.Confidence{Overall: metrics.LevelHigh}
			fs := Evaluate(manifest(file("a", 1000, tt.changed)), s)

			f, ok := find(fs, CodeHighWasteRatio)
			assert.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, tt.want, f.Severity)
				assert.Contains(t, f.Evidence[0], "waste_ratio=")
			}
		})
	}
}

func TestHighWasteRatio_Scenario(t *testing.T) {
	fs := evaluate(t, manifest(file("big.pak", 10_000_000, 1_000_000)))
	f, ok := find(fs, CodeHighWasteRatio)
	require.True(t, ok)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.Contains(t, f.Evidence, "waste_ratio=0.9000")
	assert.NotEmpty(t, f.LikelyCause)
	assert.NotEmpty(t, f.SuggestedActions)
}

func TestHighWasteRatio_NothingTransferred(t *testing.T) {
	fs := evaluate(t, manifest(file("a", 0, 0)))
	_, ok := find(fs, CodeHighWasteRatio)
	assert.False(t, ok)
}

func TestLargeTopOffender(t *testing.T) {
	tests := []struct {
		name     string
		records  []parser.ChangeRecord
		fires    bool
		wantPath string
		wantSev  Severity
	}{
		{
			name:    "balanced",
			records: []parser.ChangeRecord{file("a", 100, 100), file("b", 100, 100), file("c", 100, 100)},
		},
		{
			name:     "dominant small",
			records:  []parser.ChangeRecord{file("a", 100, 100), file("b", 900, 900)},
			fires:    true,
			wantPath: "b",
			wantSev:  SeverityMedium,
		},
		{
			name:     "dominant large",
			records:  []parser.ChangeRecord{file("a", 1, 1), file("huge.pak", 200<<20, 200<<20)},
			fires:    true,
			wantPath: "huge.pak",
			wantSev:  SeverityHigh,
		},
		{
			name:     "tie first occurrence wins",
			records:  []parser.ChangeRecord{file("first", 500, 500), file("second", 500, 500)},
			fires:    true,
			wantPath: "first",
			wantSev:  SeverityMedium,
		},
		{
			name:    "exactly forty percent",
			records: []parser.ChangeRecord{file("a", 40, 40), file("b", 30, 30), file("c", 30, 30)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := evaluate(t, manifest(tt.records...))
			f, ok := find(fs, CodeLargeTopOffender)
			require.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, tt.wantSev, f.Severity)
				assert.Equal(t, "path="+tt.wantPath, f.Evidence[0])
			}
		})
	}
}

func TestPackedContainerChurn(t *testing.T) {
	tests := []struct {
		name    string
		records []parser.ChangeRecord
		want    Severity
		fires   bool
	}{
		{
			name:    "no packs",
			records: []parser.ChangeRecord{file("a", 100, 10)},
		},
		{
			name:    "small share",
			records: []parser.ChangeRecord{file("a", 900, 900), pack("p.pak", 100, 0)},
		},
		{
			name:    "efficient packs",
			records: []parser.ChangeRecord{file("a", 100, 100), pack("p.pak", 100, 80)},
		},
		{
			name:    "wasteful packs",
			records: []parser.ChangeRecord{file("a", 100, 100), pack("p.pak", 100, 30)},
			want:    SeverityHigh,
			fires:   true,
		},
		{
			name:    "rewritten packs",
			records: []parser.ChangeRecord{file("a", 100, 100), pack("p.pak", 100, 5), pack("q.pak", 100, 5)},
			want:    SeverityCritical,
			fires:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := evaluate(t, manifest(tt.records...))
			f, ok := find(fs, CodePackedContainerChurn)
			require.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, tt.want, f.Severity)
			}
		})
	}
}

func TestDeclaredTotalMismatch(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }
	tests := []struct {
		name     string
		declared *uint64
		fires    bool
	}{
		{"no declared total", nil, false},
		{"equal", u(1000), false},
		{"within one percent", u(1010), false},
		{"off by more", u(2000), true},
		{"declared zero", u(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := manifest(file("a", 1000, 1000))
			if tt.declared != nil {
				m.Declared = &parser.Counters{PredictedUpdateBytes: tt.declared}
			}
			fs := evaluate(t, m)
			f, ok := find(fs, CodeDeclaredTotalMismatch)
			require.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, SeverityLow, f.Severity)
			}
		})
	}
}

func TestDeclaredTotalMismatch_MergedLogs(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }
	declaredOnly := parser.BuildManifest{Declared: &parser.Counters{PredictedUpdateBytes: u(1000)}}
	recordsOnly := manifest(file("b", 9000, 9000))

	m, err := parser.Merge(declaredOnly, recordsOnly)
	require.NoError(t, err)
	_, ok := find(evaluate(t, m), CodeDeclaredTotalMismatch)
	assert.False(t, ok, "logs that never list and declare together cannot disagree")

	off := manifest(file("c", 1000, 1000))
	off.Declared = &parser.Counters{PredictedUpdateBytes: u(2000)}
	m, err = parser.Merge(off, recordsOnly)
	require.NoError(t, err)
	f, ok := find(evaluate(t, m), CodeDeclaredTotalMismatch)
	require.True(t, ok)
	assert.Contains(t, f.Evidence, "declared_new_bytes=2000")
	assert.Contains(t, f.Evidence, "record_new_bytes=1000")
}

func TestEstimatedMetrics(t *testing.T) {
	est := file("a", 100, 100)
	est.Estimated = true
	fs := evaluate(t, manifest(est))
	f, ok := find(fs, CodeEstimatedMetrics)
	require.True(t, ok)
	assert.Contains(t, f.Evidence, "confidence_overall=LOW")

	fs = evaluate(t, manifest(file("a", 100, 100)))
	_, ok = find(fs, CodeEstimatedMetrics)
	assert.False(t, ok)
}

func TestParseWarnings(t *testing.T) {
	m := manifest(file("a", 100, 100))
	m.Warnings = []string{"line 3: bad"}
	f, ok := find(evaluate(t, m), CodeParseWarnings)
	require.True(t, ok)
	assert.Equal(t, SeverityLow, f.Severity)
	assert.Equal(t, []string{"warnings=1", "first_warning=line 3: bad"}, f.Evidence)

	for i := 0; i < 9; i++ {
		m.Warnings = append(m.Warnings, "line x: bad")
	}
	f, ok = find(evaluate(t, m), CodeParseWarnings)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, f.Severity)
}

func TestEvaluate_OrderAndDeterminism(t *testing.T) {
	est := pack("p.pak", 1000, 10)
	est.Estimated = true
	m := manifest(file("a", 10, 10), est)
	m.Warnings = []string{"line 9: ?"}
	m.Declared = &parser.Counters{PredictedUpdateBytes: func() *uint64 { v := uint64(5000); return &v }()}

	first := evaluate(t, m)
	second := evaluate(t, m)
	assert.Equal(t, first, second)

	require.NotEmpty(t, first)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, SeverityRank(first[i-1].Severity), SeverityRank(first[i].Severity))
	}

	// Equal severities keep registration order.
	var lows []string
	for _, f := range first {
		if f.Severity == SeverityLow {
			lows = append(lows, f.Code)
		}
	}
	assert.Equal(t, []string{CodeDeclaredTotalMismatch, CodeEstimatedMetrics, CodeParseWarnings}, lows)
}

func TestEvaluate_NeverNil(t *testing.T) {
	fs := evaluate(t, manifest(file("a", 10, 10), file("b", 10, 10), file("c", 10, 10)))
	assert.NotNil(t, fs)
	assert.Empty(t, fs)
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine([]string{CodeLargeTopOffender})
	require.NoError(t, err)
	assert.NotContains(t, e.Codes(), CodeLargeTopOffender)
	assert.Len(t, e.Codes(), len(Catalog())-1)

	m := manifest(file("big.pak", 10_000_000, 1_000_000))
	s, err := metrics.Compute(m)
	require.NoError(t, err)
	fs := e.Evaluate(m, s)
	_, ok := find(fs, CodeLargeTopOffender)
	assert.False(t, ok)
	_, ok = find(fs, CodeHighWasteRatio)
	assert.True(t, ok)

	_, err = NewEngine([]string{"NOPE"})
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	require.Len(t, c, 6)
	assert.Equal(t, CodeHighWasteRatio, c[0].Code)
	assert.Equal(t, CodeLargeTopOffender, c[1].Code)
	for _, r := range c {
		assert.NotEmpty(t, r.Description, r.Code)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Finding{
		{Severity: SeverityLow}, {Severity: SeverityCritical}, {Severity: SeverityLow}, {Severity: SeverityMedium},
	})
	assert.Equal(t, SeverityCounts{Low: 2, Medium: 1, Critical: 1}, s.Counts)
	assert.Equal(t, SeverityCritical, s.HighestSeverity)
	assert.Equal(t, Severity(""), Summarize(nil).HighestSeverity)
}
