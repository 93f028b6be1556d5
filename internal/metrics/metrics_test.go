package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patchwaste/internal/parser"
)

func rec(newBytes, changed uint64, estimated bool) parser.ChangeRecord {
	return parser.ChangeRecord{Path: "p", Kind: parser.KindFile, NewBytes: newBytes, ChangedContentBytes: changed, Estimated: estimated}
}

func u64(v uint64) *uint64 { return &v }

func TestCompute_SingleRecordScenario(t *testing.T) {
	s, err := Compute(parser.BuildManifest{Records: []parser.ChangeRecord{rec(10_000_000, 1_000_000, false)}})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), s.NewBytes)
	assert.Equal(t, uint64(1_000_000), s.ChangedContentBytes)
	assert.InDelta(t, 0.1, s.DeltaEfficiency, 1e-12)
	assert.InDelta(t, 0.9, s.WasteRatio, 1e-12)
	assert.Equal(t, Confidence{LevelHigh, LevelHigh, LevelHigh}, s.Confidence)
	assert.False(t, s.Estimated())
}

func TestCompute_Policy(t *testing.T) {
	tests := []struct {
		name        string
		manifest    parser.BuildManifest
		wantNew     uint64
		wantChanged uint64
		wantConf    Confidence
	}{
		{
			name:     "empty manifest",
			manifest: parser.BuildManifest{},
			wantConf: Confidence{LevelLow, LevelLow, LevelLow},
		},
		{
			name:        "some records estimated",
			manifest:    parser.BuildManifest{Records: []parser.ChangeRecord{rec(100, 10, false), rec(50, 50, true)}},
			wantNew:     150,
			wantChanged: 60,
			wantConf:    Confidence{LevelMedium, LevelMedium, LevelMedium},
		},
		{
			name:        "all records estimated",
			manifest:    parser.BuildManifest{Records: []parser.ChangeRecord{rec(50, 50, true)}},
			wantNew:     50,
			wantChanged: 50,
			wantConf:    Confidence{LevelLow, LevelLow, LevelLow},
		},
		{
			name: "declared totals override records",
			manifest: parser.BuildManifest{
				Records:  []parser.ChangeRecord{rec(100, 10, false)},
				Declared: &parser.Counters{PredictedUpdateBytes: u64(1000), ChangedContentBytes: u64(400)},
			},
			wantNew:     1000,
			wantChanged: 400,
			wantConf:    Confidence{LevelHigh, LevelHigh, LevelHigh},
		},
		{
			name: "declared predicted with summed changed",
			manifest: parser.BuildManifest{
				Records:  []parser.ChangeRecord{rec(100, 10, true)},
				Declared: &parser.Counters{PredictedUpdateBytes: u64(1000)},
			},
			wantNew:     1000,
			wantChanged: 10,
			wantConf:    Confidence{LevelHigh, LevelLow, LevelLow},
		},
		{
			name:        "only predicted declared",
			manifest:    parser.BuildManifest{Declared: &parser.Counters{PredictedUpdateBytes: u64(500)}},
			wantNew:     500,
			wantChanged: 500,
			wantConf:    Confidence{LevelHigh, LevelLow, LevelLow},
		},
		{
			name:        "only changed declared",
			manifest:    parser.BuildManifest{Declared: &parser.Counters{ChangedContentBytes: u64(500)}},
			wantNew:     500,
			wantChanged: 500,
			wantConf:    Confidence{LevelLow, LevelHigh, LevelLow},
		},
		{
			name:        "zero predicted with changed",
			manifest:    parser.BuildManifest{Declared: &parser.Counters{PredictedUpdateBytes: u64(0), ChangedContentBytes: u64(40)}},
			wantNew:     40,
			wantChanged: 40,
			wantConf:    Confidence{LevelLow, LevelHigh, LevelLow},
		},
		{
			name:        "changed exceeds predicted",
			manifest:    parser.BuildManifest{Declared: &parser.Counters{PredictedUpdateBytes: u64(100), ChangedContentBytes: u64(400)}},
			wantNew:     100,
			wantChanged: 100,
			wantConf:    Confidence{LevelHigh, LevelLow, LevelLow},
		},
		{
			name:     "declared zeros",
			manifest: parser.BuildManifest{Declared: &parser.Counters{PredictedUpdateBytes: u64(0), ChangedContentBytes: u64(0)}},
			wantConf: Confidence{LevelMedium, LevelMedium, LevelMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compute(tt.manifest)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNew, s.NewBytes)
			assert.Equal(t, tt.wantChanged, s.ChangedContentBytes)
			assert.Equal(t, tt.wantConf, s.Confidence)
			assertRatiosInRange(t, s)
		})
	}
}

func merged(t *testing.T, logs ...parser.BuildManifest) parser.BuildManifest {
	t.Helper()
	m, err := parser.Merge(logs...)
	require.NoError(t, err)
	return m
}

func TestCompute_MergedLogs(t *testing.T) {
	tests := []struct {
		name        string
		logs        []parser.BuildManifest
		wantNew     uint64
		wantChanged uint64
		wantConf    Confidence
	}{
		{
			name: "declared log plus estimated records stays estimated",
			logs: []parser.BuildManifest{
				{Declared: &parser.Counters{PredictedUpdateBytes: u64(1000), ChangedContentBytes: u64(500)}},
				{Records: []parser.ChangeRecord{rec(9000, 9000, true)}},
			},
			wantNew:     10000,
			wantChanged: 9500,
			wantConf:    Confidence{LevelLow, LevelLow, LevelLow},
		},
		{
			name: "predicted-only log copies its changed side",
			logs: []parser.BuildManifest{
				{Declared: &parser.Counters{PredictedUpdateBytes: u64(9000)}},
				{Records: []parser.ChangeRecord{rec(1000, 1000, false)}},
			},
			wantNew:     10000,
			wantChanged: 10000,
			wantConf:    Confidence{LevelHigh, LevelLow, LevelLow},
		},
		{
			name: "exact logs stay high",
			logs: []parser.BuildManifest{
				{Declared: &parser.Counters{PredictedUpdateBytes: u64(1000), ChangedContentBytes: u64(100)}},
				{Records: []parser.ChangeRecord{rec(1000, 900, false)}},
				{},
			},
			wantNew:     2000,
			wantChanged: 1000,
			wantConf:    Confidence{LevelHigh, LevelHigh, LevelHigh},
		},
		{
			name: "partly estimated log caps at medium",
			logs: []parser.BuildManifest{
				{Records: []parser.ChangeRecord{rec(100, 10, false), rec(50, 50, true)}},
				{Declared: &parser.Counters{PredictedUpdateBytes: u64(50), ChangedContentBytes: u64(40)}},
			},
			wantNew:     200,
			wantChanged: 100,
			wantConf:    Confidence{LevelMedium, LevelMedium, LevelMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compute(merged(t, tt.logs...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantNew, s.NewBytes)
			assert.Equal(t, tt.wantChanged, s.ChangedContentBytes)
			assert.Equal(t, tt.wantConf, s.Confidence)
			assertRatiosInRange(t, s)
		})
	}
}

func TestCompute_MergedMatchesSingleLog(t *testing.T) {
	one := parser.BuildManifest{
		Records:  []parser.ChangeRecord{rec(100, 10, false)},
		Declared: &parser.Counters{PredictedUpdateBytes: u64(120)},
	}
	alone, err := Compute(one)
	require.NoError(t, err)
	m, err := Compute(merged(t, one))
	require.NoError(t, err)
	assert.Equal(t, alone, m)
}

func TestCompute_MergedOverflow(t *testing.T) {
	_, err := Compute(merged(t,
		parser.BuildManifest{Declared: &parser.Counters{PredictedUpdateBytes: u64(math.MaxUint64)}},
		parser.BuildManifest{Records: []parser.ChangeRecord{rec(1, 1, false)}},
	))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCompute_ZeroNewBytes(t *testing.T) {
	s, err := Compute(parser.BuildManifest{Records: []parser.ChangeRecord{rec(0, 0, false)}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.DeltaEfficiency)
	assert.Equal(t, 1.0, s.WasteRatio)
}

func TestCompute_Overflow(t *testing.T) {
	m := parser.BuildManifest{Records: []parser.ChangeRecord{rec(math.MaxUint64, 0, false), rec(1, 0, false)}}
	_, err := Compute(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverflow))
}

func TestCompute_RatiosAlwaysInRange(t *testing.T) {
	values := []uint64{0, 1, 7, 1 << 20, math.MaxUint64 / 2}
	for _, n := range values {
		for _, c := range values {
			if c > n {
				continue
			}
			s, err := Compute(parser.BuildManifest{Records: []parser.ChangeRecord{rec(n, c, false)}})
			require.NoError(t, err)
			assertRatiosInRange(t, s)
		}
	}
}

func TestRatios_ClampsChanged(t *testing.T) {
	e, w := Ratios(10, 20)
	assert.Equal(t, 1.0, e)
	assert.Equal(t, 0.0, w)
}

func TestComputeByDepot(t *testing.T) {
	got, err := ComputeByDepot(map[string]parser.BuildManifest{
		"228981": {Records: []parser.ChangeRecord{rec(100, 25, false)}},
		"228982": {Records: []parser.ChangeRecord{rec(10, 10, false)}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.75, got["228981"].WasteRatio, 1e-12)
	assert.InDelta(t, 0.0, got["228982"].WasteRatio, 1e-12)

	none, err := ComputeByDepot(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ComputeByDepot(map[string]parser.BuildManifest{
		"1": {Records: []parser.ChangeRecord{rec(math.MaxUint64, 0, false), rec(1, 0, false)}},
	})
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Contains(t, err.Error(), "depot 1")
}

func assertRatiosInRange(t *testing.T, s Snapshot) {
	t.Helper()
	assert.GreaterOrEqual(t, s.DeltaEfficiency, 0.0)
	assert.LessOrEqual(t, s.DeltaEfficiency, 1.0)
	assert.InDelta(t, 1-s.DeltaEfficiency, s.WasteRatio, 1e-12)
	assert.LessOrEqual(t, s.ChangedContentBytes, s.NewBytes)
}
