package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OddsPulse/internal/domain/models"
)

func TestAsianScorer_WorkedExample(t *testing.T) {
	rec := NewAsianScorer().Score(models.NewSnapshot(1.0, 1.5, 1.0, 0.9, "win"))

	assert.Equal(t, models.HandicapAsian, rec.Type)
	assert.Equal(t, 3.0, rec.Score)
	assert.Equal(t, models.SideUpper, rec.Side)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, []string{TagUpperStrong, TagHistoryWin}, rec.Details)
	assert.Equal(t, "0.50", rec.Analysis.HandicapChange)
	assert.Equal(t, "-0.10", rec.Analysis.WaterChange)
	assert.Equal(t, 3.0, rec.Analysis.SignalStrength)
}

func TestSizeScorer_WorkedExample(t *testing.T) {
	rec := NewSizeScorer().Score(models.NewSnapshot(2.5, 2.0, 1.0, 1.1, "loss"))

	assert.Equal(t, -2.0, rec.Score)
	assert.Equal(t, models.SideSmall, rec.Side)
	assert.Equal(t, models.ConfidenceMedium, rec.Confidence)
	assert.Equal(t, []string{TagHistoryLoss, TagHighWaterBaitsLarge}, rec.Details)
	assert.Equal(t, 2.0, rec.Analysis.SignalStrength)
}

func TestAsianScorer_Rules(t *testing.T) {
	tests := []struct {
		name    string
		snap    models.MarketSnapshot
		score   float64
		side    models.Side
		conf    models.Confidence
		details []string
	}{
		{
			name:    "nothing moves",
			snap:    models.NewSnapshot(0.5, 0.5, 0.95, 0.95, "unknown"),
			score:   0,
			side:    models.SideHold,
			conf:    models.ConfidenceLow,
			details: []string{},
		},
		{
			name:    "lower strong with big drop and high water",
			snap:    models.NewSnapshot(1.0, 0.25, 1.0, 1.1, "loss"),
			score:   -5,
			side:    models.SideLower,
			conf:    models.ConfidenceHigh,
			details: []string{TagLowerStrong, TagHistoryLoss, TagHighWaterBait, TagHandicapDropLower},
		},
		{
			name:    "every positive rule",
			snap:    models.NewSnapshot(0, 0.75, 0.95, 0.8, "win"),
			score:   5,
			side:    models.SideUpper,
			conf:    models.ConfidenceHigh,
			details: []string{TagUpperStrong, TagHistoryWin, TagLowWaterDefensive, TagHandicapSurgeUpper},
		},
		{
			name:    "handicap up with water up is not a strong signal",
			snap:    models.NewSnapshot(0, 0.25, 0.9, 1.0, "unknown"),
			score:   0,
			side:    models.SideHold,
			conf:    models.ConfidenceLow,
			details: []string{},
		},
		{
			name:    "single point is medium",
			snap:    models.NewSnapshot(0, 0, 0.9, 0.9, "win"),
			score:   1,
			side:    models.SideUpper,
			conf:    models.ConfidenceMedium,
			details: []string{TagHistoryWin},
		},
	}

	s := NewAsianScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.Score(tt.snap)
			assert.Equal(t, tt.score, rec.Score)
			assert.Equal(t, tt.side, rec.Side)
			assert.Equal(t, tt.conf, rec.Confidence)
			assert.Equal(t, tt.details, rec.Details)
		})
	}
}

func TestScorers_WaterBoundaries(t *testing.T) {
	for _, s := range []*Scorer{NewAsianScorer(), NewSizeScorer()} {
		// 0.85 and 1.05 are exclusive on both rulebooks.
		for _, w := range []float64{0.85, 1.05} {
			rec := s.Score(models.NewSnapshot(2.5, 2.5, w, w, "unknown"))
			assert.Zero(t, rec.Score, "%s water %v", s.Type(), w)
			assert.Empty(t, rec.Details)
		}
	}
}

func TestAsianScorer_HandicapMoveBoundary(t *testing.T) {
	s := NewAsianScorer()

	rec := s.Score(models.NewSnapshot(0, -0.5, 0.95, 0.95, "unknown"))
	assert.Zero(t, rec.Score)

	rec = s.Score(models.NewSnapshot(0, -0.75, 0.95, 0.95, "unknown"))
	assert.Equal(t, -1.0, rec.Score)
	assert.Equal(t, []string{TagHandicapDropLower}, rec.Details)
	assert.Equal(t, models.SideLower, rec.Side)
	assert.Equal(t, models.ConfidenceMedium, rec.Confidence)
}

func TestSizeScorer_LineBoundaries(t *testing.T) {
	s := NewSizeScorer()

	tests := []struct {
		line  float64
		score float64
		tag   string
	}{
		{1.75, 0.5, TagLowLineFavorsLarge},
		{2.0, 0, ""},
		{2.5, 0, ""},
		{2.75, 0, ""},
		{3.0, -0.5, TagHighLineFavorsSmall},
	}
	for _, tt := range tests {
		rec := s.Score(models.NewSnapshot(tt.line, tt.line, 0.95, 0.95, "unknown"))
		assert.Equal(t, tt.score, rec.Score, "line %v", tt.line)
		assert.Equal(t, models.SideHold, rec.Side, "half point alone never leaves hold")
		if tt.tag == "" {
			assert.Empty(t, rec.Details)
		} else {
			assert.Equal(t, []string{tt.tag}, rec.Details)
		}
	}
}

func TestSizeScorer_StrongSignals(t *testing.T) {
	s := NewSizeScorer()

	rec := s.Score(models.NewSnapshot(2.25, 2.5, 0.9, 0.95, "win"))
	assert.Equal(t, 3.0, rec.Score)
	assert.Equal(t, models.SideLarge, rec.Side)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, []string{TagLargeStrong, TagHistoryWin}, rec.Details)

	rec = s.Score(models.NewSnapshot(3.0, 2.75, 0.95, 0.8, "unknown"))
	assert.Equal(t, -1.0, rec.Score)
	assert.Equal(t, []string{TagSmallStrong, TagLowWaterGuardsSmall}, rec.Details)
	assert.Equal(t, models.SideSmall, rec.Side)
	assert.Equal(t, models.ConfidenceMedium, rec.Confidence)

	rec = s.Score(models.NewSnapshot(3.25, 3.0, 1.0, 0.9, "loss"))
	assert.Equal(t, -3.5, rec.Score)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence)
}

func TestMapBand(t *testing.T) {
	tests := []struct {
		score float64
		side  models.Side
		conf  models.Confidence
	}{
		{3, models.SideUpper, models.ConfidenceHigh},
		{2.999, models.SideUpper, models.ConfidenceMedium},
		{2.5, models.SideUpper, models.ConfidenceMedium},
		{1, models.SideUpper, models.ConfidenceMedium},
		{0.999, models.SideHold, models.ConfidenceLow},
		{0.5, models.SideHold, models.ConfidenceLow},
		{0, models.SideHold, models.ConfidenceLow},
		{-0.5, models.SideHold, models.ConfidenceLow},
		{-0.999, models.SideHold, models.ConfidenceLow},
		{-1, models.SideLower, models.ConfidenceMedium},
		{-2.5, models.SideLower, models.ConfidenceMedium},
		{-2.999, models.SideLower, models.ConfidenceMedium},
		{-3, models.SideLower, models.ConfidenceHigh},
		{-6, models.SideLower, models.ConfidenceHigh},
	}
	for _, tt := range tests {
		side, conf := mapBand(tt.score, AsianSides)
		assert.Equal(t, tt.side, side, "score %v", tt.score)
		assert.Equal(t, tt.conf, conf, "score %v", tt.score)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	snap := models.NewSnapshot(1.0, 0.25, 1.0, 1.1, "loss")
	s := NewAsianScorer()
	first := s.Score(snap)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, s.Score(snap))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	s, ok := r.Get(models.HandicapAsian)
	require.True(t, ok)
	assert.Equal(t, models.HandicapAsian, s.Type())

	s, ok = r.Get(models.HandicapSize)
	require.True(t, ok)
	assert.Equal(t, models.HandicapSize, s.Type())

	_, ok = r.Get("corners")
	assert.False(t, ok)
}

func TestScorer_RulesCopy(t *testing.T) {
	s := NewAsianScorer()
	rules := s.Rules()
	require.Len(t, rules, 5)
	assert.Equal(t, KindMovement, rules[0].Kind)
	assert.Equal(t, KindHistory, rules[2].Kind)
	assert.Equal(t, "water-level", rules[3].Kind.String())

	rules[0] = Rule{}
	assert.Equal(t, KindMovement, s.Rules()[0].Kind)
}
