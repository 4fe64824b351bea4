package service

import "OddsPulse/internal/domain/models"

// LineScorer turns a market snapshot into a recommendation. Implementations are pure.
type LineScorer interface {
	Type() models.HandicapType
	Score(s models.MarketSnapshot) models.Recommendation
}

// WinRateAggregator folds grouped outcome rows into a stats summary. Implementations are pure.
type WinRateAggregator interface {
	Aggregate(userID string, rows []models.GroupedRow) models.StatsSummary
}
