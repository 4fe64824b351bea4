package models

import "github.com/shopspring/decimal"

// HandicapType is the kind of betting line a snapshot describes.
type HandicapType string

const (
	HandicapAsian HandicapType = "asian" // Asian handicap: upper vs lower
	HandicapSize  HandicapType = "size"  // over/under total: large vs small
)

func (t HandicapType) Valid() bool {
	return t == HandicapAsian || t == HandicapSize
}

// HistoricalRecord is the outcome of the previous comparable bet.
type HistoricalRecord string

const (
	HistoryWin     HistoricalRecord = "win"
	HistoryLoss    HistoricalRecord = "loss"
	HistoryUnknown HistoricalRecord = "unknown"
)

// NormalizeHistory maps anything other than win/loss to unknown.
func NormalizeHistory(s string) HistoricalRecord {
	switch HistoricalRecord(s) {
	case HistoryWin, HistoryLoss:
		return HistoricalRecord(s)
	default:
		return HistoryUnknown
	}
}

// MarketSnapshot is the opening and current state of one line.
type MarketSnapshot struct {
	InitialHandicap decimal.Decimal
	CurrentHandicap decimal.Decimal
	InitialWater    decimal.Decimal
	CurrentWater    decimal.Decimal
	History         HistoricalRecord
}

// HandicapChange is current minus initial handicap.
func (s MarketSnapshot) HandicapChange() decimal.Decimal {
	return s.CurrentHandicap.Sub(s.InitialHandicap)
}

// WaterChange is current minus initial water.
func (s MarketSnapshot) WaterChange() decimal.Decimal {
	return s.CurrentWater.Sub(s.InitialWater)
}

// NewSnapshot builds a snapshot from float inputs as they arrive from JSON or flags.
func NewSnapshot(initialHandicap, currentHandicap, initialWater, currentWater float64, history string) MarketSnapshot {
	return MarketSnapshot{
		InitialHandicap: decimal.NewFromFloat(initialHandicap),
		CurrentHandicap: decimal.NewFromFloat(currentHandicap),
		InitialWater:    decimal.NewFromFloat(initialWater),
		CurrentWater:    decimal.NewFromFloat(currentWater),
		History:         NormalizeHistory(history),
	}
}
