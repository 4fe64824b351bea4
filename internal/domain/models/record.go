package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMatchName is used when a record is created without a match name.
const DefaultMatchName = "Unnamed match"

// ActualResult is the resolved outcome of a record. Empty means unresolved.
type ActualResult string

const (
	ResultNone ActualResult = ""
	ResultWin  ActualResult = "win"
	ResultLoss ActualResult = "loss"
)

// Record is a persisted scoring: the snapshot, what was recommended, and later the real outcome.
type Record struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	MatchName        string           `json:"matchName"`
	HandicapType     HandicapType     `json:"handicapType"`
	InitialHandicap  decimal.Decimal  `json:"initialHandicap"`
	CurrentHandicap  decimal.Decimal  `json:"currentHandicap"`
	InitialWater     decimal.Decimal  `json:"initialWater"`
	CurrentWater     decimal.Decimal  `json:"currentWater"`
	HandicapChange   decimal.Decimal  `json:"handicapChange"`
	WaterChange      decimal.Decimal  `json:"waterChange"`
	HistoricalRecord HistoricalRecord `json:"historicalRecord"`
	Recommendation   Side             `json:"recommendation"`
	Confidence       Confidence       `json:"confidence"`
	Score            float64          `json:"score"`
	ActualResult     ActualResult     `json:"actualResult"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Snapshot rebuilds the scoring input from the stored values.
func (r *Record) Snapshot() MarketSnapshot {
	return MarketSnapshot{
		InitialHandicap: r.InitialHandicap,
		CurrentHandicap: r.CurrentHandicap,
		InitialWater:    r.InitialWater,
		CurrentWater:    r.CurrentWater,
		History:         r.HistoricalRecord,
	}
}

// Resolved reports whether an outcome has been recorded.
func (r *Record) Resolved() bool {
	return r.ActualResult != ResultNone
}

// RecordBrief is the short form returned by the history endpoint.
type RecordBrief struct {
	ID             string       `json:"id"`
	MatchName      string       `json:"matchName"`
	HandicapType   HandicapType `json:"handicapType"`
	Recommendation Side         `json:"recommendation"`
	ActualResult   ActualResult `json:"actualResult"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func (r *Record) Brief() RecordBrief {
	return RecordBrief{
		ID:             r.ID,
		MatchName:      r.MatchName,
		HandicapType:   r.HandicapType,
		Recommendation: r.Recommendation,
		ActualResult:   r.ActualResult,
		CreatedAt:      r.CreatedAt,
	}
}

// RecordFilter selects records for listing. Zero values mean "no constraint";
// results are ordered newest first.
type RecordFilter struct {
	UserID       string
	HandicapType HandicapType
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

// Match reports whether r passes every set constraint except paging.
func (f RecordFilter) Match(r *Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.HandicapType != "" && r.HandicapType != f.HandicapType {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}
