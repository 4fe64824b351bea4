package models

import (
	"time"

	xutil "OddsPulse/pkg/util"
)

// Requests for the HTTP and websocket endpoints. Numeric snapshot fields are pointers so
// that a legitimate 0 handicap passes "required" while a missing field does not.

type SnapshotFields struct {
	InitialHandicap  *float64 `json:"initialHandicap" validate:"required,gte=-20,lte=20"`
	CurrentHandicap  *float64 `json:"currentHandicap" validate:"required,gte=-20,lte=20"`
	InitialWater     *float64 `json:"initialWater" validate:"required,gt=0,lte=10"`
	CurrentWater     *float64 `json:"currentWater" validate:"required,gt=0,lte=10"`
	HistoricalRecord string   `json:"historicalRecord" default:"unknown" validate:"oneof=win loss unknown"`
}

// Snapshot converts validated fields into a MarketSnapshot.
func (f SnapshotFields) Snapshot() MarketSnapshot {
	return NewSnapshot(deref(f.InitialHandicap), deref(f.CurrentHandicap), deref(f.InitialWater), deref(f.CurrentWater), f.HistoricalRecord)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

type RecommendRequest struct {
	Type string `json:"type" validate:"required,oneof=asian size"`
	SnapshotFields
}

type CreateRecordRequest struct {
	UserID       string `json:"userId" validate:"required,max=128"`
	MatchName    string `json:"matchName" validate:"max=200"`
	HandicapType string `json:"handicapType" validate:"required,oneof=asian size"`
	SnapshotFields
}

type ResolveRecordRequest struct {
	ID           string `param:"id" json:"-" validate:"required,uuid"`
	UserID       string `json:"userId" validate:"omitempty,max=128"`
	ActualResult string `json:"actualResult" validate:"required,oneof=win loss"`
}

type RecordIDRequest struct {
	ID     string `param:"id" validate:"required,uuid"`
	UserID string `query:"userId" validate:"omitempty,max=128"`
}

type ListRecordsRequest struct {
	UserID string `query:"userId" validate:"required,max=128"`
	Type   string `query:"type" validate:"omitempty,oneof=asian size"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"50" validate:"min=1,max=500"`
	Offset int    `query:"offset" validate:"min=0"`
}

// Filter converts the request into a store filter. Unparseable times are ignored.
func (r ListRecordsRequest) Filter() RecordFilter {
	var from, to time.Time
	if t, ok := xutil.ParseTime(r.From); ok {
		from = t
	}
	if t, ok := xutil.ParseTime(r.To); ok {
		to = t
	}
	return RecordFilter{
		UserID:       r.UserID,
		HandicapType: HandicapType(r.Type),
		From:         from,
		To:           to,
		Limit:        r.Limit,
		Offset:       r.Offset,
	}
}

type StatsRequest struct {
	UserID string `query:"userId" validate:"required,max=128"`
}

type HistoryRequest struct {
	UserID string `query:"userId" validate:"required,max=128"`
	Limit  int    `query:"limit" default:"10" validate:"min=1,max=100"`
}
