package models

import "github.com/shopspring/decimal"

// Trend is the direction of a stored change.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// WaterLevel buckets the current water.
type WaterLevel string

const (
	WaterLow    WaterLevel = "low"
	WaterNormal WaterLevel = "normal"
)

// LowWaterThreshold is the current-water value below which a record counts as low water.
var LowWaterThreshold = decimal.RequireFromString("0.90")

// ClassifyTrend maps a change to up, down or neutral by its sign.
func ClassifyTrend(change decimal.Decimal) Trend {
	switch change.Sign() {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendNeutral
	}
}

func ClassifyWaterLevel(currentWater decimal.Decimal) WaterLevel {
	if currentWater.LessThan(LowWaterThreshold) {
		return WaterLow
	}
	return WaterNormal
}

// GroupedRow is one group of resolved records sharing type, trends and water level.
type GroupedRow struct {
	Total         int64        `json:"total"`
	Wins          int64        `json:"wins"`
	HandicapType  HandicapType `json:"handicapType"`
	WaterTrend    Trend        `json:"waterTrend"`
	HandicapTrend Trend        `json:"handicapTrend"`
	WaterLevel    WaterLevel   `json:"waterLevel"`
}

// GroupKey identifies the group a record falls into.
type GroupKey struct {
	HandicapType  HandicapType
	WaterTrend    Trend
	HandicapTrend Trend
	WaterLevel    WaterLevel
}

// KeyOf classifies a record into its group.
func KeyOf(r *Record) GroupKey {
	return GroupKey{
		HandicapType:  r.HandicapType,
		WaterTrend:    ClassifyTrend(r.WaterChange),
		HandicapTrend: ClassifyTrend(r.HandicapChange),
		WaterLevel:    ClassifyWaterLevel(r.CurrentWater),
	}
}

// StatsBucket is a win count over a total with its rate in percent, one decimal.
type StatsBucket struct {
	Total   int64   `json:"total"`
	Wins    int64   `json:"wins"`
	WinRate float64 `json:"winRate"`
}

type TypeStats struct {
	Type HandicapType `json:"type"`
	StatsBucket
}

// ChartSeries is the five-bar win-rate chart.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

type StatsSummary struct {
	UserID         string                `json:"userId"`
	TotalRecords   int64                 `json:"totalRecords"`
	TotalWins      int64                 `json:"totalWins"`
	WinRate        float64               `json:"winRate"`
	ByType         []TypeStats           `json:"byType"`
	WaterTrends    map[Trend]StatsBucket `json:"waterTrends"`
	HandicapTrends map[Trend]StatsBucket `json:"handicapTrends"`
	Chart          ChartSeries           `json:"chartData"`
}
