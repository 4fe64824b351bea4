package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/service"
)

// Chart labels, in display order.
const (
	LabelWaterUp      = "waterUp"
	LabelWaterDown    = "waterDown"
	LabelHandicapUp   = "handicapUp"
	LabelHandicapDown = "handicapDown"
	LabelLowWater     = "lowWater"
)

var ChartLabels = []string{LabelWaterUp, LabelWaterDown, LabelHandicapUp, LabelHandicapDown, LabelLowWater}

var hundred = decimal.NewFromInt(100)

// Aggregator folds grouped outcome rows into a StatsSummary.
type Aggregator struct{}

var _ service.WinRateAggregator = (*Aggregator)(nil)

func NewAggregator() *Aggregator { return &Aggregator{} }

// Rate is wins/total as a percentage rounded half away from zero to one decimal.
// An empty total yields 0.
func Rate(wins, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(wins).Div(decimal.NewFromInt(total)).Mul(hundred).Round(1).Float64()
	return f
}

type counter struct {
	total, wins int64
}

func (c *counter) add(r models.GroupedRow) {
	c.total += r.Total
	c.wins += r.Wins
}

func (c counter) bucket() models.StatsBucket {
	return models.StatsBucket{Total: c.total, Wins: c.wins, WinRate: Rate(c.wins, c.total)}
}

func (a *Aggregator) Aggregate(userID string, rows []models.GroupedRow) models.StatsSummary {
	var (
		overall  counter
		lowWater counter
		byType   = map[models.HandicapType]*counter{}
		water    = map[models.Trend]*counter{}
		handicap = map[models.Trend]*counter{}
	)
	for _, t := range []models.Trend{models.TrendUp, models.TrendDown, models.TrendNeutral} {
		water[t] = &counter{}
		handicap[t] = &counter{}
	}

	for _, r := range rows {
		overall.add(r)

		c, ok := byType[r.HandicapType]
		if !ok {
			c = &counter{}
			byType[r.HandicapType] = c
		}
		c.add(r)

		if wc, ok := water[r.WaterTrend]; ok {
			wc.add(r)
		}
		if hc, ok := handicap[r.HandicapTrend]; ok {
			hc.add(r)
		}
		if r.WaterLevel == models.WaterLow {
			lowWater.add(r)
		}
	}

	types := make([]models.HandicapType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	typeStats := make([]models.TypeStats, 0, len(types))
	for _, t := range types {
		typeStats = append(typeStats, models.TypeStats{Type: t, StatsBucket: byType[t].bucket()})
	}

	waterTrends := make(map[models.Trend]models.StatsBucket, len(water))
	for t, c := range water {
		waterTrends[t] = c.bucket()
	}
	handicapTrends := make(map[models.Trend]models.StatsBucket, len(handicap))
	for t, c := range handicap {
		handicapTrends[t] = c.bucket()
	}

	labels := make([]string, len(ChartLabels))
	copy(labels, ChartLabels)

	return models.StatsSummary{
		UserID:         userID,
		TotalRecords:   overall.total,
		TotalWins:      overall.wins,
		WinRate:        Rate(overall.wins, overall.total),
		ByType:         typeStats,
		WaterTrends:    waterTrends,
		HandicapTrends: handicapTrends,
		Chart: models.ChartSeries{
			Labels: labels,
			Data: []float64{
				waterTrends[models.TrendUp].WinRate,
				waterTrends[models.TrendDown].WinRate,
				handicapTrends[models.TrendUp].WinRate,
				handicapTrends[models.TrendDown].WinRate,
				lowWater.bucket().WinRate,
			},
		},
	}
}
