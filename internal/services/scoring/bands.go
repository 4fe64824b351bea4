package scoring

import (
	"math"

	"OddsPulse/internal/domain/models"
)

// Bands maps the magnitude of a score to a confidence. The sign picks the side.
// Ordered from strongest to weakest; the first band whose MinAbs is reached wins.
var Bands = []struct {
	MinAbs     float64
	Confidence models.Confidence
}{
	{3, models.ConfidenceHigh},
	{1, models.ConfidenceMedium},
}

// Sides names the two directions of a line.
type Sides struct {
	Positive models.Side
	Negative models.Side
}

var (
	AsianSides = Sides{Positive: models.SideUpper, Negative: models.SideLower}
	SizeSides  = Sides{Positive: models.SideLarge, Negative: models.SideSmall}
)

// mapBand picks side and confidence for a score. Scores inside (-1, 1) hold.
func mapBand(score float64, sides Sides) (models.Side, models.Confidence) {
	abs := math.Abs(score)
	for _, b := range Bands {
		if abs >= b.MinAbs {
			if score > 0 {
				return sides.Positive, b.Confidence
			}
			return sides.Negative, b.Confidence
		}
	}
	return models.SideHold, models.ConfidenceLow
}
