package scoring

import (
	"github.com/shopspring/decimal"

	"OddsPulse/internal/domain/models"
)

// RuleKind groups rules by the market signal they read.
type RuleKind int

const (
	// KindMovement reads the joint direction of handicap and water changes.
	KindMovement RuleKind = iota + 1
	// KindHistory reads the previous outcome.
	KindHistory
	// KindWaterLevel reads the current water.
	KindWaterLevel
	// KindLine reads the size of the handicap move or the height of the line.
	KindLine
)

func (k RuleKind) String() string {
	switch k {
	case KindMovement:
		return "movement"
	case KindHistory:
		return "history"
	case KindWaterLevel:
		return "water-level"
	case KindLine:
		return "line"
	default:
		return "unknown"
	}
}

// Input is what every rule sees: the snapshot with its changes precomputed.
type Input struct {
	models.MarketSnapshot
	HC decimal.Decimal // handicap change
	WC decimal.Decimal // water change
}

func newInput(s models.MarketSnapshot) Input {
	return Input{MarketSnapshot: s, HC: s.HandicapChange(), WC: s.WaterChange()}
}

// Rule is one entry of a rulebook. Eval returns the score delta and the tag to log
// when the rule fires; a rule that does not fire contributes nothing.
type Rule struct {
	Kind RuleKind
	Name string
	Eval func(in Input) (delta float64, tag string, fired bool)
}

// Rule tags. They are part of the API: clients and stored rationales match on them.
const (
	TagUpperStrong         = "upper-signal-strong"
	TagLowerStrong         = "lower-signal-strong"
	TagHistoryWin          = "history-win-continues"
	TagHistoryLoss         = "history-loss-rebounds"
	TagLowWaterDefensive   = "low-water-defensive"
	TagHighWaterBait       = "high-water-bait"
	TagHandicapSurgeUpper  = "handicap-surge-upper"
	TagHandicapDropLower   = "handicap-drop-lower"
	TagLargeStrong         = "large-signal-strong"
	TagSmallStrong         = "small-signal-strong"
	TagLowWaterGuardsSmall = "low-water-guards-small"
	TagHighWaterBaitsLarge = "high-water-baits-large"
	TagHighLineFavorsSmall = "high-line-favors-small"
	TagLowLineFavorsLarge  = "low-line-favors-large"
)

var (
	lowWater     = decimal.RequireFromString("0.85")
	highWater    = decimal.RequireFromString("1.05")
	bigMove      = decimal.RequireFromString("0.5")
	highSizeLine = decimal.RequireFromString("2.75")
	lowSizeLine  = decimal.RequireFromString("2.0")
)

func historyRule() Rule {
	return Rule{
		Kind: KindHistory,
		Name: "previous outcome",
		Eval: func(in Input) (float64, string, bool) {
			switch in.History {
			case models.HistoryWin:
				return 1, TagHistoryWin, true
			case models.HistoryLoss:
				return -1, TagHistoryLoss, true
			}
			return 0, "", false
		},
	}
}

// waterLevelRule rewards low water and penalises high water; the tags differ per line type.
func waterLevelRule(lowTag, highTag string) Rule {
	return Rule{
		Kind: KindWaterLevel,
		Name: "current water level",
		Eval: func(in Input) (float64, string, bool) {
			switch {
			case in.CurrentWater.LessThan(lowWater):
				return 1, lowTag, true
			case in.CurrentWater.GreaterThan(highWater):
				return -1, highTag, true
			}
			return 0, "", false
		},
	}
}

// AsianRules is the Asian handicap rulebook in evaluation order.
func AsianRules() []Rule {
	return []Rule{
		{
			Kind: KindMovement,
			Name: "handicap up while water down",
			Eval: func(in Input) (float64, string, bool) {
				if in.HC.IsPositive() && in.WC.IsNegative() {
					return 2, TagUpperStrong, true
				}
				return 0, "", false
			},
		},
		{
			Kind: KindMovement,
			Name: "handicap down while water up",
			Eval: func(in Input) (float64, string, bool) {
				if in.HC.IsNegative() && in.WC.IsPositive() {
					return -2, TagLowerStrong, true
				}
				return 0, "", false
			},
		},
		historyRule(),
		waterLevelRule(TagLowWaterDefensive, TagHighWaterBait),
		{
			Kind: KindLine,
			Name: "large handicap move",
			Eval: func(in Input) (float64, string, bool) {
				if in.HC.Abs().GreaterThan(bigMove) {
					if in.HC.IsPositive() {
						return 1, TagHandicapSurgeUpper, true
					}
					return -1, TagHandicapDropLower, true
				}
				return 0, "", false
			},
		},
	}
}

// SizeRules is the over/under rulebook in evaluation order.
func SizeRules() []Rule {
	return []Rule{
		{
			Kind: KindMovement,
			Name: "line and water both up",
			Eval: func(in Input) (float64, string, bool) {
				if in.HC.IsPositive() && in.WC.IsPositive() {
					return 2, TagLargeStrong, true
				}
				return 0, "", false
			},
		},
		{
			Kind: KindMovement,
			Name: "line and water both down",
			Eval: func(in Input) (float64, string, bool) {
				if in.HC.IsNegative() && in.WC.IsNegative() {
					return -2, TagSmallStrong, true
				}
				return 0, "", false
			},
		},
		historyRule(),
		waterLevelRule(TagLowWaterGuardsSmall, TagHighWaterBaitsLarge),
		{
			Kind: KindLine,
			Name: "line height",
			Eval: func(in Input) (float64, string, bool) {
				switch {
				case in.CurrentHandicap.GreaterThan(highSizeLine):
					return -0.5, TagHighLineFavorsSmall, true
				case in.CurrentHandicap.LessThan(lowSizeLine):
					return 0.5, TagLowLineFavorsLarge, true
				}
				return 0, "", false
			},
		},
	}
}
