package models

// Side is the recommended direction.
type Side string

const (
	SideUpper Side = "upper"
	SideLower Side = "lower"
	SideLarge Side = "large"
	SideSmall Side = "small"
	SideHold  Side = "hold"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Analysis echoes the inputs the score was derived from.
// Changes are fixed to two decimals, e.g. "0.25", "-0.10".
type Analysis struct {
	HandicapChange string  `json:"handicapChange"`
	WaterChange    string  `json:"waterChange"`
	SignalStrength float64 `json:"signalStrength"`
}

// Recommendation is the output of a line scorer.
// Details lists the tags of the rules that fired, in rule order.
type Recommendation struct {
	Type       HandicapType `json:"type"`
	Side       Side         `json:"recommendation"`
	Confidence Confidence   `json:"confidence"`
	Score      float64      `json:"score"`
	Details    []string     `json:"details"`
	Analysis   Analysis     `json:"analysis"`
}
