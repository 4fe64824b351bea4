package scoring

import (
	"math"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/service"
)

// Scorer evaluates a rulebook over a snapshot and maps the total to a recommendation.
type Scorer struct {
	kind  models.HandicapType
	sides Sides
	rules []Rule
}

var _ service.LineScorer = (*Scorer)(nil)

func NewScorer(kind models.HandicapType, sides Sides, rules []Rule) *Scorer {
	return &Scorer{kind: kind, sides: sides, rules: rules}
}

// NewAsianScorer scores Asian handicap lines (upper/lower).
func NewAsianScorer() *Scorer {
	return NewScorer(models.HandicapAsian, AsianSides, AsianRules())
}

// NewSizeScorer scores over/under lines (large/small).
func NewSizeScorer() *Scorer {
	return NewScorer(models.HandicapSize, SizeSides, SizeRules())
}

func (s *Scorer) Type() models.HandicapType { return s.kind }

// Rules returns the rulebook in evaluation order.
func (s *Scorer) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *Scorer) Score(snap models.MarketSnapshot) models.Recommendation {
	in := newInput(snap)

	score := 0.0
	details := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		delta, tag, fired := r.Eval(in)
		if !fired {
			continue
		}
		score += delta
		details = append(details, tag)
	}

	side, confidence := mapBand(score, s.sides)

	return models.Recommendation{
		Type:       s.kind,
		Side:       side,
		Confidence: confidence,
		Score:      score,
		Details:    details,
		Analysis: models.Analysis{
			HandicapChange: in.HC.StringFixed(2),
			WaterChange:    in.WC.StringFixed(2),
			SignalStrength: math.Abs(score),
		},
	}
}

// Registry resolves the scorer for a handicap type.
type Registry struct {
	scorers map[models.HandicapType]service.LineScorer
}

// NewRegistry returns a registry holding the Asian and size scorers.
func NewRegistry(extra ...service.LineScorer) *Registry {
	r := &Registry{scorers: make(map[models.HandicapType]service.LineScorer)}
	for _, s := range append([]service.LineScorer{NewAsianScorer(), NewSizeScorer()}, extra...) {
		r.scorers[s.Type()] = s
	}
	return r
}

func (r *Registry) Get(t models.HandicapType) (service.LineScorer, bool) {
	s, ok := r.scorers[t]
	return s, ok
}
