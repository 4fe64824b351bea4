package usecase

import (
	"context"
	"fmt"
	"time"

	"OddsPulse/internal/domain/models"
	drepo "OddsPulse/internal/domain/repository"
	"OddsPulse/internal/domain/service"
	"OddsPulse/pkg/cache"
	applogger "OddsPulse/pkg/logger"
)

// ScorerSource resolves the scorer for a handicap type.
type ScorerSource interface {
	Get(t models.HandicapType) (service.LineScorer, bool)
}

// RecommendUsecase scores snapshots. Results are cached by snapshot since scoring is pure.
type RecommendUsecase struct {
	scorers ScorerSource
	cache   cache.Service
	ttl     time.Duration
	metrics drepo.Metrics
	l       *applogger.Logger
}

// NewRecommendUsecase builds the usecase. A nil cache or zero ttl disables caching.
func NewRecommendUsecase(scorers ScorerSource, c cache.Service, ttl time.Duration, metrics drepo.Metrics, l *applogger.Logger) *RecommendUsecase {
	if l == nil {
		l = applogger.Nop()
	}
	return &RecommendUsecase{scorers: scorers, cache: c, ttl: ttl, metrics: metrics, l: l}
}

func (u *RecommendUsecase) Recommend(ctx context.Context, t models.HandicapType, snap models.MarketSnapshot) (models.Recommendation, error) {
	s, ok := u.scorers.Get(t)
	if !ok {
		return models.Recommendation{}, fmt.Errorf("%w: %q", ErrUnknownHandicapType, t)
	}

	start := time.Now()
	key := SnapshotKey(t, snap)
	if u.cache != nil && u.ttl > 0 {
		var cached models.Recommendation
		if err := u.cache.Get(ctx, key, &cached); err == nil {
			u.metrics.RecordLatency("recommend_cached", time.Since(start).Seconds())
			return cached, nil
		}
	}

	rec := s.Score(snap)
	u.metrics.RecordRecommendation(string(t), string(rec.Side), string(rec.Confidence))
	u.metrics.RecordLatency("recommend", time.Since(start).Seconds())

	if u.cache != nil && u.ttl > 0 {
		if err := u.cache.Set(ctx, key, rec, u.ttl); err != nil {
			u.l.Warn("recommend cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return rec, nil
}

// SnapshotKey is the cache key of a scoring input. Decimal strings are normalized so
// 1.5 and 1.50 share a key.
func SnapshotKey(t models.HandicapType, s models.MarketSnapshot) string {
	raw := cache.GenerateKeyWithParams(string(t),
		s.InitialHandicap.String(), s.CurrentHandicap.String(),
		s.InitialWater.String(), s.CurrentWater.String(),
		string(s.History),
	)
	return cache.GenerateKeyWithParams("recommend", cache.HashKey(raw))
}
