package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"OddsPulse/internal/domain/models"
	drepo "OddsPulse/internal/domain/repository"
	"OddsPulse/internal/domain/service"
	applogger "OddsPulse/pkg/logger"
	xutil "OddsPulse/pkg/util"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RecordService owns the record lifecycle: score and create, resolve once, delete,
// and the read views (list, history, stats).
type RecordService struct {
	scorers   ScorerSource
	agg       service.WinRateAggregator
	store     drepo.RecordStore
	processor *RecordProcessor
	metrics   drepo.Metrics
	l         *applogger.Logger

	now   func() time.Time
	newID func() string
}

func NewRecordService(
	scorers ScorerSource,
	agg service.WinRateAggregator,
	store drepo.RecordStore,
	processor *RecordProcessor,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *RecordService {
	if l == nil {
		l = applogger.Nop()
	}
	return &RecordService{
		scorers:   scorers,
		agg:       agg,
		store:     store,
		processor: processor,
		metrics:   metrics,
		l:         l,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateResult is a stored record together with the full recommendation it was built from.
type CreateResult struct {
	Record         *models.Record        `json:"record"`
	Recommendation models.Recommendation `json:"result"`
}

func (s *RecordService) Create(ctx context.Context, req *models.CreateRecordRequest) (*CreateResult, error) {
	t := models.HandicapType(req.HandicapType)
	scorer, ok := s.scorers.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandicapType, t)
	}

	snap := req.Snapshot()
	rec := scorer.Score(snap)
	s.metrics.RecordRecommendation(string(t), string(rec.Side), string(rec.Confidence))

	name := strings.TrimSpace(req.MatchName)
	if name == "" {
		name = models.DefaultMatchName
	}
	r := &models.Record{
		ID:               s.newID(),
		UserID:           req.UserID,
		MatchName:        name,
		HandicapType:     t,
		InitialHandicap:  snap.InitialHandicap,
		CurrentHandicap:  snap.CurrentHandicap,
		InitialWater:     snap.InitialWater,
		CurrentWater:     snap.CurrentWater,
		HandicapChange:   snap.HandicapChange(),
		WaterChange:      snap.WaterChange(),
		HistoricalRecord: snap.History,
		Recommendation:   rec.Side,
		Confidence:       rec.Confidence,
		Score:            rec.Score,
		ActualResult:     models.ResultNone,
		CreatedAt:        s.now().UTC(),
	}

	if err := s.processor.Create(ctx, r); err != nil {
		return nil, err
	}
	s.l.Info("record created",
		applogger.String("record_id", r.ID),
		applogger.String("user_id", r.UserID),
		applogger.String("type", string(t)),
		applogger.String("recommendation", string(rec.Side)),
	)
	return &CreateResult{Record: r, Recommendation: rec}, nil
}

// Get returns the record. When userID is set, records of other users are reported as not found.
func (s *RecordService) Get(ctx context.Context, id, userID string) (*models.Record, error) {
	start := time.Now()
	r, err := s.store.Get(ctx, id)
	s.metrics.RecordLatency("store_get", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if userID != "" && r.UserID != userID {
		return nil, drepo.ErrRecordNotFound
	}
	return r, nil
}

// Resolve records the actual outcome. A record is resolved at most once.
func (s *RecordService) Resolve(ctx context.Context, id, userID string, result models.ActualResult) (*models.Record, error) {
	r, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r.Resolved() {
		return nil, drepo.ErrRecordResolved
	}
	if err := s.processor.Resolve(ctx, r, result); err != nil {
		return nil, err
	}
	if s.processor.Backend() == BackendDirect {
		s.metrics.RecordOutcome(string(r.HandicapType), string(result))
	}
	r.ActualResult = result
	return r, nil
}

func (s *RecordService) Delete(ctx context.Context, id, userID string) error {
	r, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	return s.processor.Delete(ctx, r)
}

// List returns one page of records. A zero limit means the default page size; larger
// limits are capped.
func (s *RecordService) List(ctx context.Context, f models.RecordFilter) ([]*models.Record, int64, error) {
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	f.Limit = xutil.ClampInt(f.Limit, 1, maxPageSize)
	if f.Offset < 0 {
		f.Offset = 0
	}

	start := time.Now()
	rows, total, err := s.store.List(ctx, f)
	s.metrics.RecordLatency("store_list", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("store_list")
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	return rows, total, nil
}

// History returns the user's latest records in brief form, newest first.
func (s *RecordService) History(ctx context.Context, userID string, limit int) ([]models.RecordBrief, error) {
	rows, _, err := s.List(ctx, models.RecordFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]models.RecordBrief, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Brief())
	}
	return out, nil
}

// Stats aggregates the user's resolved records. It is recomputed on every call.
func (s *RecordService) Stats(ctx context.Context, userID string) (models.StatsSummary, error) {
	start := time.Now()
	rows, err := s.store.GroupedOutcomes(ctx, userID)
	s.metrics.RecordLatency("store_grouped", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("store_grouped")
		return models.StatsSummary{}, fmt.Errorf("grouped outcomes: %w", err)
	}
	return s.agg.Aggregate(userID, rows), nil
}

// Health pings the store.
func (s *RecordService) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
