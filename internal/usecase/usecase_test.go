package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OddsPulse/internal/domain/models"
	drepo "OddsPulse/internal/domain/repository"
	"OddsPulse/internal/domain/service"
	"OddsPulse/internal/repository"
	"OddsPulse/internal/services/scoring"
	"OddsPulse/internal/services/stats"
	"OddsPulse/pkg/cache"
	pkgkafka "OddsPulse/pkg/kafka"
	"OddsPulse/pkg/metrics"
)

func f64(v float64) *float64 { return &v }

func createReq(user, typ string, ih, ch, iw, cw float64, hist string) *models.CreateRecordRequest {
	return &models.CreateRecordRequest{
		UserID:       user,
		HandicapType: typ,
		SnapshotFields: models.SnapshotFields{
			InitialHandicap:  f64(ih),
			CurrentHandicap:  f64(ch),
			InitialWater:     f64(iw),
			CurrentWater:     f64(cw),
			HistoricalRecord: hist,
		},
	}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*models.RecordEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, ev *models.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type countingScorers struct {
	inner *scoring.Registry
	calls int
}

func (c *countingScorers) Get(t models.HandicapType) (service.LineScorer, bool) {
	s, ok := c.inner.Get(t)
	if !ok {
		return nil, false
	}
	return countingScorer{LineScorer: s, calls: &c.calls}, true
}

type countingScorer struct {
	service.LineScorer
	calls *int
}

func (c countingScorer) Score(s models.MarketSnapshot) models.Recommendation {
	*c.calls++
	return c.LineScorer.Score(s)
}

func newService(t *testing.T, backend string, pub drepo.EventPublisher) (*RecordService, *repository.MemoryRecordStore) {
	t.Helper()
	store := repository.NewMemoryRecordStore()
	proc := NewRecordProcessor(pub, store, metrics.Nop{}, backend)
	svc := NewRecordService(scoring.NewRegistry(), stats.NewAggregator(), store, proc, metrics.Nop{}, nil)
	n := 0
	svc.now = func() time.Time {
		n++
		return time.Date(2026, 4, 1, 9, 0, n, 0, time.UTC)
	}
	return svc, store
}

func TestRecommend_UnknownType(t *testing.T) {
	u := NewRecommendUsecase(scoring.NewRegistry(), nil, 0, metrics.Nop{}, nil)
	_, err := u.Recommend(context.Background(), "corners", models.NewSnapshot(0, 0, 1, 1, ""))
	assert.ErrorIs(t, err, ErrUnknownHandicapType)
}

func TestRecommend_Cached(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	src := &countingScorers{inner: scoring.NewRegistry()}
	u := NewRecommendUsecase(src, mc, time.Minute, metrics.Nop{}, nil)
	ctx := context.Background()

	first, err := u.Recommend(ctx, models.HandicapAsian, models.NewSnapshot(1.0, 1.5, 1.0, 0.9, "win"))
	require.NoError(t, err)
	assert.Equal(t, models.SideUpper, first.Side)

	second, err := u.Recommend(ctx, models.HandicapAsian, models.NewSnapshot(1.0, 1.50, 1.0, 0.90, "win"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	// same numbers, other line type
	_, err = u.Recommend(ctx, models.HandicapSize, models.NewSnapshot(1.0, 1.5, 1.0, 0.9, "win"))
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestSnapshotKey(t *testing.T) {
	a := SnapshotKey(models.HandicapAsian, models.NewSnapshot(1, 1.5, 1, 0.9, "win"))
	b := SnapshotKey(models.HandicapAsian, models.NewSnapshot(1, 1.5, 1, 0.9, "loss"))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^recommend:[0-9a-f]{32}$`, a)
}

func TestRecordProcessor_Backends(t *testing.T) {
	ctx := context.Background()
	r := &models.Record{ID: "r1", UserID: "u1", HandicapType: models.HandicapAsian}

	store := repository.NewMemoryRecordStore()
	pub := &capturePublisher{}

	direct := NewRecordProcessor(pub, store, metrics.Nop{}, BackendDirect)
	require.NoError(t, direct.Create(ctx, r))
	_, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, pub.events)

	kafka := NewRecordProcessor(pub, store, metrics.Nop{}, BackendKafka)
	require.NoError(t, kafka.Resolve(ctx, r, models.ResultWin))
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, models.RecordResolved, ev.Type)
	assert.Equal(t, "r1", ev.RecordID)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.OccurredAt.IsZero())

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, got.Resolved(), "kafka path leaves the store to the consumer")

	bad := NewRecordProcessor(pub, store, metrics.Nop{}, "carrier-pigeon")
	assert.ErrorIs(t, bad.Delete(ctx, r), ErrUnknownBackend)

	pub.err = errors.New("broker down")
	assert.Error(t, kafka.Delete(ctx, r))
}

func TestRecordService_Lifecycle(t *testing.T) {
	svc, _ := newService(t, BackendDirect, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, createReq("u1", "asian", 1.0, 1.5, 1.0, 0.9, "win"))
	require.NoError(t, err)
	r := res.Record
	assert.Equal(t, models.DefaultMatchName, r.MatchName)
	assert.Equal(t, models.SideUpper, r.Recommendation)
	assert.Equal(t, models.ConfidenceHigh, r.Confidence)
	assert.Equal(t, 3.0, r.Score)
	assert.Equal(t, "0.5", r.HandicapChange.String())
	assert.Equal(t, models.ResultNone, r.ActualResult)
	assert.Equal(t, []string{scoring.TagUpperStrong, scoring.TagHistoryWin}, res.Recommendation.Details)

	_, err = svc.Resolve(ctx, r.ID, "someone-else", models.ResultWin)
	assert.ErrorIs(t, err, drepo.ErrRecordNotFound)

	resolved, err := svc.Resolve(ctx, r.ID, "u1", models.ResultWin)
	require.NoError(t, err)
	assert.Equal(t, models.ResultWin, resolved.ActualResult)

	_, err = svc.Resolve(ctx, r.ID, "", models.ResultLoss)
	assert.ErrorIs(t, err, drepo.ErrRecordResolved)

	stored, err := svc.Get(ctx, r.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ResultWin, stored.ActualResult)

	require.NoError(t, svc.Delete(ctx, r.ID, "u1"))
	_, err = svc.Get(ctx, r.ID, "")
	assert.ErrorIs(t, err, drepo.ErrRecordNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, r.ID, "u1"), drepo.ErrRecordNotFound)
}

func TestRecordService_CreateUnknownType(t *testing.T) {
	svc, _ := newService(t, BackendDirect, nil)
	_, err := svc.Create(context.Background(), createReq("u1", "corners", 0, 0, 1, 1, "unknown"))
	assert.ErrorIs(t, err, ErrUnknownHandicapType)
}

func TestRecordService_HistoryAndStats(t *testing.T) {
	svc, _ := newService(t, BackendDirect, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		req := createReq("u1", "size", 2.5, 2.0, 1.0, 1.1, "loss")
		req.MatchName = fmt.Sprintf("match %d", i)
		res, err := svc.Create(ctx, req)
		require.NoError(t, err)
		ids = append(ids, res.Record.ID)
	}
	_, err := svc.Resolve(ctx, ids[0], "u1", models.ResultWin)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, ids[1], "u1", models.ResultLoss)
	require.NoError(t, err)

	hist, err := svc.History(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "match 3", hist[0].MatchName)
	assert.Equal(t, models.SideSmall, hist[0].Recommendation)

	sum, err := svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.TotalRecords)
	assert.Equal(t, int64(1), sum.TotalWins)
	assert.Equal(t, 50.0, sum.WinRate)
	assert.Equal(t, models.StatsBucket{Total: 2, Wins: 1, WinRate: 50}, sum.WaterTrends[models.TrendUp])
	assert.Equal(t, models.StatsBucket{Total: 2, Wins: 1, WinRate: 50}, sum.HandicapTrends[models.TrendDown])
	assert.Equal(t, []float64{50, 0, 0, 50, 0}, sum.Chart.Data)

	empty, err := svc.Stats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRecords)
}

func TestRecordService_ListPaging(t *testing.T) {
	svc, _ := newService(t, BackendDirect, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, createReq("u1", "asian", 0.5, 0.75, 0.95, 0.85, "unknown"))
		require.NoError(t, err)
	}

	rows, total, err := svc.List(ctx, models.RecordFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 3)

	rows, total, err = svc.List(ctx, models.RecordFilter{UserID: "u1", Limit: -5, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 1)
}

func TestRecordService_KafkaBackendPublishes(t *testing.T) {
	pub := &capturePublisher{}
	svc, store := newService(t, BackendKafka, pub)
	ctx := context.Background()

	res, err := svc.Create(ctx, createReq("u1", "asian", 0, 0.25, 1.0, 0.95, "unknown"))
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.RecordCreated, pub.events[0].Type)
	assert.Same(t, res.Record, pub.events[0].Record)

	// nothing in the store until the consumer applies the event
	_, err = store.Get(ctx, res.Record.ID)
	assert.ErrorIs(t, err, drepo.ErrRecordNotFound)

	h := NewRecordEventsHandler("records", store, metrics.Nop{}, nil)
	b, err := json.Marshal(pub.events[0])
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, b))

	got, err := svc.Get(ctx, res.Record.ID, "u1")
	require.NoError(t, err)
	assert.True(t, got.CurrentHandicap.Equal(res.Record.CurrentHandicap))
}

func TestRecordEventsHandler_Idempotent(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	h := NewRecordEventsHandler("records", store, metrics.Nop{}, nil)
	ctx := context.Background()
	assert.Equal(t, "records", h.Topic())

	rec := &models.Record{ID: "r1", UserID: "u1", HandicapType: models.HandicapSize, CreatedAt: time.Now().UTC()}
	events := []*models.RecordEvent{
		{ID: "e1", Type: models.RecordCreated, RecordID: "r1", UserID: "u1", Record: rec},
		{ID: "e2", Type: models.RecordResolved, RecordID: "r1", UserID: "u1", ActualResult: models.ResultLoss},
	}
	for round := 0; round < 2; round++ {
		for _, ev := range events {
			b, err := json.Marshal(ev)
			require.NoError(t, err)
			require.NoError(t, h.Handle(ctx, b), "round %d event %s", round, ev.ID)
		}
	}

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ResultLoss, got.ActualResult)

	del, err := json.Marshal(&models.RecordEvent{ID: "e3", Type: models.RecordDeleted, RecordID: "r1"})
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, del))
	require.NoError(t, h.Handle(ctx, del))
}

func TestRecordEventsHandler_Permanent(t *testing.T) {
	h := NewRecordEventsHandler("records", repository.NewMemoryRecordStore(), metrics.Nop{}, nil)
	ctx := context.Background()

	var perr *pkgkafka.PermanentError

	err := h.Handle(ctx, []byte("{not json"))
	require.Error(t, err)
	assert.ErrorAs(t, err, &perr)

	err = h.Handle(ctx, []byte(`{"id":"e1","type":"record.created","recordId":"r1"}`))
	require.Error(t, err)
	assert.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	err = h.Handle(ctx, []byte(`{"id":"e2","type":"record.renamed","recordId":"r1"}`))
	assert.ErrorAs(t, err, &perr)
}
