package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/repository"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(user string, t models.HandicapType, snap models.MarketSnapshot, at time.Time) *models.Record {
	return &models.Record{
		ID:               uuid.NewString(),
		UserID:           user,
		MatchName:        models.DefaultMatchName,
		HandicapType:     t,
		InitialHandicap:  snap.InitialHandicap,
		CurrentHandicap:  snap.CurrentHandicap,
		InitialWater:     snap.InitialWater,
		CurrentWater:     snap.CurrentWater,
		HandicapChange:   snap.HandicapChange(),
		WaterChange:      snap.WaterChange(),
		HistoricalRecord: snap.History,
		Recommendation:   models.SideHold,
		Confidence:       models.ConfidenceLow,
		CreatedAt:        at,
	}
}

func storeDrivers(t *testing.T) map[string]repository.RecordStore {
	t.Helper()
	sq, err := NewSQLiteRecordStore(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]repository.RecordStore{
		"memory": NewMemoryRecordStore(),
		"sqlite": sq,
	}
}

func TestRecordStore_CreateGet(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Init(ctx))

			r := newRecord("u1", models.HandicapAsian, models.NewSnapshot(1.0, 1.5, 1.0, 0.9, "win"), base)
			r.Score = 3
			r.Recommendation = models.SideUpper
			require.NoError(t, s.Create(ctx, r))
			assert.ErrorIs(t, s.Create(ctx, r), repository.ErrRecordExists)

			got, err := s.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, r.UserID, got.UserID)
			assert.Equal(t, models.SideUpper, got.Recommendation)
			assert.Equal(t, 3.0, got.Score)
			assert.True(t, got.HandicapChange.Equal(decimal.RequireFromString("0.5")))
			assert.True(t, got.WaterChange.Equal(decimal.RequireFromString("-0.1")))
			assert.True(t, got.CreatedAt.Equal(base))
			assert.False(t, got.Resolved())

			_, err = s.Get(ctx, uuid.NewString())
			assert.ErrorIs(t, err, repository.ErrRecordNotFound)
		})
	}
}

func TestRecordStore_ResolveOnce(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRecord("u1", models.HandicapSize, models.NewSnapshot(2.5, 2.0, 1.0, 1.1, "loss"), base)
			require.NoError(t, s.Create(ctx, r))

			require.NoError(t, s.SetActualResult(ctx, r.ID, models.ResultWin))
			assert.ErrorIs(t, s.SetActualResult(ctx, r.ID, models.ResultLoss), repository.ErrRecordResolved)
			assert.ErrorIs(t, s.SetActualResult(ctx, uuid.NewString(), models.ResultWin), repository.ErrRecordNotFound)

			got, err := s.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ResultWin, got.ActualResult)
		})
	}
}

func TestRecordStore_Delete(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRecord("u1", models.HandicapAsian, models.NewSnapshot(0, 0, 1, 1, "unknown"), base)
			require.NoError(t, s.Create(ctx, r))

			require.NoError(t, s.Delete(ctx, r.ID))
			assert.ErrorIs(t, s.Delete(ctx, r.ID), repository.ErrRecordNotFound)
			_, err := s.Get(ctx, r.ID)
			assert.ErrorIs(t, err, repository.ErrRecordNotFound)
		})
	}
}

func TestRecordStore_ListPaging(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []string
			for i := 0; i < 5; i++ {
				typ := models.HandicapAsian
				if i%2 == 1 {
					typ = models.HandicapSize
				}
				r := newRecord("u1", typ, models.NewSnapshot(0, 0, 1, 1, "unknown"), base.Add(time.Duration(i)*time.Minute))
				r.MatchName = fmt.Sprintf("match %d", i)
				require.NoError(t, s.Create(ctx, r))
				ids = append(ids, r.ID)
			}
			require.NoError(t, s.Create(ctx, newRecord("u2", models.HandicapAsian, models.NewSnapshot(0, 0, 1, 1, "unknown"), base)))

			rows, total, err := s.List(ctx, models.RecordFilter{UserID: "u1", Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			require.Len(t, rows, 2)
			assert.Equal(t, ids[4], rows[0].ID)
			assert.Equal(t, ids[3], rows[1].ID)

			rows, total, err = s.List(ctx, models.RecordFilter{UserID: "u1", Limit: 2, Offset: 4})
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			require.Len(t, rows, 1)
			assert.Equal(t, ids[0], rows[0].ID)

			rows, total, err = s.List(ctx, models.RecordFilter{UserID: "u1", HandicapType: models.HandicapSize, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			assert.Len(t, rows, 2)

			rows, total, err = s.List(ctx, models.RecordFilter{
				UserID: "u1",
				From:   base.Add(time.Minute),
				To:     base.Add(3 * time.Minute),
				Limit:  10,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			assert.Len(t, rows, 3)

			rows, total, err = s.List(ctx, models.RecordFilter{UserID: "u1", Limit: 10, Offset: 50})
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			assert.Empty(t, rows)
		})
	}
}

func TestRecordStore_GroupedOutcomes(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			add := func(user string, typ models.HandicapType, snap models.MarketSnapshot, result models.ActualResult) {
				r := newRecord(user, typ, snap, base)
				require.NoError(t, s.Create(ctx, r))
				if result != models.ResultNone {
					require.NoError(t, s.SetActualResult(ctx, r.ID, result))
				}
			}

			// asian, water down, handicap up, normal water (0.9 is not low)
			add("u1", models.HandicapAsian, models.NewSnapshot(1.0, 1.5, 1.0, 0.9, "win"), models.ResultWin)
			add("u1", models.HandicapAsian, models.NewSnapshot(1.0, 1.25, 1.0, 0.95, "win"), models.ResultLoss)
			// asian, water down, handicap neutral, low water
			add("u1", models.HandicapAsian, models.NewSnapshot(0.5, 0.5, 1.0, 0.85, "unknown"), models.ResultWin)
			// size, water up, handicap down, normal
			add("u1", models.HandicapSize, models.NewSnapshot(2.5, 2.0, 1.0, 1.1, "loss"), models.ResultLoss)
			// unresolved and other user are excluded
			add("u1", models.HandicapSize, models.NewSnapshot(2.5, 2.0, 1.0, 1.1, "loss"), models.ResultNone)
			add("u2", models.HandicapSize, models.NewSnapshot(2.5, 2.0, 1.0, 1.1, "loss"), models.ResultWin)

			rows, err := s.GroupedOutcomes(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, []models.GroupedRow{
				{Total: 1, Wins: 1, HandicapType: models.HandicapAsian, WaterTrend: models.TrendDown, HandicapTrend: models.TrendNeutral, WaterLevel: models.WaterLow},
				{Total: 2, Wins: 1, HandicapType: models.HandicapAsian, WaterTrend: models.TrendDown, HandicapTrend: models.TrendUp, WaterLevel: models.WaterNormal},
				{Total: 1, Wins: 0, HandicapType: models.HandicapSize, WaterTrend: models.TrendUp, HandicapTrend: models.TrendDown, WaterLevel: models.WaterNormal},
			}, rows)

			rows, err = s.GroupedOutcomes(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestRecordStore_CompactAndHealth(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.NoError(t, s.Health(ctx))
			assert.NoError(t, s.Compact(ctx))
		})
	}
}
