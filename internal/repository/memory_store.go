package repository

import (
	"context"
	"sort"
	"sync"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/repository"
)

// MemoryRecordStore keeps records in a map. It backs tests and single-process dev runs.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

var _ repository.RecordStore = (*MemoryRecordStore)(nil)

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*models.Record)}
}

func (s *MemoryRecordStore) Init(ctx context.Context) error { return nil }

func (s *MemoryRecordStore) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return repository.ErrRecordExists
	}
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

func (s *MemoryRecordStore) Get(ctx context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryRecordStore) List(ctx context.Context, f models.RecordFilter) ([]*models.Record, int64, error) {
	s.mu.RLock()
	matched := make([]*models.Record, 0, len(s.records))
	for _, r := range s.records {
		if f.Match(r) {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return newerFirst(matched[i], matched[j]) })

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []*models.Record{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemoryRecordStore) SetActualResult(ctx context.Context, id string, result models.ActualResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	if r.Resolved() {
		return repository.ErrRecordResolved
	}
	r.ActualResult = result
	return nil
}

func (s *MemoryRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return repository.ErrRecordNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryRecordStore) GroupedOutcomes(ctx context.Context, userID string) ([]models.GroupedRow, error) {
	s.mu.RLock()
	groups := make(map[models.GroupKey]*models.GroupedRow)
	for _, r := range s.records {
		if r.UserID != userID || !r.Resolved() {
			continue
		}
		k := models.KeyOf(r)
		g, ok := groups[k]
		if !ok {
			g = &models.GroupedRow{
				HandicapType:  k.HandicapType,
				WaterTrend:    k.WaterTrend,
				HandicapTrend: k.HandicapTrend,
				WaterLevel:    k.WaterLevel,
			}
			groups[k] = g
		}
		g.Total++
		if r.ActualResult == models.ResultWin {
			g.Wins++
		}
	}
	s.mu.RUnlock()

	out := make([]models.GroupedRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sortGroupedRows(out)
	return out, nil
}

func (s *MemoryRecordStore) Compact(ctx context.Context) error { return nil }

func (s *MemoryRecordStore) Health(ctx context.Context) error { return nil }

func (s *MemoryRecordStore) Close() error { return nil }

// newerFirst orders by creation time descending, then by id for a stable page order.
func newerFirst(a, b *models.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// sortGroupedRows matches the ORDER BY of the SQL drivers.
func sortGroupedRows(rows []models.GroupedRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.HandicapType != b.HandicapType {
			return a.HandicapType < b.HandicapType
		}
		if a.WaterTrend != b.WaterTrend {
			return a.WaterTrend < b.WaterTrend
		}
		if a.HandicapTrend != b.HandicapTrend {
			return a.HandicapTrend < b.HandicapTrend
		}
		return a.WaterLevel < b.WaterLevel
	})
}
