package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/repository"
	pkgch "OddsPulse/pkg/clickhouse"
	applogger "OddsPulse/pkg/logger"
)

// ClickHouseSchema returns the DDL for the records table. Rows are versioned: every
// mutation inserts a new version and reads go through FINAL.
func ClickHouseSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			id                String,
			user_id           String,
			match_name        String,
			handicap_type     LowCardinality(String),
			initial_handicap  Decimal64(4),
			current_handicap  Decimal64(4),
			initial_water     Decimal64(4),
			current_water     Decimal64(4),
			handicap_change   Decimal64(4),
			water_change      Decimal64(4),
			historical_record LowCardinality(String),
			recommendation    LowCardinality(String),
			confidence        LowCardinality(String),
			score             Float64,
			actual_result     LowCardinality(String),
			created_at        DateTime64(3, 'UTC'),
			deleted           UInt8,
			version           UInt64
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY (user_id, id)`, database, table),
	}
}

// ClickHouseRecordStore persists records in a ReplacingMergeTree table.
type ClickHouseRecordStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string // database-qualified
	l     *applogger.Logger

	mu sync.Mutex // orders read-modify-write mutations within this process
}

var _ repository.RecordStore = (*ClickHouseRecordStore)(nil)

func NewClickHouseRecordStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseRecordStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseRecordStore{
		ch:    ch,
		db:    ch.DB(),
		table: ch.Database() + "." + table,
		l:     l,
	}
}

func (s *ClickHouseRecordStore) Init(ctx context.Context) error {
	parts := strings.SplitN(s.table, ".", 2)
	return s.ch.InitSchema(ctx, ClickHouseSchema(parts[0], parts[1]))
}

func (s *ClickHouseRecordStore) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(ctx, r.ID); err == nil {
		return repository.ErrRecordExists
	} else if !errors.Is(err, repository.ErrRecordNotFound) {
		return err
	}
	return s.insert(ctx, r, false)
}

func (s *ClickHouseRecordStore) Get(ctx context.Context, id string) (*models.Record, error) {
	return s.get(ctx, id)
}

func (s *ClickHouseRecordStore) get(ctx context.Context, id string) (*models.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE id = ? AND deleted = 0 LIMIT 1", chRecordColumns, s.table)
	r, err := scanCHRecord(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

func (s *ClickHouseRecordStore) List(ctx context.Context, f models.RecordFilter) ([]*models.Record, int64, error) {
	start := time.Now()
	where, args := chWhere(f)

	var total int64
	cq := fmt.Sprintf("SELECT toInt64(count()) FROM %s FINAL%s", s.table, where)
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		s.l.Error("clickhouse list count error", applogger.String("user_id", f.UserID), applogger.Error(err))
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY created_at DESC, id DESC", chRecordColumns, s.table, where)
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	} else if f.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse list query error", applogger.String("user_id", f.UserID), applogger.Error(err))
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanCHRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse list ok",
		applogger.String("user_id", f.UserID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, total, nil
}

func (s *ClickHouseRecordStore) SetActualResult(ctx context.Context, id string, result models.ActualResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if r.Resolved() {
		return repository.ErrRecordResolved
	}
	r.ActualResult = result
	return s.insert(ctx, r, false)
}

func (s *ClickHouseRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	return s.insert(ctx, r, true)
}

func (s *ClickHouseRecordStore) GroupedOutcomes(ctx context.Context, userID string) ([]models.GroupedRow, error) {
	q := fmt.Sprintf(`
		SELECT handicap_type,
			multiIf(water_change > 0, 'up', water_change < 0, 'down', 'neutral') AS wtrend,
			multiIf(handicap_change > 0, 'up', handicap_change < 0, 'down', 'neutral') AS htrend,
			if(current_water < toDecimal64('0.90', 4), 'low', 'normal') AS wlevel,
			toInt64(count()) AS total,
			toInt64(countIf(actual_result = 'win')) AS wins
		FROM %s FINAL
		WHERE user_id = ? AND deleted = 0 AND actual_result != ''
		GROUP BY handicap_type, wtrend, htrend, wlevel
		ORDER BY handicap_type, wtrend, htrend, wlevel`, s.table)

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		s.l.Error("clickhouse grouped outcomes query error", applogger.String("user_id", userID), applogger.Error(err))
		return nil, fmt.Errorf("grouped outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.GroupedRow, 0)
	for rows.Next() {
		var (
			g                          models.GroupedRow
			ht, wtrend, htrend, wlevel string
		)
		if err := rows.Scan(&ht, &wtrend, &htrend, &wlevel, &g.Total, &g.Wins); err != nil {
			return nil, fmt.Errorf("scan grouped row: %w", err)
		}
		g.HandicapType = models.HandicapType(ht)
		g.WaterTrend = models.Trend(wtrend)
		g.HandicapTrend = models.Trend(htrend)
		g.WaterLevel = models.WaterLevel(wlevel)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Compact forces the pending merges so superseded versions are dropped.
func (s *ClickHouseRecordStore) Compact(ctx context.Context) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("OPTIMIZE TABLE %s FINAL", s.table)); err != nil {
		return fmt.Errorf("optimize %s: %w", s.table, err)
	}
	s.l.Info("clickhouse compact ok",
		applogger.String("table", s.table),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *ClickHouseRecordStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close closes the underlying client; the store owns it once constructed.
func (s *ClickHouseRecordStore) Close() error {
	return s.ch.Close()
}

const chRecordColumns = `id, user_id, match_name, handicap_type, initial_handicap, current_handicap,
	initial_water, current_water, handicap_change, water_change, historical_record,
	recommendation, confidence, score, actual_result, created_at`

func (s *ClickHouseRecordStore) insert(ctx context.Context, r *models.Record, deleted bool) error {
	var del uint8
	if deleted {
		del = 1
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s, deleted, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table, chRecordColumns)
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.UserID, r.MatchName, string(r.HandicapType),
		r.InitialHandicap, r.CurrentHandicap, r.InitialWater, r.CurrentWater,
		r.HandicapChange, r.WaterChange,
		string(r.HistoricalRecord), string(r.Recommendation), string(r.Confidence),
		r.Score, string(r.ActualResult), r.CreatedAt.UTC(),
		del, uint64(time.Now().UnixNano()),
	)
	if err != nil {
		s.l.Error("clickhouse insert error",
			applogger.String("table", s.table),
			applogger.String("record_id", r.ID),
			applogger.Bool("deleted", deleted),
			applogger.Error(err),
		)
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func chWhere(f models.RecordFilter) (string, []interface{}) {
	conds := []string{"deleted = 0"}
	var args []interface{}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.HandicapType != "" {
		conds = append(conds, "handicap_type = ?")
		args = append(args, string(f.HandicapType))
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanCHRecord(sc rowScanner) (*models.Record, error) {
	var (
		r                           models.Record
		ht, hist, rec, conf, actual string
	)
	if err := sc.Scan(&r.ID, &r.UserID, &r.MatchName, &ht,
		&r.InitialHandicap, &r.CurrentHandicap, &r.InitialWater, &r.CurrentWater,
		&r.HandicapChange, &r.WaterChange,
		&hist, &rec, &conf, &r.Score, &actual, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.HandicapType = models.HandicapType(ht)
	r.HistoricalRecord = models.HistoricalRecord(hist)
	r.Recommendation = models.Side(rec)
	r.Confidence = models.Confidence(conf)
	r.ActualResult = models.ActualResult(actual)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
