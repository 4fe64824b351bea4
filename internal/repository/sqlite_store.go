package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/repository"
	applogger "OddsPulse/pkg/logger"
	pkgsqlite "OddsPulse/pkg/sqlite"
)

// SQLiteMigrations creates the records table. Decimals are stored as TEXT to keep them exact.
var SQLiteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		match_name        TEXT NOT NULL,
		handicap_type     TEXT NOT NULL,
		initial_handicap  TEXT NOT NULL,
		current_handicap  TEXT NOT NULL,
		initial_water     TEXT NOT NULL,
		current_water     TEXT NOT NULL,
		handicap_change   TEXT NOT NULL,
		water_change      TEXT NOT NULL,
		historical_record TEXT NOT NULL,
		recommendation    TEXT NOT NULL,
		confidence        TEXT NOT NULL,
		score             REAL NOT NULL,
		actual_result     TEXT NOT NULL DEFAULT '',
		created_at        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_user_created ON records(user_id, created_at)`,
}

const recordColumns = `id, user_id, match_name, handicap_type, initial_handicap, current_handicap,
	initial_water, current_water, handicap_change, water_change, historical_record,
	recommendation, confidence, score, actual_result, created_at`

// SQLiteRecordStore persists records in an embedded SQLite database.
type SQLiteRecordStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes
	l  *applogger.Logger
}

var _ repository.RecordStore = (*SQLiteRecordStore)(nil)

// NewSQLiteRecordStore opens path (":memory:" for an ephemeral database) and migrates it.
func NewSQLiteRecordStore(ctx context.Context, path string, l *applogger.Logger) (*SQLiteRecordStore, error) {
	db, err := pkgsqlite.Open(ctx, path, SQLiteMigrations)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	l.Info("sqlite record store opened", applogger.String("path", path))
	return &SQLiteRecordStore{db: db, l: l}, nil
}

func (s *SQLiteRecordStore) Init(ctx context.Context) error {
	return pkgsqlite.Migrate(ctx, s.db, SQLiteMigrations)
}

func (s *SQLiteRecordStore) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.UserID, r.MatchName, string(r.HandicapType),
		r.InitialHandicap.String(), r.CurrentHandicap.String(),
		r.InitialWater.String(), r.CurrentWater.String(),
		r.HandicapChange.String(), r.WaterChange.String(),
		string(r.HistoricalRecord), string(r.Recommendation), string(r.Confidence),
		r.Score, string(r.ActualResult), r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrRecordExists
	}
	return nil
}

func (s *SQLiteRecordStore) Get(ctx context.Context, id string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

func (s *SQLiteRecordStore) List(ctx context.Context, f models.RecordFilter) ([]*models.Record, int64, error) {
	where, args := sqliteWhere(f)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT ` + recordColumns + ` FROM records` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return out, total, nil
}

func (s *SQLiteRecordStore) SetActualResult(ctx context.Context, id string, result models.ActualResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET actual_result = ? WHERE id = ? AND actual_result = ''`, string(result), id)
	if err != nil {
		return fmt.Errorf("resolve record: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT actual_result FROM records WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve record: %w", err)
	}
	return repository.ErrRecordResolved
}

func (s *SQLiteRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}

func (s *SQLiteRecordStore) GroupedOutcomes(ctx context.Context, userID string) ([]models.GroupedRow, error) {
	const q = `
		SELECT handicap_type,
			CASE WHEN CAST(water_change AS REAL) > 0 THEN 'up'
			     WHEN CAST(water_change AS REAL) < 0 THEN 'down'
			     ELSE 'neutral' END AS wtrend,
			CASE WHEN CAST(handicap_change AS REAL) > 0 THEN 'up'
			     WHEN CAST(handicap_change AS REAL) < 0 THEN 'down'
			     ELSE 'neutral' END AS htrend,
			CASE WHEN CAST(current_water AS REAL) < 0.90 THEN 'low' ELSE 'normal' END AS wlevel,
			COUNT(*) AS total,
			SUM(CASE WHEN actual_result = 'win' THEN 1 ELSE 0 END) AS wins
		FROM records
		WHERE user_id = ? AND actual_result != ''
		GROUP BY handicap_type, wtrend, htrend, wlevel
		ORDER BY handicap_type, wtrend, htrend, wlevel`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("grouped outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.GroupedRow, 0)
	for rows.Next() {
		var (
			g                            models.GroupedRow
			ht, wtrend, htrend, waterLvl string
		)
		if err := rows.Scan(&ht, &wtrend, &htrend, &waterLvl, &g.Total, &g.Wins); err != nil {
			return nil, fmt.Errorf("scan grouped row: %w", err)
		}
		g.HandicapType = models.HandicapType(ht)
		g.WaterTrend = models.Trend(wtrend)
		g.HandicapTrend = models.Trend(htrend)
		g.WaterLevel = models.WaterLevel(waterLvl)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLiteRecordStore) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}

func sqliteWhere(f models.RecordFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
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
		args = append(args, f.From.UnixNano())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc rowScanner) (*models.Record, error) {
	var (
		r                                models.Record
		ht, hist, rec, conf, actual      string
		ih, ch, iw, cw, hchange, wchange string
		created                          int64
	)
	if err := sc.Scan(&r.ID, &r.UserID, &r.MatchName, &ht, &ih, &ch, &iw, &cw, &hchange, &wchange,
		&hist, &rec, &conf, &r.Score, &actual, &created); err != nil {
		return nil, err
	}

	var err error
	for _, p := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&r.InitialHandicap, ih}, {&r.CurrentHandicap, ch},
		{&r.InitialWater, iw}, {&r.CurrentWater, cw},
		{&r.HandicapChange, hchange}, {&r.WaterChange, wchange},
	} {
		if *p.dst, err = decimal.NewFromString(p.src); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
	}

	r.HandicapType = models.HandicapType(ht)
	r.HistoricalRecord = models.HistoricalRecord(hist)
	r.Recommendation = models.Side(rec)
	r.Confidence = models.Confidence(conf)
	r.ActualResult = models.ActualResult(actual)
	r.CreatedAt = time.Unix(0, created).UTC()
	return &r, nil
}
