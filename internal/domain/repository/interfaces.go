package repository

import (
	"context"
	"errors"

	"OddsPulse/internal/domain/models"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordResolved = errors.New("record already resolved")
	ErrRecordExists   = errors.New("record already exists")
)

// RecordStore persists betting records and answers the grouped outcome query the
// stats endpoint aggregates. Implementations must classify groups with models.KeyOf
// semantics so every driver yields the same rows for the same data.
type RecordStore interface {
	Init(ctx context.Context) error // ensure tables
	Create(ctx context.Context, r *models.Record) error
	Get(ctx context.Context, id string) (*models.Record, error)
	// List returns one page of matching records, newest first, and the total match count.
	List(ctx context.Context, f models.RecordFilter) ([]*models.Record, int64, error)
	// SetActualResult resolves a record once. It returns ErrRecordResolved on a second call.
	SetActualResult(ctx context.Context, id string, result models.ActualResult) error
	Delete(ctx context.Context, id string) error
	// GroupedOutcomes groups the user's resolved records by type, trends and water level.
	GroupedOutcomes(ctx context.Context, userID string) ([]models.GroupedRow, error)
	Compact(ctx context.Context) error
	Health(ctx context.Context) error // ping
	Close() error
}

// EventPublisher ships record mutations to the async backend.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.RecordEvent) error
	Close() error
}

type Metrics interface {
	RecordRecommendation(handicapType, side, confidence string)
	RecordOutcome(handicapType, result string)
	RecordMessageSent(backend, eventType string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
