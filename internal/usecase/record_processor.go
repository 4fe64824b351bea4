package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"OddsPulse/internal/domain/models"
	drepo "OddsPulse/internal/domain/repository"
)

// Backend names for backend.type.
const (
	BackendDirect = "direct"
	BackendKafka  = "kafka"
)

// RecordProcessor routes record mutations to the configured backend: straight into the
// store, or onto Kafka for the events consumer to apply.
type RecordProcessor struct {
	pub     drepo.EventPublisher
	store   drepo.RecordStore
	metrics drepo.Metrics
	backend string
	now     func() time.Time
}

func NewRecordProcessor(
	pub drepo.EventPublisher,
	store drepo.RecordStore,
	metrics drepo.Metrics,
	backend string,
) *RecordProcessor {
	return &RecordProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		now:     time.Now,
	}
}

func (p *RecordProcessor) Backend() string { return p.backend }

func (p *RecordProcessor) Create(ctx context.Context, r *models.Record) error {
	return p.Process(ctx, &models.RecordEvent{
		Type:     models.RecordCreated,
		RecordID: r.ID,
		UserID:   r.UserID,
		Record:   r,
	})
}

func (p *RecordProcessor) Resolve(ctx context.Context, r *models.Record, result models.ActualResult) error {
	return p.Process(ctx, &models.RecordEvent{
		Type:         models.RecordResolved,
		RecordID:     r.ID,
		UserID:       r.UserID,
		ActualResult: result,
	})
}

func (p *RecordProcessor) Delete(ctx context.Context, r *models.Record) error {
	return p.Process(ctx, &models.RecordEvent{
		Type:     models.RecordDeleted,
		RecordID: r.ID,
		UserID:   r.UserID,
	})
}

// Process stamps ev and routes it to the configured backend.
func (p *RecordProcessor) Process(ctx context.Context, ev *models.RecordEvent) error {
	if ev == nil {
		return fmt.Errorf("event is nil")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
		} else {
			err = p.pub.Publish(ctx, ev)
		}
	case BackendDirect:
		err = ApplyEvent(ctx, p.store, ev)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownBackend, p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process %s: %w", ev.Type, err)
	}

	p.metrics.RecordMessageSent(p.backend, string(ev.Type))
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// Close closes the publisher. The store is owned by the caller.
func (p *RecordProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}

// ApplyEvent writes one record event to the store.
func ApplyEvent(ctx context.Context, store drepo.RecordStore, ev *models.RecordEvent) error {
	switch ev.Type {
	case models.RecordCreated:
		if ev.Record == nil {
			return fmt.Errorf("%w: %s %s without record", ErrInvalidEvent, ev.Type, ev.ID)
		}
		return store.Create(ctx, ev.Record)
	case models.RecordResolved:
		return store.SetActualResult(ctx, ev.RecordID, ev.ActualResult)
	case models.RecordDeleted:
		return store.Delete(ctx, ev.RecordID)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
}
