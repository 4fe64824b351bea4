package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"OddsPulse/internal/domain/models"
	domrepo "OddsPulse/internal/domain/repository"
	pkgkafka "OddsPulse/pkg/kafka"
	applogger "OddsPulse/pkg/logger"
)

// RecordEventsHandler consumes record events and applies them to the store. Replays are
// acknowledged: an event whose effect is already visible is not an error.
type RecordEventsHandler struct {
	topic   string
	store   domrepo.RecordStore
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewRecordEventsHandler(topic string, store domrepo.RecordStore, metrics domrepo.Metrics, l *applogger.Logger) *RecordEventsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &RecordEventsHandler{topic: topic, store: store, metrics: metrics, l: l}
}

func (h *RecordEventsHandler) Topic() string { return h.topic }

func (h *RecordEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.RecordEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	if !ev.OccurredAt.IsZero() {
		h.metrics.RecordLatency("event_e2e", time.Since(ev.OccurredAt).Seconds())
	}

	start := time.Now()
	err := ApplyEvent(ctx, h.store, &ev)
	h.metrics.RecordLatency("event_apply", time.Since(start).Seconds())

	switch {
	case err == nil:
	case isReplay(ev.Type, err):
		h.l.Debug("record event already applied",
			applogger.String("event_id", ev.ID),
			applogger.String("type", string(ev.Type)),
			applogger.String("record_id", ev.RecordID),
			applogger.String("trace_id", pkgkafka.TraceIDFromContext(ctx)),
		)
		return nil
	case errors.Is(err, ErrInvalidEvent):
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(err)
	default:
		h.metrics.RecordError("consumer_store")
		return err
	}

	if ev.Type == models.RecordResolved {
		ht := ""
		if r, gerr := h.store.Get(ctx, ev.RecordID); gerr == nil {
			ht = string(r.HandicapType)
		}
		h.metrics.RecordOutcome(ht, string(ev.ActualResult))
	}
	h.metrics.RecordMessageSent("store", string(ev.Type))
	return nil
}

func isReplay(t models.RecordEventType, err error) bool {
	switch t {
	case models.RecordCreated:
		return errors.Is(err, domrepo.ErrRecordExists)
	case models.RecordResolved:
		// not found: the record was deleted after this event
		return errors.Is(err, domrepo.ErrRecordResolved) || errors.Is(err, domrepo.ErrRecordNotFound)
	case models.RecordDeleted:
		return errors.Is(err, domrepo.ErrRecordNotFound)
	}
	return false
}

var _ pkgkafka.MessageHandler = (*RecordEventsHandler)(nil)
