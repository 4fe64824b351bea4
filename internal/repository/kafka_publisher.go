package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/domain/repository"
	pkgkafka "OddsPulse/pkg/kafka"
)

// Header names set on every record event.
const (
	HeaderEventType = "event_type"
)

// KafkaRecordPublisher publishes record events keyed by user so one user's events stay ordered.
type KafkaRecordPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ repository.EventPublisher = (*KafkaRecordPublisher)(nil)

func NewKafkaRecordPublisher(producer *pkgkafka.Producer, topic string) *KafkaRecordPublisher {
	return &KafkaRecordPublisher{producer: producer, topic: topic}
}

func (p *KafkaRecordPublisher) Publish(ctx context.Context, ev *models.RecordEvent) error {
	msg := EventMessage(ctx, ev)
	if err := p.producer.Publish(ctx, p.topic, msg); err != nil {
		return fmt.Errorf("publish %s %s: %w", ev.Type, ev.RecordID, err)
	}
	return nil
}

func (p *KafkaRecordPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// EventMessage builds the Kafka message for ev. It assigns an event id when missing and
// propagates the trace id from ctx, falling back to the event id.
func EventMessage(ctx context.Context, ev *models.RecordEvent) pkgkafka.Message {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	trace := pkgkafka.TraceIDFromContext(ctx)
	if trace == "" {
		trace = ev.ID
	}
	return pkgkafka.Message{
		Key:   []byte(ev.UserID),
		Value: ev,
		Headers: map[string]string{
			pkgkafka.TraceIDHeader: trace,
			HeaderEventType:        string(ev.Type),
		},
	}
}
