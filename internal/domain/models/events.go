package models

import "time"

// RecordEventType is the kind of mutation carried by a RecordEvent.
type RecordEventType string

const (
	RecordCreated  RecordEventType = "record.created"
	RecordResolved RecordEventType = "record.resolved"
	RecordDeleted  RecordEventType = "record.deleted"
)

// RecordEvent is the message published to Kafka when record writes go through the async backend.
type RecordEvent struct {
	ID           string          `json:"id"`
	Type         RecordEventType `json:"type"`
	RecordID     string          `json:"recordId"`
	UserID       string          `json:"userId"`
	Record       *Record         `json:"record,omitempty"`
	ActualResult ActualResult    `json:"actualResult,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
}
