package amqp

import (
	"encoding/json"
	"time"
)

// EventType names what happened to a transaction.
type EventType string

const (
	EventCreated   EventType = "transaction.created"
	EventUpdated   EventType = "transaction.updated"
	EventConfirmed EventType = "transaction.confirmed"
	EventDeleted   EventType = "transaction.deleted"
)

// TransactionEvent is a lightweight notification; consumers fetch the
// transaction itself if they need it.
type TransactionEvent struct {
	Type        EventType `json:"type"`
	ID          int64     `json:"id"`
	Scope       string    `json:"scope"`
	Occurrences int       `json:"occurrences,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTransactionEvent(typ EventType, id int64, scope string, occurrences int) *TransactionEvent {
	return &TransactionEvent{
		Type:        typ,
		ID:          id,
		Scope:       scope,
		Occurrences: occurrences,
		Timestamp:   time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
