package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent announces a committed change to the transactions table.
// It carries ids only; consumers load the row themselves when they need it.
type TransactionEvent struct {
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionCreated(transactionID, accountID int64) *TransactionEvent {
	return newTransactionEvent(EventTransactionCreated, transactionID, accountID)
}

func NewTransactionDeleted(transactionID, accountID int64) *TransactionEvent {
	return newTransactionEvent(EventTransactionDeleted, transactionID, accountID)
}

func newTransactionEvent(t EventType, transactionID, accountID int64) *TransactionEvent {
	return &TransactionEvent{
		Type:          t,
		TransactionID: transactionID,
		AccountID:     accountID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event and rejects unknown types.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventTransactionCreated, EventTransactionDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.TransactionID <= 0 {
		return nil, fmt.Errorf("event without transaction id")
	}
	return &e, nil
}
