package services

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPaymentRecorded EventType = "payment.recorded"
	EventFeeStatusChange EventType = "fee.status_changed"
	EventFeesGenerated   EventType = "fees.generated"
	EventOverdueSwept    EventType = "fees.overdue_swept"
)

// Event is a ledger change pushed to live subscribers of a business.
type Event struct {
	Type       EventType  `json:"type"`
	BusinessID uuid.UUID  `json:"business_id"`
	FeeID      *uuid.UUID `json:"fee_id,omitempty"`
	Payload    any        `json:"payload,omitempty"`
	At         time.Time  `json:"at"`
}

// Publisher delivers events; it must not block the caller.
type Publisher interface {
	Publish(e Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
