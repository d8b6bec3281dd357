// Package events defines the domain events emitted after checkout and payment commits.
package events

import (
	"context"
	"time"
)

const (
	TypeOrderCreated     = "order.created"
	TypeOrderCancelled   = "order.cancelled"
	TypePaymentCompleted = "payment.completed"
	TypePaymentFailed    = "payment.failed"
)

// Event is the JSON envelope written to the event topic.
type Event struct {
	Type       string                 `json:"type"`
	Key        string                 `json:"key"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// Publisher delivers events. Publish is called after the owning transaction
// has committed; failures are logged by callers and never roll anything back.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type nopPublisher struct{}

// Nop returns a Publisher that drops every event.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// New stamps an event with the current time.
func New(eventType, key string, data map[string]interface{}) Event {
	return Event{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
