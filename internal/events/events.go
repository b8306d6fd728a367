// Package events fans ticket changes out to live subscribers.
package events

import (
	"context"
	"time"
)

// Type names a ticket change.
type Type string

const (
	TypeCreated  Type = "created"
	TypeMessage  Type = "message"
	TypeResolved Type = "resolved"
	TypeDeleted  Type = "deleted"
)

// Message is the payload of a TypeMessage event.
type Message struct {
	Seq     int       `json:"seq"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
}

// TicketEvent is published after a ticket change has been committed.
type TicketEvent struct {
	Type     Type      `json:"type"`
	TicketID string    `json:"ticket_id"`
	Status   string    `json:"status,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Broker publishes ticket events and lets callers follow one ticket.
type Broker interface {
	Publish(ctx context.Context, ev TicketEvent) error
	// Subscribe returns a channel of events for ticketID. The channel is
	// closed when ctx is done or the returned cancel func is called.
	Subscribe(ctx context.Context, ticketID string) (<-chan TicketEvent, func(), error)
	Close() error
}

const subscriberBuffer = 16
