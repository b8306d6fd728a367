package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus represents the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusResolved TicketStatus = "resolved"
)

// Role identifies the author of a message
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Sentiment is the coarse tone of the customer's latest message
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Priority of a ticket
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityHigh Priority = "high"
)

// Message is an immutable entry in a ticket thread.
type Message struct {
	Seq     int
	Role    Role
	Content string
	TS      time.Time
}

// Ticket is a customer issue and its conversation.
type Ticket struct {
	ID             string
	CustomerID     string
	Text           string
	Status         TicketStatus
	Sentiment      Sentiment
	Priority       Priority
	Tags           []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IdempotencyKey string
	Messages       []Message
}

// TicketFilter narrows ticket listings. Empty fields match everything.
type TicketFilter struct {
	CustomerID string
	Status     TicketStatus
}

// Matches reports whether t passes the filter.
func (f TicketFilter) Matches(t *Ticket) bool {
	if f.CustomerID != "" && t.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// NewTicket creates an open ticket whose thread starts with the customer's text.
func NewTicket(id, customerID, text string, c Classification, now time.Time) *Ticket {
	return &Ticket{
		ID:         id,
		CustomerID: customerID,
		Text:       text,
		Status:     TicketStatusOpen,
		Sentiment:  c.Sentiment,
		Priority:   c.Priority,
		Tags:       c.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages: []Message{
			{Seq: 1, Role: RoleCustomer, Content: text, TS: now},
		},
	}
}

// CanReply returns ErrTicketClosed unless the ticket is open.
func (t *Ticket) CanReply() error {
	if t.Status != TicketStatusOpen {
		return ErrTicketClosed
	}
	return nil
}

// CanResolve returns ErrInvalidTransition unless the ticket is open.
func (t *Ticket) CanResolve() error {
	if t.Status != TicketStatusOpen {
		return ErrInvalidTransition
	}
	return nil
}

// CanDelete returns ErrTicketNotResolved unless the ticket is resolved.
func (t *Ticket) CanDelete() error {
	if t.Status != TicketStatusResolved {
		return ErrTicketNotResolved
	}
	return nil
}

// NextMessageTS returns a timestamp for a new message that is never earlier
// than the last message in the thread.
func (t *Ticket) NextMessageTS(now time.Time) time.Time {
	if n := len(t.Messages); n > 0 && now.Before(t.Messages[n-1].TS) {
		return t.Messages[n-1].TS
	}
	return now
}

// Append adds a message to the thread. Callers must hold the ticket lock and
// have checked CanReply.
func (t *Ticket) Append(role Role, content string, now time.Time) Message {
	msg := Message{
		Seq:     len(t.Messages) + 1,
		Role:    role,
		Content: content,
		TS:      t.NextMessageTS(now),
	}
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = msg.TS
	return msg
}

// Clone returns a deep copy safe to use after the ticket lock is released.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Messages = append([]Message(nil), t.Messages...)
	return &c
}

// LatestCustomerMessage returns the content of the most recent customer message.
func (t *Ticket) LatestCustomerMessage() string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleCustomer {
			return t.Messages[i].Content
		}
	}
	return t.Text
}

// RetrievalQuery combines the opening message with the latest customer message.
func (t *Ticket) RetrievalQuery() string {
	latest := t.LatestCustomerMessage()
	if strings.TrimSpace(latest) == strings.TrimSpace(t.Text) {
		return t.Text
	}
	return t.Text + "\n" + latest
}

// RecentMessages returns up to n of the newest messages, oldest first.
func (t *Ticket) RecentMessages(n int) []Message {
	if n <= 0 || len(t.Messages) == 0 {
		return nil
	}
	if len(t.Messages) <= n {
		return t.Messages
	}
	return t.Messages[len(t.Messages)-n:]
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleAgent:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// ParseTicketStatus validates a status string. An empty string is accepted
// and means "any status".
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch TicketStatus(s) {
	case "", TicketStatusOpen, TicketStatusResolved:
		return TicketStatus(s), nil
	}
	return "", NewDomainError(ErrCodeValidation, fmt.Sprintf("invalid ticket status: %s", s))
}
