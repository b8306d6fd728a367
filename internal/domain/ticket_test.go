package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTicket(now time.Time) *Ticket {
	return NewTicket("t1", "cust-1", "I cannot log in", Classification{
		Tags:      []string{"technical"},
		Sentiment: SentimentNeutral,
		Priority:  PriorityLow,
	}, now)
}

func TestNewTicket(t *testing.T) {
	now := time.Now()
	ticket := newTestTicket(now)

	assert.Equal(t, TicketStatusOpen, ticket.Status)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, RoleCustomer, ticket.Messages[0].Role)
	assert.Equal(t, ticket.Text, ticket.Messages[0].Content)
	assert.Equal(t, 1, ticket.Messages[0].Seq)
	assert.Equal(t, now, ticket.CreatedAt)
}

func TestTicketTransitions(t *testing.T) {
	tests := []struct {
		name       string
		status     TicketStatus
		replyErr   error
		resolveErr error
		deleteErr  error
	}{
		{"Open", TicketStatusOpen, nil, nil, ErrTicketNotResolved},
		{"Resolved", TicketStatusResolved, ErrTicketClosed, ErrInvalidTransition, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTestTicket(time.Now())
			ticket.Status = tt.status

			assert.Equal(t, tt.replyErr, ticket.CanReply())
			assert.Equal(t, tt.resolveErr, ticket.CanResolve())
			assert.Equal(t, tt.deleteErr, ticket.CanDelete())
		})
	}
}

func TestTicketAppend_TimestampsNeverGoBackwards(t *testing.T) {
	now := time.Now()
	ticket := newTestTicket(now)

	msg := ticket.Append(RoleAgent, "try resetting", now.Add(-time.Minute))

	assert.Equal(t, 2, msg.Seq)
	assert.False(t, msg.TS.Before(ticket.Messages[0].TS))
	assert.Equal(t, msg.TS, ticket.UpdatedAt)
}

func TestTicketClone_IsIndependent(t *testing.T) {
	ticket := newTestTicket(time.Now())
	clone := ticket.Clone()

	ticket.Append(RoleAgent, "hello", time.Now())
	ticket.Tags[0] = "changed"

	assert.Len(t, clone.Messages, 1)
	assert.Equal(t, "technical", clone.Tags[0])
}

func TestTicketRetrievalQuery(t *testing.T) {
	ticket := newTestTicket(time.Now())
	assert.Equal(t, "I cannot log in", ticket.RetrievalQuery())

	ticket.Append(RoleAgent, "which browser?", time.Now())
	assert.Equal(t, "I cannot log in", ticket.RetrievalQuery())

	ticket.Append(RoleCustomer, "Chrome on Windows", time.Now())
	assert.Equal(t, "I cannot log in\nChrome on Windows", ticket.RetrievalQuery())
}

func TestTicketRecentMessages(t *testing.T) {
	ticket := newTestTicket(time.Now())
	for i := 0; i < 6; i++ {
		ticket.Append(RoleAgent, "msg", time.Now())
	}

	recent := ticket.RecentMessages(5)
	require.Len(t, recent, 5)
	assert.Equal(t, 3, recent[0].Seq)
	assert.Equal(t, 7, recent[4].Seq)
	assert.Nil(t, ticket.RecentMessages(0))
}

func TestTicketFilter(t *testing.T) {
	ticket := newTestTicket(time.Now())

	assert.True(t, TicketFilter{}.Matches(ticket))
	assert.True(t, TicketFilter{CustomerID: "cust-1", Status: TicketStatusOpen}.Matches(ticket))
	assert.False(t, TicketFilter{CustomerID: "other"}.Matches(ticket))
	assert.False(t, TicketFilter{Status: TicketStatusResolved}.Matches(ticket))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("agent")
	require.NoError(t, err)
	assert.Equal(t, RoleAgent, r)

	_, err = ParseRole("bot")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseTicketStatus(t *testing.T) {
	s, err := ParseTicketStatus("")
	require.NoError(t, err)
	assert.Equal(t, TicketStatus(""), s)

	_, err = ParseTicketStatus("closed")
	assert.Error(t, err)
}
