//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRedisContainer(ctx, t)
	defer rc.Terminate(ctx)

	b, err := NewRedisBroker(ctx, rc.URL(), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	ch, cancel, err := b.Subscribe(ctx, "t1")
	require.NoError(t, err)
	defer cancel()

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, b.Publish(ctx, TicketEvent{
		Type:     TypeMessage,
		TicketID: "t1",
		Status:   "open",
		Message:  &Message{Seq: 2, Role: "agent", Content: "hi", TS: at},
		At:       at,
	}))

	ev := receive(t, ch)
	assert.Equal(t, TypeMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hi", ev.Message.Content)
	assert.True(t, at.Equal(ev.At))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
