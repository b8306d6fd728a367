//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackRepository_AppendAll(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	repo := NewFeedbackRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Append(ctx, &domain.FeedbackEvent{
		ID: uuid.NewString(), TicketText: "refund", Accepted: true, UsedCitations: []string{"c1"}, RecordedAt: now,
	}))
	require.NoError(t, repo.Append(ctx, &domain.FeedbackEvent{
		ID: uuid.NewString(), TicketText: "vpn", Accepted: false, Comment: "wrong doc", RecordedAt: now,
	}))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "refund", all[0].TicketText)
	assert.Equal(t, []string{"c1"}, all[0].UsedCitations)
	assert.Equal(t, "wrong doc", all[1].Comment)
	assert.Empty(t, all[1].UsedCitations)

	report := domain.ComputeGapReport(all, nil, domain.DefaultGapListLimit)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Rejected)
}
