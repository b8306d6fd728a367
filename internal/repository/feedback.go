package repository

import (
	"context"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeedbackRepository is the append-only feedback log.
type FeedbackRepository struct {
	db dbtx
}

func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: pool}
}

func (r *FeedbackRepository) Append(ctx context.Context, ev *domain.FeedbackEvent) error {
	citations := ev.UsedCitations
	if citations == nil {
		citations = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO feedback_events (id, ticket_text, accepted, comment, used_citations, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.TicketText, ev.Accepted, ev.Comment, citations, ev.RecordedAt,
	)
	return err
}

func (r *FeedbackRepository) All(ctx context.Context) ([]domain.FeedbackEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, ticket_text, accepted, comment, used_citations, recorded_at
		 FROM feedback_events
		 ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeedbackEvent
	for rows.Next() {
		var ev domain.FeedbackEvent
		if err := rows.Scan(&ev.ID, &ev.TicketText, &ev.Accepted, &ev.Comment, &ev.UsedCitations, &ev.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
