package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketRepository stores tickets and their message threads. Mutations lock
// the ticket row with SELECT ... FOR UPDATE for the length of a transaction.
type TicketRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool, tx: NewTxRunner(pool)}
}

const ticketColumns = `id, customer_id, text, status, sentiment, priority, tags, idempotency_key, created_at, updated_at`

func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) (*domain.Ticket, bool, error) {
	var created bool
	var result *domain.Ticket

	err := r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO tickets (`+ticketColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (idempotency_key) DO NOTHING`,
			t.ID, t.CustomerID, t.Text, t.Status, t.Sentiment, t.Priority, tagsOrEmpty(t.Tags),
			nullableString(t.IdempotencyKey), t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			existing, err := r.getByIdempotencyKey(ctx, tx, t.IdempotencyKey)
			if err != nil {
				return err
			}
			result = existing
			return nil
		}

		if err := insertMessages(ctx, tx, t.ID, t.Messages); err != nil {
			return err
		}
		created = true
		result = t.Clone()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (r *TicketRepository) getByIdempotencyKey(ctx context.Context, db dbtx, key string) (*domain.Ticket, error) {
	t, err := scanTicket(db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	if err := loadMessages(ctx, db, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return getTicket(ctx, r.pool, id, false)
}

func getTicket(ctx context.Context, db dbtx, id string, forUpdate bool) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	t, err := scanTicket(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}

	if err := loadMessages(ctx, db, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TicketRepository) List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	var where []string
	var args []interface{}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		where = append(where, "customer_id = $1")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update locks the ticket row, applies fn to the loaded ticket, then writes
// back scalar fields and any messages fn appended.
func (r *TicketRepository) Update(ctx context.Context, id string, fn func(t *domain.Ticket) error) (*domain.Ticket, error) {
	var result *domain.Ticket

	err := r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		t, err := getTicket(ctx, tx, id, true)
		if err != nil {
			return err
		}

		before := len(t.Messages)
		if err := fn(t); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE tickets
			 SET status = $2, sentiment = $3, priority = $4, tags = $5, updated_at = $6
			 WHERE id = $1`,
			t.ID, t.Status, t.Sentiment, t.Priority, tagsOrEmpty(t.Tags), t.UpdatedAt,
		)
		if err != nil {
			return err
		}

		if len(t.Messages) > before {
			if err := insertMessages(ctx, tx, t.ID, t.Messages[before:]); err != nil {
				return err
			}
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TicketRepository) Delete(ctx context.Context, id string, check func(t *domain.Ticket) error) error {
	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		t, err := getTicket(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(t); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
		return err
	})
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var status, sentiment, priority string
	var key *string
	if err := row.Scan(&t.ID, &t.CustomerID, &t.Text, &status, &sentiment, &priority, &t.Tags, &key, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	t.Sentiment = domain.Sentiment(sentiment)
	t.Priority = domain.Priority(priority)
	t.IdempotencyKey = derefString(key)
	return &t, nil
}

func loadMessages(ctx context.Context, db dbtx, t *domain.Ticket) error {
	rows, err := db.Query(ctx,
		`SELECT seq, role, content, ts FROM ticket_messages WHERE ticket_id = $1 ORDER BY seq`,
		t.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	t.Messages = nil
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.Seq, &role, &m.Content, &m.TS); err != nil {
			return err
		}
		m.Role = domain.Role(role)
		t.Messages = append(t.Messages, m)
	}
	return rows.Err()
}

func insertMessages(ctx context.Context, db dbtx, ticketID string, msgs []domain.Message) error {
	for _, m := range msgs {
		_, err := db.Exec(ctx,
			`INSERT INTO ticket_messages (ticket_id, seq, role, content, ts) VALUES ($1, $2, $3, $4, $5)`,
			ticketID, m.Seq, m.Role, m.Content, m.TS,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

