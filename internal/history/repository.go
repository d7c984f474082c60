package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists messages and events to PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertMessage stores m; a repeated mid only refreshes the text.
func (r *Repository) UpsertMessage(ctx context.Context, m *Message) error {
	q := `
		INSERT INTO messages (id, sender, recipient, sent_at, text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text`
	if _, err := r.db.Exec(ctx, q, m.ID, m.Sender, m.Recipient, m.Timestamp.UTC(), m.Text); err != nil {
		return fmt.Errorf("upsert message %s: %w", m.ID, err)
	}
	return nil
}

// UpsertEvent stores e keyed by (sender, timestamp).
func (r *Repository) UpsertEvent(ctx context.Context, e *Event) error {
	q := `
		INSERT INTO events (sender, recipient, sent_at, title, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sender, sent_at) DO UPDATE SET title = EXCLUDED.title, payload = EXCLUDED.payload`
	if _, err := r.db.Exec(ctx, q, e.Sender, e.Recipient, e.Timestamp.UTC(), e.Title, e.Payload); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}
