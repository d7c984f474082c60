// Package feedback stores free-text feedback tickets sent by users.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/campusbot/internal/notify"
	"go.uber.org/zap"
)

// MaxLength is the longest feedback text kept, in characters.
const MaxLength = 500

// ErrEmpty is returned for blank feedback.
var ErrEmpty = errors.New("feedback text is empty")

// Ticket is one piece of feedback.
type Ticket struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Number is the short ticket id shown to the user.
func (t *Ticket) Number() string {
	return strings.ToUpper(t.ID.String()[:8])
}

// Repository persists tickets to PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert stores t, replacing the text of an existing ticket with the same id.
func (r *Repository) Upsert(ctx context.Context, t *Ticket) error {
	q := `
		INSERT INTO feedback (id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text`
	if _, err := r.db.Exec(ctx, q, t.ID, t.UserID, t.Text, t.CreatedAt); err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

type ticketRepo interface {
	Upsert(ctx context.Context, t *Ticket) error
}

// Service files tickets and tells the operators about them.
type Service struct {
	repo     ticketRepo
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewService creates a new Service. notifier may be nil.
func NewService(repo ticketRepo, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Submit truncates text to MaxLength characters and stores it as a new ticket.
func (s *Service) Submit(ctx context.Context, userID int64, text string) (*Ticket, error) {
	text = Truncate(strings.TrimSpace(text), MaxLength)
	if text == "" {
		return nil, ErrEmpty
	}

	t := &Ticket{
		ID:        uuid.New(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		subject := fmt.Sprintf("Feedback #%s from user %d", t.Number(), userID)
		if err := s.notifier.Notify(ctx, subject, t.Text); err != nil {
			s.logger.Warn("feedback notification failed",
				zap.String("ticket", t.ID.String()),
				zap.Error(err),
			)
		}
	}
	return t, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
