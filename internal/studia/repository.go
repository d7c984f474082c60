package studia

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no session exists for a program.
var ErrNotFound = errors.New("studia session not found")

// Session is the portal login state of one study program.
type Session struct {
	ProgramID   int64
	ProgramName string
	Cookie      string
	LastLoginAt time.Time
}

// Alive reports whether a session cookie is stored.
func (s *Session) Alive() bool { return s.Cookie != "" }

// Repository persists sessions to PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `program_id, program_name, COALESCE(cookie, ''), COALESCE(last_login_at, 'epoch'::timestamptz)`

// List returns all programs ordered by name.
func (r *Repository) List(ctx context.Context) ([]*Session, error) {
	rows, err := r.db.Query(ctx, `SELECT `+sessionColumns+` FROM studia_sessions ORDER BY program_name`)
	if err != nil {
		return nil, fmt.Errorf("list studia sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns the session of a program.
func (r *Repository) Get(ctx context.Context, programID int64) (*Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM studia_sessions WHERE program_id = $1`, programID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// SetCookie stores a freshly logged-in session.
func (r *Repository) SetCookie(ctx context.Context, programID int64, cookie string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE studia_sessions SET cookie = $2, last_login_at = $3 WHERE program_id = $1`,
		programID, cookie, at)
	if err != nil {
		return fmt.Errorf("store studia cookie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCookie marks the session of a program as logged out.
func (r *Repository) ClearCookie(ctx context.Context, programID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE studia_sessions SET cookie = NULL WHERE program_id = $1`, programID)
	if err != nil {
		return fmt.Errorf("clear studia cookie: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ProgramID, &s.ProgramName, &s.Cookie, &s.LastLoginAt); err != nil {
		return nil, err
	}
	return &s, nil
}
