package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a user lookup finds no matching record.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateFacebookID is returned when a user with the same platform id already exists.
var ErrDuplicateFacebookID = errors.New("facebook id already registered")

const userColumns = `id, first_name, last_name, COALESCE(nickname, ''), facebook_id,
	gender, locale, state, is_registered, is_admin,
	COALESCE(usos_token, ''), COALESCE(usos_secret, ''), COALESCE(usos_course, 0),
	created_at, updated_at`

// Repository provides persistence for users against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. Sets ID, CreatedAt and UpdatedAt on u.
func (r *Repository) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	q := `
		INSERT INTO users (first_name, last_name, facebook_id, gender, locale, state,
		                   is_registered, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	err := r.db.QueryRow(ctx, q,
		u.FirstName, u.LastName, u.FacebookID, u.Gender, u.Locale, int(u.State),
		u.IsRegistered, u.IsAdmin, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateFacebookID
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByFacebookID retrieves a user by platform page-scoped id.
func (r *Repository) GetByFacebookID(ctx context.Context, facebookID string) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE facebook_id = $1`, facebookID)
}

// ListByTarget returns users matching a broadcast predicate. where must be a
// trusted SQL fragment using positional placeholders for args.
func (r *Repository) ListByTarget(ctx context.Context, where string, args ...any) ([]*User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users by target: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateConversation writes the conversation state and nickname.
func (r *Repository) UpdateConversation(ctx context.Context, id int64, state State, nickname string) error {
	q := `UPDATE users SET state = $2, nickname = NULLIF($3, ''), updated_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, int(state), nickname, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUSOSTokens stores the USOS access token pair and marks the user registered.
func (r *Repository) SetUSOSTokens(ctx context.Context, id int64, token, secret string) error {
	q := `UPDATE users SET usos_token = $2, usos_secret = $3, is_registered = true, updated_at = $4 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, token, secret, time.Now().UTC())
	return err
}

// ClearUSOSTokens drops the USOS token pair and the registration flag.
func (r *Repository) ClearUSOSTokens(ctx context.Context, id int64) error {
	q := `UPDATE users SET usos_token = NULL, usos_secret = NULL, is_registered = false, updated_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, time.Now().UTC())
	return err
}

// SetAdmin grants or revokes admin rights by platform id.
func (r *Repository) SetAdmin(ctx context.Context, facebookID string, admin bool) error {
	q := `UPDATE users SET is_admin = $2, updated_at = $3 WHERE facebook_id = $1`
	tag, err := r.db.Exec(ctx, q, facebookID, admin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var state int
	if err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Nickname, &u.FacebookID,
		&u.Gender, &u.Locale, &state, &u.IsRegistered, &u.IsAdmin,
		&u.USOSToken, &u.USOSSecret, &u.USOSCourse,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.State = State(state)
	return &u, nil
}
