package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no live flow matches.
var ErrNotFound = errors.New("login flow not found")

const flowColumns = `user_id, linking_token, redirect_uri, auth_code, request_token, request_secret, created_at`

// Repository stores pending login flows in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new flow.
func (r *Repository) Create(ctx context.Context, f *Flow) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	q := `
		INSERT INTO login_flows (` + flowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, q,
		f.UserID, f.LinkingToken, f.RedirectURI, f.AuthCode,
		f.RequestToken, f.RequestSecret, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create login flow: %w", err)
	}
	return nil
}

// GetByRequestToken returns the flow created after notBefore for a USOS request token.
func (r *Repository) GetByRequestToken(ctx context.Context, token string, notBefore time.Time) (*Flow, error) {
	q := `SELECT ` + flowColumns + ` FROM login_flows WHERE request_token = $1 AND created_at >= $2`
	return scanFlow(r.db.QueryRow(ctx, q, token, notBefore.UTC()))
}

// TakeByAuthCode deletes and returns the flow owning code.
func (r *Repository) TakeByAuthCode(ctx context.Context, code string) (*Flow, error) {
	q := `DELETE FROM login_flows WHERE auth_code = $1 RETURNING ` + flowColumns
	return scanFlow(r.db.QueryRow(ctx, q, code))
}

// DeleteExpired removes flows created before cutoff and returns how many.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_flows WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired login flows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanFlow(row pgx.Row) (*Flow, error) {
	var f Flow
	err := row.Scan(&f.UserID, &f.LinkingToken, &f.RedirectURI, &f.AuthCode,
		&f.RequestToken, &f.RequestSecret, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan login flow: %w", err)
	}
	return &f, nil
}
