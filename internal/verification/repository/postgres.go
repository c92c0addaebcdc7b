package repository

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/verification/domain"
)

type tokenRow struct {
	Email       string    `db:"email"`
	AccessToken string    `db:"access_token"`
	ExpiresAt   time.Time `db:"expires_at"`
	IsUsed      bool      `db:"is_used"`
}

// PostgresRepository stores verification tokens in the email_verifications table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a verification token repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get returns the token row for email, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, email string) (*domain.Token, error) {
	var row tokenRow
	err := pgxscan.Get(ctx, r.pool, &row,
		`SELECT email, access_token, expires_at, is_used FROM email_verifications WHERE email = $1`, email)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Token{Email: row.Email, Token: row.AccessToken, ExpiresAt: row.ExpiresAt, Used: row.IsUsed}, nil
}

// Upsert inserts the token or refreshes the existing row for the email in one statement.
func (r *PostgresRepository) Upsert(ctx context.Context, t *domain.Token) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO email_verifications (id, email, access_token, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			is_used = EXCLUDED.is_used,
			updated_at = now()`,
		uuid.NewString(), t.Email, t.Token, t.ExpiresAt, t.Used)
	return err
}

// MarkUsed sets is_used on the row for email if it still holds token and is unused.
func (r *PostgresRepository) MarkUsed(ctx context.Context, email, token string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE email_verifications SET is_used = TRUE, updated_at = now()
		WHERE email = $1 AND access_token = $2 AND is_used = FALSE`, email, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
