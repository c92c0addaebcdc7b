package repository

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/otp/domain"
)

type challengeRow struct {
	Phone     string    `db:"phone"`
	CodeHash  string    `db:"code_hash"`
	ExpiresAt time.Time `db:"expires_at"`
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an OTP challenge repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get returns the challenge for phone, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, phone string) (*domain.Challenge, error) {
	var row challengeRow
	err := pgxscan.Get(ctx, r.pool, &row, `SELECT phone, code_hash, expires_at FROM otps WHERE phone = $1`, phone)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Challenge{Phone: row.Phone, CodeHash: row.CodeHash, ExpiresAt: row.ExpiresAt}, nil
}

// Upsert stores the challenge keyed by phone.
func (r *PostgresRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO otps (id, phone, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		uuid.NewString(), c.Phone, c.CodeHash, c.ExpiresAt)
	return err
}
