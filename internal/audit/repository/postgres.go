package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/audit/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an audit log repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (id, user_id, action, resource, outcome, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)`,
		a.ID, nullable(a.UserID), a.Action, a.Resource, a.Outcome, a.IP, nullable(a.Metadata), a.CreatedAt)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
