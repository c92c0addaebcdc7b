package repository

import (
	"context"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/db"
	"identity-service/internal/user/domain"
)

const userColumns = `id, user_name, email, phone, password, login_type, role,
	email_verified, phone_verified, login_verified, created_at, updated_at`

type userRow struct {
	ID            string    `db:"id"`
	UserName      string    `db:"user_name"`
	Email         string    `db:"email"`
	Phone         *string   `db:"phone"`
	Password      string    `db:"password"`
	LoginType     string    `db:"login_type"`
	Role          string    `db:"role"`
	EmailVerified bool      `db:"email_verified"`
	PhoneVerified bool      `db:"phone_verified"`
	LoginVerified bool      `db:"login_verified"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a user repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByUserName returns the user with the given user name, or nil if not found.
func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_name = $1`, userName)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// Unique violations are reported as ErrDuplicateEmail, ErrDuplicateUserName or ErrDuplicatePhone.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.UserName, u.Email, nullable(u.Phone), u.PasswordHash, u.LoginType, string(u.Role),
		u.EmailVerified, u.PhoneVerified, u.LoginVerified, u.CreatedAt, u.UpdatedAt)
	return mapUniqueViolation(err)
}

// UpdatePassword replaces the password hash of the user with id.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error) {
	return r.exec(ctx, `UPDATE users SET password = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
}

// UpdatePasswordByEmail replaces the password hash of the user with email.
func (r *PostgresRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (bool, error) {
	return r.exec(ctx, `UPDATE users SET password = $2, updated_at = now() WHERE email = $1`, email, passwordHash)
}

// MarkEmailVerified sets email_verified for the user with email.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, email string) (bool, error) {
	return r.exec(ctx, `UPDATE users SET email_verified = TRUE, updated_at = now() WHERE email = $1`, email)
}

// SetPhone stores phone on the user and clears phone_verified and login_verified.
func (r *PostgresRepository) SetPhone(ctx context.Context, id, phone string) (bool, error) {
	ok, err := r.exec(ctx, `UPDATE users
		SET phone = $2, phone_verified = FALSE, login_verified = FALSE, updated_at = now()
		WHERE id = $1`, id, phone)
	return ok, mapUniqueViolation(err)
}

// MarkPhoneVerified sets phone_verified when it is currently false. Returns false if it was already set.
func (r *PostgresRepository) MarkPhoneVerified(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, `UPDATE users SET phone_verified = TRUE, updated_at = now()
		WHERE id = $1 AND phone_verified = FALSE`, id)
}

// SetLoginVerified sets or clears login_verified.
func (r *PostgresRepository) SetLoginVerified(ctx context.Context, id string, verified bool) (bool, error) {
	return r.exec(ctx, `UPDATE users SET login_verified = $2, updated_at = now() WHERE id = $1`, id, verified)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var row userRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func mapUniqueViolation(err error) error {
	constraint, ok := db.UniqueConstraint(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(constraint, "email"):
		return ErrDuplicateEmail
	case strings.Contains(constraint, "user_name"):
		return ErrDuplicateUserName
	case strings.Contains(constraint, "phone"):
		return ErrDuplicatePhone
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rowToDomain(row *userRow) *domain.User {
	phone := ""
	if row.Phone != nil {
		phone = *row.Phone
	}
	return &domain.User{
		ID:            row.ID,
		UserName:      row.UserName,
		Email:         row.Email,
		Phone:         phone,
		PasswordHash:  row.Password,
		LoginType:     row.LoginType,
		Role:          domain.Role(row.Role),
		EmailVerified: row.EmailVerified,
		PhoneVerified: row.PhoneVerified,
		LoginVerified: row.LoginVerified,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
