package repository

import (
	"context"
	"errors"

	"identity-service/internal/user/domain"
)

// Unique-constraint failures reported by Create and SetPhone.
var (
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUserName = errors.New("duplicate user name")
	ErrDuplicatePhone    = errors.New("duplicate phone")
)

// Repository defines persistence for users. Getters return (nil, nil) for a missing row;
// conditional updates report whether a row was affected.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUserName(ctx context.Context, userName string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (bool, error)
	MarkEmailVerified(ctx context.Context, email string) (bool, error)
	// SetPhone stores phone and clears phone_verified and login_verified.
	SetPhone(ctx context.Context, id, phone string) (bool, error)
	// MarkPhoneVerified sets phone_verified only when it is currently false.
	MarkPhoneVerified(ctx context.Context, id string) (bool, error)
	SetLoginVerified(ctx context.Context, id string, verified bool) (bool, error)
}
