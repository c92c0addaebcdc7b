package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"identity-service/internal/apperror"
	identitydomain "identity-service/internal/identity/domain"
	"identity-service/internal/policy/engine"
	userdomain "identity-service/internal/user/domain"
	userrepo "identity-service/internal/user/repository"
)

// ErrOriginConflict is returned when an email is already registered under another origin.
var ErrOriginConflict = apperror.New(apperror.KindConflict, "This email is already associated with other account")

// AccountFinder is the minimal user repository needed by the Resolver.
type AccountFinder interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByUserName(ctx context.Context, userName string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// Resolver maps an email and origin to an account, creating federated accounts on first use.
type Resolver struct {
	users AccountFinder
	roles engine.RoleAssigner
	log   *zap.Logger
	now   func() time.Time
}

// NewResolver returns a Resolver. roles may be nil, in which case new accounts get RoleUser.
func NewResolver(users AccountFinder, roles engine.RoleAssigner, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{users: users, roles: roles, log: log, now: time.Now}
}

// FindByEmailOrUsername returns the account whose email equals identifier, or else whose user
// name equals it. Returns (nil, nil) when neither matches.
func (r *Resolver) FindByEmailOrUsername(ctx context.Context, identifier string) (*userdomain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	u, err := r.users.GetByEmail(ctx, strings.ToLower(identifier))
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	return r.users.GetByUserName(ctx, identifier)
}

// FindOrCreateFederated returns the account for email under origin, creating it when absent.
// The email is normalized for the origin first. An account stored under a different origin
// yields ErrOriginConflict. created reports whether this call inserted the row.
func (r *Resolver) FindOrCreateFederated(ctx context.Context, email, origin string) (u *userdomain.User, created bool, err error) {
	email = strings.ToLower(identitydomain.NormalizeFederatedEmail(strings.TrimSpace(email), origin))
	existing, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.LoginType != origin {
			return nil, false, ErrOriginConflict
		}
		return existing, false, nil
	}

	now := r.now().UTC()
	u = &userdomain.User{
		ID:            uuid.New().String(),
		UserName:      email,
		Email:         email,
		LoginType:     origin,
		Role:          r.assignRole(ctx, origin, email),
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.Validate(); err != nil {
		return nil, false, apperror.Wrap(apperror.KindInvalidInput, "Invalid email", err)
	}
	if err := r.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			// Lost a concurrent create for the same email; resolve against the winner.
			winner, gerr := r.users.GetByEmail(ctx, email)
			if gerr != nil {
				return nil, false, gerr
			}
			if winner == nil {
				return nil, false, err
			}
			if winner.LoginType != origin {
				return nil, false, ErrOriginConflict
			}
			return winner, false, nil
		}
		if errors.Is(err, userrepo.ErrDuplicateUserName) {
			return nil, false, ErrUserNameExists
		}
		return nil, false, err
	}
	return u, true, nil
}

// assignRole asks the role policy for the role of a new account. Failures fall back to RoleUser.
func (r *Resolver) assignRole(ctx context.Context, origin, email string) userdomain.Role {
	if r.roles == nil {
		return userdomain.RoleUser
	}
	role, err := r.roles.AssignRole(ctx, engine.RoleInput{Origin: origin, Email: email})
	if err != nil {
		r.log.Warn("role policy evaluation failed; assigning default role",
			zap.String("origin", origin), zap.Error(err))
		return userdomain.RoleUser
	}
	return role
}
