package engine

import (
	"context"

	userdomain "identity-service/internal/user/domain"
)

// RoleInput is the policy input for a newly created account.
type RoleInput struct {
	Origin string `json:"origin"`
	Email  string `json:"email"`
}

// RoleAssigner decides the role of a newly created account.
type RoleAssigner interface {
	// AssignRole returns the role for an account created with the given origin and email.
	// On error it still returns the baseline role, so callers may log and continue.
	AssignRole(ctx context.Context, in RoleInput) (userdomain.Role, error)
}
