package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is an account's authorization role.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleUser       Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// User is the account entity.
type User struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"` // optional; unique when set
	// PasswordHash is empty for accounts created through federation. Never serialized.
	PasswordHash string `json:"-"`
	// LoginType is the federation origin the account was created with ("local", "linkedin", ...).
	LoginType     string `json:"loginType"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"isEmailVerified"`
	PhoneVerified bool   `json:"isPhoneVerified"`
	// LoginVerified is set by a successful OTP check and cleared by logout.
	LoginVerified bool      `json:"isLoginVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(u.UserName) == "" {
		return errors.New("user name is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return errors.New("unknown role " + string(u.Role))
	}
	return nil
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Public returns a copy of u with the password hash removed.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}
