// Package otp keeps the per-phone numeric one-time codes used to verify a phone and gate login.
// Codes are stored as SHA-256 digests; verification and expiry are separate checks.
package otp

import (
	"context"
	"fmt"
	"time"

	"identity-service/internal/otp/domain"
)

// DefaultTTL is how long an issued code stays live.
const DefaultTTL = 2 * time.Minute

// Repository is the challenge store the ledger needs.
type Repository interface {
	Get(ctx context.Context, phone string) (*domain.Challenge, error)
	Upsert(ctx context.Context, c *domain.Challenge) error
}

// Ledger issues and checks OTP codes.
type Ledger struct {
	repo     Repository
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewLedger returns a Ledger over repo. ttl <= 0 selects DefaultTTL. now may be nil.
func NewLedger(repo Repository, ttl time.Duration, now func() time.Time) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, ttl: ttl, now: now, generate: GenerateCode}
}

// Issue generates a code for phone, overwriting any earlier one. Returns the plain code for
// delivery and its expiry.
func (l *Ledger) Issue(ctx context.Context, phone string) (string, time.Time, error) {
	code, err := l.generate()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	expiresAt := l.now().UTC().Add(l.ttl)
	if err := l.repo.Upsert(ctx, &domain.Challenge{Phone: phone, CodeHash: HashCode(code), ExpiresAt: expiresAt}); err != nil {
		return "", time.Time{}, fmt.Errorf("store otp: %w", err)
	}
	return code, expiresAt, nil
}

// Verify reports whether code matches the stored code for phone. It does not check expiry.
// A phone with no challenge never verifies.
func (l *Ledger) Verify(ctx context.Context, phone, code string) (bool, error) {
	c, err := l.repo.Get(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}
	if c == nil {
		return false, nil
	}
	return CodeEqual(code, c.CodeHash), nil
}

// IsExpired reports whether the stored code for phone is strictly past its expiry.
// A phone with no challenge counts as expired.
func (l *Ledger) IsExpired(ctx context.Context, phone string) (bool, error) {
	c, err := l.repo.Get(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}
	if c == nil {
		return true, nil
	}
	return c.Expired(l.now()), nil
}
