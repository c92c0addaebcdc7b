// Package verification keeps the single-use, expiring tokens behind email verification and
// password reset links. Each email has at most one live token; issuing again refreshes it.
package verification

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"identity-service/internal/apperror"
	"identity-service/internal/security"
	"identity-service/internal/verification/domain"
)

// DefaultTTL is how long an issued token stays live.
const DefaultTTL = 10 * time.Minute

// Validation failures, reported in this precedence: used, expired, mismatch.
var (
	ErrTokenAlreadyUsed = apperror.New(apperror.KindConflict, "Token already been used, access denied")
	ErrTokenExpired     = apperror.New(apperror.KindConflict, "Token expired, access denied")
	ErrTokenMismatch    = apperror.New(apperror.KindConflict, "Invalid token")
)

// Repository persists one verification token per email. Rows are overwritten, never deleted.
type Repository interface {
	// Get returns the token row for email, or nil if none exists.
	Get(ctx context.Context, email string) (*domain.Token, error)
	// Upsert inserts t or overwrites the existing row for t.Email (token, expiry, used flag).
	Upsert(ctx context.Context, t *domain.Token) error
	// MarkUsed flips used from false to true on the row for email, only while that row still
	// holds token. Returns false when no such unused row exists.
	MarkUsed(ctx context.Context, email, token string) (bool, error)
}

// Ledger issues, validates and consumes verification tokens.
type Ledger struct {
	repo     Repository
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewLedger returns a Ledger over repo. ttl <= 0 selects DefaultTTL. now may be nil.
func NewLedger(repo Repository, ttl time.Duration, now func() time.Time) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, ttl: ttl, now: now, newToken: security.NewOpaqueToken}
}

// IssueOrRefresh mints a fresh token for email, replacing any previous token, expiry and used
// flag. Returns the token to embed in the outbound link.
func (l *Ledger) IssueOrRefresh(ctx context.Context, email string) (string, error) {
	email = normalize(email)
	token, err := l.newToken()
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	rec := &domain.Token{
		Email:     email,
		Token:     token,
		ExpiresAt: l.now().UTC().Add(l.ttl),
		Used:      false,
	}
	if err := l.repo.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

// Validate checks supplied against the stored token for email and returns the first violated
// rule: ErrTokenAlreadyUsed, then ErrTokenExpired, then ErrTokenMismatch. A missing row is a
// mismatch: no link was ever issued for email. Validate does not consume the token.
func (l *Ledger) Validate(ctx context.Context, email, supplied string) error {
	rec, err := l.repo.Get(ctx, normalize(email))
	if err != nil {
		return fmt.Errorf("load verification token: %w", err)
	}
	if rec == nil {
		return ErrTokenMismatch
	}
	used := rec.Used
	expired := rec.Expired(l.now())
	match := supplied != "" && subtle.ConstantTimeCompare([]byte(rec.Token), []byte(supplied)) == 1
	switch {
	case used:
		return ErrTokenAlreadyUsed
	case expired:
		return ErrTokenExpired
	case !match:
		return ErrTokenMismatch
	}
	return nil
}

// MarkUsed consumes token for email. Returns false when token is no longer the unused token on
// record, which is what a concurrent consumer that lost the race observes. A token superseded by
// a refresh is left alone, so the refreshed one stays live.
func (l *Ledger) MarkUsed(ctx context.Context, email, token string) (bool, error) {
	ok, err := l.repo.MarkUsed(ctx, normalize(email), token)
	if err != nil {
		return false, fmt.Errorf("mark verification token used: %w", err)
	}
	return ok, nil
}

// Consume validates supplied and then claims it. If another request consumed or refreshed the
// token between the two steps, ErrTokenAlreadyUsed is returned.
func (l *Ledger) Consume(ctx context.Context, email, supplied string) error {
	if err := l.Validate(ctx, email, supplied); err != nil {
		return err
	}
	ok, err := l.MarkUsed(ctx, email, supplied)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenAlreadyUsed
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
