package domain

import "time"

// Token is the single verification/reset token kept per email. Issuing a new token for an
// email overwrites the row in place.
type Token struct {
	Email     string
	Token     string
	ExpiresAt time.Time
	Used      bool
}

// Expired reports whether the token is past its expiry at now. The boundary instant is still live.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
