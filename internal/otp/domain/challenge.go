package domain

import "time"

// Challenge is the current OTP for a phone. A new request overwrites it; it is never deleted
// on use and stays comparable until overwritten or expired.
type Challenge struct {
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
}

// Expired reports whether now is strictly after the expiry.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
