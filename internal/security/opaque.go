package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns a random hex string with 256 bits of entropy. Used for
// email verification and password reset links.
func NewOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DigestSecret returns the hex SHA-256 digest of a short-lived secret (OTP code, link token).
func DigestSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// SecretDigestEqual compares the digest of provided against storedDigest in constant time.
// An empty provided secret never matches.
func SecretDigestEqual(provided, storedDigest string) bool {
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(DigestSecret(provided)), []byte(storedDigest)) == 1
}
