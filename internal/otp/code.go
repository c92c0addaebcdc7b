package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"identity-service/internal/security"
)

const (
	minCode = 1000
	maxCode = 9999
)

// GenerateCode returns a 4-digit numeric code in [1000, 9999]. Uses crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+minCode, 10), nil
}

// HashCode returns the digest stored in place of the plain code.
func HashCode(code string) string {
	return security.DigestSecret(code)
}

// CodeEqual compares provided against the stored digest in constant time.
func CodeEqual(provided, storedHash string) bool {
	return security.SecretDigestEqual(provided, storedHash)
}
