package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or signed by another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSigningKey is returned by the constructors when no usable key material is given.
	ErrNoSigningKey = errors.New("no signing key configured")
)

// Claims are the bearer token claims: the account id and email plus the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// TokenProvider issues and validates bearer tokens. It signs with HS256 and a shared secret,
// or with RS256/ES256 when built from a key pair.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey (RS256 or ES256)
// and verifies with publicKey.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrNoSigningKey
	}
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// NewHMACTokenProvider returns a TokenProvider that signs and verifies with an HS256 secret.
// Rotating the secret invalidates every outstanding token.
func NewHMACTokenProvider(secret []byte, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrNoSigningKey
	}
	return &TokenProvider{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// TTL returns the lifetime embedded in issued tokens.
func (p *TokenProvider) TTL() time.Duration {
	return p.ttl
}

// Issue mints a signed token for the account. Returns the token and its expiry.
func (p *TokenProvider) Issue(subjectID, email string) (token string, expiresAt time.Time, err error) {
	now := p.now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: subjectID,
		Email:  email,
	}
	token, err = jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses tokenString and checks signature, expiry, issuer and audience.
// Every failure is reported as ErrInvalidToken.
func (p *TokenProvider) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != p.method.Alg() {
			return nil, ErrInvalidToken
		}
		return p.verifyKey, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
