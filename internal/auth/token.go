package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/userhub/apiserver/types"
)

// ErrInvalidToken is returned for any token that fails verification.
// Expired, tampered and malformed tokens are not distinguished to callers.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller identity carried by a verified token. It reflects
// the state at token-issue time, not the current store state.
type Identity struct {
	ID    string
	Email string
	Role  types.Role
}

// Claims is the JWT payload of an issued token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and verifies signed, time-bounded tokens asserting
// identity and role. It is stateless: verification never touches the user
// store, so role changes only take effect once the old token expires.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer signing with the given secret.
// Tokens expire ttl after issuance.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the issuer's clock. Intended for tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// Issue signs a token asserting the given identity.
func (t *TokenIssuer) Issue(identity Identity) (string, error) {
	now := t.now()
	claims := Claims{
		Email: identity.Email,
		Role:  string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature integrity and expiry and returns the embedded
// identity. A token is valid iff now < expiresAt; no clock skew is
// tolerated. Every failure collapses to ErrInvalidToken.
func (t *TokenIssuer) Verify(raw string) (Identity, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithLeeway(0), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	role := types.Role(claims.Role)
	if subject == "" || !role.Valid() {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		ID:    subject,
		Email: claims.Email,
		Role:  role,
	}, nil
}
