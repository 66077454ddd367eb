package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 8 * time.Hour

// Claims carried by the session token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	clock  func() time.Time
}

// NewTokenIssuer builds an HS256 issuer from the configured secret.
func NewTokenIssuer(secret string, opts ...func(*TokenIssuer)) *TokenIssuer {
	issuer := &TokenIssuer{secret: []byte(secret), clock: time.Now}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// WithIssuerClock overrides the time source.
func WithIssuerClock(clock func() time.Time) func(*TokenIssuer) {
	return func(i *TokenIssuer) { i.clock = clock }
}

// Issue signs a token for the given user, valid for eight hours.
func (i *TokenIssuer) Issue(username, role string) (string, error) {
	now := i.clock()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses a token and returns its claims.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
