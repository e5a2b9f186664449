package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTokenTTL = 24 * time.Hour

var (
	// ErrTokenExpired signals that the presented access token has expired.
	ErrTokenExpired = errors.New("auth: access token expired")
	// ErrTokenInvalid signals that the presented access token failed verification.
	ErrTokenInvalid = errors.New("auth: access token invalid")
)

// Claims is the JWT payload issued for authenticated users.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HMAC-signed access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customises TokenIssuer behaviour.
type IssuerOption func(*TokenIssuer)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithClock injects a deterministic clock, primarily for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer signing with the provided secret.
func NewTokenIssuer(secret, issuer string, opts ...IssuerOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Issue mints a signed access token for the given identity.
func (t *TokenIssuer) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", errors.New("auth: user id is required")
	}
	role := normaliseRole(identity.Role)
	if role == "" {
		return "", errors.New("auth: role is required")
	}

	now := t.now()
	claims := Claims{
		Email: identity.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the token, returning the embedded identity.
func (t *TokenIssuer) Verify(tokenStr string) (*Identity, error) {
	claims := &Claims{}
	// Time claims are checked below against the injected clock rather than
	// the parser's package-level time source.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := t.now()
	if !claims.VerifyExpiresAt(now, true) {
		return nil, ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}

	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	role := normaliseRole(claims.Role)
	if role == "" {
		return nil, fmt.Errorf("%w: missing role claim", ErrTokenInvalid)
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   role,
	}, nil
}
