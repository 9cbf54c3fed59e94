package credential

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload the platform signs into every access token.
// The subject carries the account email.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Email() string { return c.Subject }

// Expiry returns the zero time when the token carries no exp claim.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ParseClaims reads the claims without verifying the signature: the client never holds
// the signing key, the server re-validates every request.
func ParseClaims(token string, now time.Time) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoCredential
	}
	if token == "undefined" || token == "null" {
		return nil, ErrInvalid
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username claim", ErrInvalid)
	}
	if exp := claims.Expiry(); !exp.IsZero() && exp.Before(now) {
		return nil, fmt.Errorf("%w: at %s", ErrExpired, exp.Format(time.RFC3339))
	}

	return claims, nil
}

// Load fetches the stored token and validates it.
func Load(s Store, now time.Time) (string, *Claims, error) {
	token, err := s.Token()
	if err != nil {
		return "", nil, err
	}
	claims, err := ParseClaims(token, now)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}
