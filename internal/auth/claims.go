package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// minSecretLength is the shortest HMAC secret accepted for signing.
const minSecretLength = 32

// defaultTTL applies when GenerateAccessToken gets a non-positive TTL.
const defaultTTL = 12 * time.Hour

// CustomClaims extends JWT standard claims with the team member's role and,
// optionally, the one event the token is limited to.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role    Role   `json:"role"`
	EventID string `json:"eid,omitempty"`
}

// CanAccessEvent reports whether the token may act on eventID.
// Tokens without an event restriction cover every event.
func (c *CustomClaims) CanAccessEvent(eventID string) bool {
	return c.EventID == "" || c.EventID == eventID
}

// TokenParams describes an access token to mint.
type TokenParams struct {
	Subject string        // who: "planner@example.com", "dj-booth"
	Role    Role          // what they may do
	EventID string        // optional: limit to one wedding
	TTL     time.Duration // zero uses 12h
}

// GenerateAccessToken creates a signed HS256 JWT.
//
// Tokens are minted by the CLI (weddingcue token) and handed to the
// planner, coordinators and vendors; validation needs only the secret.
func GenerateAccessToken(p TokenParams, secret string) (string, error) {
	if len(secret) < minSecretLength {
		return "", fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, minSecretLength)
	}
	if p.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !IsValidRole(p.Role) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, p.Role)
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:    p.Role,
		EventID: p.EventID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses an access token, returning the custom
// claims. It checks the signature, expiry and required fields.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
