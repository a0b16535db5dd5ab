package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"courier/pkg/types"
)

// Verifier signs and verifies the opaque bearer tokens used by both the HTTP
// middleware and the WebSocket handshake. Stateless; safe for concurrent use.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

// tokenClaims is the payload shape: a user id and role on top of the
// registered claims.
type tokenClaims struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// NewVerifier creates a Verifier using an HMAC secret. Tokens signed here
// expire after ttl.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token for the given user.
func (v *Verifier) Sign(user *types.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify validates a token string and extracts the identity it carries.
// Every failure mode maps to ErrInvalidToken; malformed input is an expected
// condition here, never a panic.
func (v *Verifier) Verify(token string) (*types.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		// Reject algorithm confusion: only HMAC tokens are ever issued.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	// A token without an id claim identifies nobody.
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &types.Identity{ID: claims.ID, Role: claims.Role}, nil
}
