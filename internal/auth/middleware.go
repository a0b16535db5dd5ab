package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"courier/pkg/types"
)

// contextKey is a private type so no other package can collide with the
// identity value stored in request contexts.
type contextKey struct{}

var identityKey contextKey

// Middleware gates HTTP handlers behind credential verification and role
// checks. The two checks compose: RequireRole wraps Authenticate.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates the authorization middleware around a Verifier.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Authenticate verifies the Authorization bearer token and stores the
// resulting identity in the request context. Responds 401 when the
// credential is missing or fails verification.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole authenticates and then enforces an exact role match.
// Responds 403 when the caller is authenticated but has a different role.
func (m *Middleware) RequireRole(role string, next http.Handler) http.Handler {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || identity.Role != role {
			writeAuthError(w, http.StatusForbidden, ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// IdentityFrom extracts the authenticated identity placed in the context by
// Authenticate.
func IdentityFrom(ctx context.Context) (*types.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*types.Identity)
	return identity, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
