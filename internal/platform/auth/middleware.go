package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// TokenVerifier verifies access tokens and produces identities.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// Middleware wires token verification into HTTP middleware.
type Middleware struct {
	verifier TokenVerifier
}

// NewMiddleware constructs authentication middleware around the verifier.
func NewMiddleware(verifier TokenVerifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth verifies the Authorization bearer token and, when roles are
// supplied, ensures the identity carries one of them.
func (m *Middleware) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if m == nil || m.verifier == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			identity, err := m.verifier.Verify(tokenStr)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					respondAuthError(w, http.StatusUnauthorized, "token_expired", "access token expired")
					return
				}
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "access token invalid")
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[normaliseRole(identity.Role)]; !ok {
					respondAuthError(w, http.StatusForbidden, "forbidden", "insufficient role")
					return
				}
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
