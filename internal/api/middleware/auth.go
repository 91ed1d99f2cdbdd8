package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/super3/nilo.chat-sub000/internal/store"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the resolved caller of an authenticated request: either
// the admin credential from configuration or a stored agent key.
type Identity struct {
	KeyID     int64
	AgentName string
	IsAdmin   bool
}

// AuthMiddleware resolves the X-API-Key header against the key store.
type AuthMiddleware struct {
	store    store.DataStore
	adminKey string
}

// NewAuthMiddleware creates a new auth middleware. adminKey may be
// empty, in which case no request resolves to the admin identity.
func NewAuthMiddleware(data store.DataStore, adminKey string) *AuthMiddleware {
	return &AuthMiddleware{store: data, adminKey: adminKey}
}

// RequireAuth rejects requests without a valid API key. Each call
// authenticates independently; nothing is cached between requests.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-API-Key")
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		if m.adminKey != "" && subtle.ConstantTimeCompare([]byte(raw), []byte(m.adminKey)) == 1 {
			ctx := context.WithValue(r.Context(), identityContextKey, &Identity{AgentName: "admin", IsAdmin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Only hashes are stored, so resolution is comparison against
		// every stored hash rather than a lookup by secret.
		keys, err := m.store.ListKeys(r.Context())
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to verify API key")
			return
		}
		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) == nil {
				ctx := context.WithValue(r.Context(), identityContextKey, &Identity{
					KeyID:     key.ID,
					AgentName: key.AgentName,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		jsonError(w, http.StatusUnauthorized, "invalid API key")
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetIdentityFromContext retrieves the authenticated identity from the
// request context.
func GetIdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}
