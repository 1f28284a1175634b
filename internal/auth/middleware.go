package auth

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/store"
)

// UserStore is the part of the store auth needs.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*store.User, error)
	CreateUser(ctx context.Context, user *store.User) error
	UpsertUser(ctx context.Context, user *store.User) error
}

// RequireAuth middleware resolves the token to a stored user or answers 401.
// The token comes from the Authorization header or, for websocket upgrades,
// the token query parameter.
func RequireAuth(tokens *Tokens, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.Verify(raw)
			if err != nil {
				log.WithError(err).Debug("Rejected token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				log.WithError(err).Error("Failed to load user for token")
				http.Error(w, "Failed to get user", http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Store user in context
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext retrieves the user from the request context.
func UserFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey).(*store.User)
	return user
}

// WithUser returns ctx carrying user, as RequireAuth would.
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
