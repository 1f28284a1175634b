package auth

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Admins is the set of user ids allowed on the operator routes.
type Admins map[string]struct{}

// NewAdmins builds the set from ADMIN_IDS entries. Blank entries are skipped.
func NewAdmins(userIDs []string) Admins {
	admins := make(Admins, len(userIDs))
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}
	return admins
}

func (a Admins) IsAdmin(userID string) bool {
	_, ok := a[userID]
	return ok
}

// RequireAdmin lets through registered, non-guest admins. It must run after
// RequireAuth. Refusals are logged since they hit operator routes.
func RequireAdmin(admins Admins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if user.IsGuest || !admins.IsAdmin(user.ID) {
				log.WithFields(log.Fields{
					"player_id": user.ID,
					"path":      r.URL.Path,
				}).Warn("Admin route refused")
				http.Error(w, "Forbidden: Admin access required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
