package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/store"
)

// RequireAuth validates the Bearer access token and populates AuthContext.
// The JWT alone is not enough: the matching session row must still be
// active and unexpired, so logout and revocation take effect immediately.
func RequireAuth(issuer *auth.TokenIssuer, sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := issuer.Verify(token, auth.TokenAccess)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}

			sess, err := sessions.GetByToken(token)
			if err != nil || sess == nil || sess.UserID != claims.UserID {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil || !user.IsActive {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}

			// Best effort; an activity timestamp is not worth failing the request.
			_ = sessions.TouchActivity(sess.ID)

			ac := auth.AuthContext{
				UserID:    user.ID,
				SessionID: sess.ID,
				IsStaff:   user.IsStaff,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
