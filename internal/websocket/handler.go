package websocket

import (
	"encoding/json"
	"log"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/store"
)

// HandleWebSocket returns an HTTP handler that authenticates the connection,
// upgrades it, and runs it as a Hub client for one instance. Browsers cannot
// set an Authorization header on WebSocket dials, so the access token and
// instance id arrive as query parameters.
func HandleWebSocket(hub *Hub, issuer *auth.TokenIssuer, sessions *store.SessionStore, members *store.InstanceMemberStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		instanceID := r.URL.Query().Get("instance")
		if token == "" || instanceID == "" {
			deny(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := issuer.Verify(token, auth.TokenAccess)
		if err != nil {
			deny(w, http.StatusUnauthorized, "Invalid or expired token.")
			return
		}
		sess, err := sessions.GetByToken(token)
		if err != nil || sess == nil || sess.UserID != claims.UserID {
			deny(w, http.StatusUnauthorized, "Invalid or expired token.")
			return
		}

		role, err := members.GetRole(instanceID, sess.UserID)
		if err != nil {
			deny(w, http.StatusInternalServerError, "Failed to verify membership")
			return
		}
		if role == "" {
			deny(w, http.StatusForbidden, "You do not have access to this instance")
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			// The dashboard origin varies per deployment; the token check
			// above is the real gate.
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("websocket: accept: %v", err)
			return
		}

		client := NewClient(hub, conn, instanceID)
		client.Run(r.Context())
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
