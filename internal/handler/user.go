package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
)

type UserHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	members  *store.InstanceMemberStore
	logger   *slog.Logger
}

func NewUserHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	ms *store.InstanceMemberStore,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:    us,
		sessions: ss,
		members:  ms,
		logger:   logger,
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	profile, err := buildProfile(h.members, user)
	if err != nil {
		h.logger.Error("me profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load profile"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Language *string `json:"language"`
}

// UpdateProfile applies the provided fields and leaves the rest alone, so
// PATCH and a sparse PUT behave the same way.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	name, phone, language := user.Name, user.Phone, user.Language
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
	}
	if req.Language != nil {
		language = strings.TrimSpace(*req.Language)
	}

	updated, err := h.users.UpdateProfile(user.ID, name, phone, language)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update profile"})
		return
	}

	profile, err := buildProfile(h.members, updated)
	if err != nil {
		h.logger.Error("update profile payload", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update profile"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    profile,
	})
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	sessions, err := h.sessions.ListActiveByUser(userID)
	if err != nil {
		h.logger.Error("list sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type revokeSessionRequest struct {
	SessionID int64 `json:"session_id"`
}

func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req revokeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.SessionID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	revoked, err := h.sessions.DeactivateForUser(userID, req.SessionID)
	if err != nil {
		h.logger.Error("revoke session", "session_id", req.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to revoke session"})
		return
	}
	if !revoked {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found or already revoked"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session revoked successfully"})
}

// currentUser loads the authenticated user's row, answering the request
// itself when the account has vanished mid-session.
func (h *UserHandler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load current user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load profile"})
		return nil, false
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return nil, false
	}
	return user, true
}
