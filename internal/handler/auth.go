package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/email"
	"github.com/veomenu/veomenu/internal/middleware"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
)

const (
	// Registration keeps the user signed in longer than a routine login.
	registerSessionTTL = 30 * 24 * time.Hour
	loginSessionTTL    = 7 * 24 * time.Hour

	minPasswordLength = 6

	magicLinkExpiryMinutes = 15
)

type AuthHandler struct {
	users      *store.UserStore
	sessions   *store.SessionStore
	magicLinks *store.MagicLinkStore
	members    *store.InstanceMemberStore
	issuer     *auth.TokenIssuer
	email      *email.Client
	logger     *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	mls *store.MagicLinkStore,
	ms *store.InstanceMemberStore,
	issuer *auth.TokenIssuer,
	ec *email.Client,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      us,
		sessions:   ss,
		magicLinks: mls,
		members:    ms,
		issuer:     issuer,
		email:      ec,
		logger:     logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Language string `json:"language"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password are required."})
		return
	}
	if len(req.Password) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Password must be at least 6 characters."})
		return
	}

	existing, err := h.users.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to register"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "A user with this email already exists."})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to register"})
		return
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "en"
	}

	user, err := h.users.Create(emailAddr, strings.TrimSpace(req.Name), string(hash), strings.TrimSpace(req.Phone), language)
	if errors.Is(err, store.ErrEmailTaken) {
		// Lost a race with a concurrent registration for the same email.
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "A user with this email already exists."})
		return
	}
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to register"})
		return
	}

	access, refresh, err := h.issueSession(user, r, registerSessionTTL)
	if err != nil {
		h.logger.Error("register session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to register"})
		return
	}

	// A failed welcome mail never fails the registration.
	if err := h.email.SendWelcome(user.Email, user.Name); err != nil {
		h.logger.Error("send welcome email", "email", user.Email, "error", err)
	}

	profile, err := h.profileFor(user)
	if err != nil {
		h.logger.Error("register profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to register"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":       "Registration successful. You are now logged in.",
		"user":          profile,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password are required."})
		return
	}

	user, err := h.users.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to log in"})
		return
	}
	// Same error for unknown email and wrong password; no account probing.
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid email or password."})
		return
	}
	if !user.IsActive {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "This account has been disabled."})
		return
	}

	access, refresh, err := h.issueSession(user, r, loginSessionTTL)
	if err != nil {
		h.logger.Error("login session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to log in"})
		return
	}

	profile, err := h.profileFor(user)
	if err != nil {
		h.logger.Error("login profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to log in"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"access":  access,
		"refresh": refresh,
		"user":    profile,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	if _, err := h.sessions.Deactivate(ac.SessionID); err != nil {
		h.logger.Error("deactivate session", "session_id", ac.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to log out"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh exchanges a refresh token for a new access token. The session
// row created at login must still be active; a logged-out refresh token
// is dead even before its JWT expiry.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Refresh token is required."})
		return
	}

	claims, err := h.issuer.Verify(req.Refresh, auth.TokenRefresh)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token."})
		return
	}

	sess, err := h.sessions.GetByRefreshToken(req.Refresh)
	if err != nil {
		h.logger.Error("refresh lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to refresh token"})
		return
	}
	if sess == nil || sess.UserID != claims.UserID {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token."})
		return
	}

	access, err := h.issuer.IssueAccess(claims.UserID)
	if err != nil {
		h.logger.Error("issue access token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to refresh token"})
		return
	}
	if err := h.sessions.UpdateAccessToken(sess.ID, access); err != nil {
		h.logger.Error("rotate access token", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to refresh token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email is required."})
		return
	}

	user, err := h.users.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("magic link lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to send magic link"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No account found with this email address. Please register first."})
		return
	}

	ml, err := h.magicLinks.Create(user.ID, emailAddr, middleware.RealIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("create magic link", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to send magic link"})
		return
	}

	// An undelivered link is useless, so a mail failure is a hard error here.
	if err := h.email.SendMagicLink(emailAddr, ml.Token); err != nil {
		h.logger.Error("send magic link", "email", emailAddr, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to send magic link email. Please try again."})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Magic link sent to your email. Please check your inbox.",
		"expires_in_minutes": magicLinkExpiryMinutes,
	})
}

type magicLinkVerifyRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Token is required."})
		return
	}

	ml, err := h.magicLinks.GetByToken(token)
	if err != nil {
		h.logger.Error("verify magic link lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify magic link"})
		return
	}
	if ml == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or expired token."})
		return
	}
	if ml.IsUsed || time.Now().After(ml.ExpiresAt) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "This token has expired or has already been used."})
		return
	}

	user, err := h.users.GetByID(ml.UserID)
	if err != nil {
		h.logger.Error("verify magic link user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify magic link"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or expired token."})
		return
	}
	if !user.IsActive {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "This account has been disabled."})
		return
	}

	// Single use: burn the link before handing out tokens.
	if err := h.magicLinks.MarkUsed(ml.ID); err != nil {
		h.logger.Error("mark magic link used", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify magic link"})
		return
	}

	access, refresh, err := h.issueSession(user, r, loginSessionTTL)
	if err != nil {
		h.logger.Error("magic link session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify magic link"})
		return
	}

	profile, err := h.profileFor(user)
	if err != nil {
		h.logger.Error("magic link profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify magic link"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"access":  access,
		"refresh": refresh,
		"user":    profile,
	})
}

// issueSession signs a token pair and records the session row backing it.
func (h *AuthHandler) issueSession(user *model.User, r *http.Request, ttl time.Duration) (access, refresh string, err error) {
	access, refresh, err = h.issuer.IssuePair(user.ID)
	if err != nil {
		return "", "", err
	}

	ua := r.UserAgent()
	_, err = h.sessions.Create(user.ID, access, refresh, middleware.RealIP(r), ua, deviceTypeFromUA(ua), ttl)
	if err != nil {
		return "", "", err
	}

	_ = h.users.TouchLastLogin(user.ID)
	return access, refresh, nil
}

func (h *AuthHandler) profileFor(user *model.User) (*model.UserProfile, error) {
	return buildProfile(h.members, user)
}

// buildProfile expands a user row into the profile payload carried by auth
// and profile responses.
func buildProfile(members *store.InstanceMemberStore, user *model.User) (*model.UserProfile, error) {
	memberships, err := members.ListMembershipsByUser(user.ID)
	if err != nil {
		return nil, err
	}
	if memberships == nil {
		memberships = []model.UserInstance{}
	}
	return &model.UserProfile{
		User:         *user,
		HasInstances: len(memberships) > 0,
		Instances:    memberships,
	}, nil
}

// deviceTypeFromUA buckets a User-Agent into the session device classes.
func deviceTypeFromUA(ua string) string {
	switch {
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet"):
		return model.DeviceTablet
	case strings.Contains(ua, "Mobile"):
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
