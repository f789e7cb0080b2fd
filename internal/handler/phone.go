package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/sms"
	"github.com/veomenu/veomenu/internal/store"
)

// phoneCooldown is measured from the latest code issuance, so re-requesting
// restarts the clock even when the previous code already expired.
const phoneCooldown = 10 * time.Minute

type PhoneHandler struct {
	users         *store.UserStore
	verifications *store.PhoneVerificationStore
	members       *store.InstanceMemberStore
	sms           *sms.Client
	logger        *slog.Logger
}

func NewPhoneHandler(
	us *store.UserStore,
	pvs *store.PhoneVerificationStore,
	ms *store.InstanceMemberStore,
	sc *sms.Client,
	logger *slog.Logger,
) *PhoneHandler {
	return &PhoneHandler{
		users:         us,
		verifications: pvs,
		members:       ms,
		sms:           sc,
		logger:        logger,
	}
}

type phoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (h *PhoneHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Phone number is required."})
		return
	}

	phone := normalizePhone(req.PhoneNumber)

	other, err := h.users.GetByPhone(phone)
	if err != nil {
		h.logger.Error("phone uniqueness lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to request verification"})
		return
	}
	if other != nil && other.ID != userID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Phone number is already registered with another account."})
		return
	}

	existing, err := h.verifications.GetByUserID(userID)
	if err != nil {
		h.logger.Error("phone verification lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to request verification"})
		return
	}
	if existing != nil {
		remaining := time.Until(existing.CreatedAt.Add(phoneCooldown))
		if remaining > 0 {
			secs := int(remaining.Seconds())
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":              fmt.Sprintf("Please wait %d minutes and %d seconds before requesting another code.", secs/60, secs%60),
				"cooldown_remaining": secs,
			})
			return
		}
	}

	v, err := h.verifications.Upsert(userID, phone)
	if err != nil {
		h.logger.Error("upsert phone verification", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to request verification"})
		return
	}

	resp := map[string]any{
		"message":         "Verification code sent to your phone number.",
		"verification_id": v.ID,
		"phone_number":    phone,
		"expires_at":      v.ExpiresAt,
	}

	// The code is stored either way; an SMS outage degrades the response
	// instead of blocking the flow.
	if err := h.sms.SendVerificationCode(phone, v.Code); err != nil {
		h.logger.Error("send verification sms", "phone", phone, "error", err)
		resp["sms_error"] = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

type phoneConfirmRequest struct {
	VerificationCode string `json:"verification_code"`
}

func (h *PhoneHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req phoneConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	code := strings.TrimSpace(req.VerificationCode)
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Verification code is required."})
		return
	}

	v, err := h.verifications.GetByUserID(userID)
	if err != nil {
		h.logger.Error("confirm verification lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to confirm verification"})
		return
	}
	if v == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No verification code found for this user."})
		return
	}
	if v.IsVerified {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "This verification code has already been used."})
		return
	}
	if time.Now().After(v.ExpiresAt) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Verification code has expired."})
		return
	}
	// Exhausted attempts keep failing even if the right code shows up late.
	if v.Attempts >= v.MaxAttempts {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid verification code."})
		return
	}
	if code != v.Code {
		if _, err := h.verifications.IncrementAttempts(v.ID); err != nil {
			h.logger.Error("increment verification attempts", "error", err)
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid verification code."})
		return
	}

	if err := h.verifications.MarkVerified(v.ID); err != nil {
		h.logger.Error("mark verification verified", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to confirm verification"})
		return
	}
	if err := h.users.SetPhoneVerified(userID, v.PhoneNumber); err != nil {
		h.logger.Error("set phone verified", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to confirm verification"})
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		h.logger.Error("confirm verification user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to confirm verification"})
		return
	}
	profile, err := buildProfile(h.members, user)
	if err != nil {
		h.logger.Error("confirm verification profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to confirm verification"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Phone number verified successfully.",
		"user":    profile,
	})
}

func (h *PhoneHandler) CooldownStatus(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	v, err := h.verifications.GetByUserID(userID)
	if err != nil {
		h.logger.Error("cooldown lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to check cooldown"})
		return
	}
	if v == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"cooldown_active":    false,
			"cooldown_remaining": 0,
			"can_send":           true,
			"last_sent_at":       nil,
			"has_active_code":    false,
		})
		return
	}

	// An expired, never-confirmed code is retired so it stops counting as
	// active in later status checks.
	if !v.IsVerified && time.Now().After(v.ExpiresAt) {
		if err := h.verifications.MarkVerified(v.ID); err != nil {
			h.logger.Error("retire expired verification", "error", err)
		}
		v.IsVerified = true
	}

	hasActiveCode := !v.IsVerified && time.Now().Before(v.ExpiresAt)
	remaining := time.Until(v.CreatedAt.Add(phoneCooldown))
	if remaining > 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"cooldown_active":    true,
			"cooldown_remaining": int(remaining.Seconds()),
			"can_send":           false,
			"last_sent_at":       v.CreatedAt,
			"has_active_code":    hasActiveCode,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cooldown_active":    false,
		"cooldown_remaining": 0,
		"can_send":           true,
		"last_sent_at":       v.CreatedAt,
		"has_active_code":    hasActiveCode,
	})
}

// normalizePhone strips everything but digits and '+', then guarantees a
// leading '+'.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		if (c >= '0' && c <= '9') || c == '+' {
			b.WriteRune(c)
		}
	}
	cleaned := b.String()
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}
