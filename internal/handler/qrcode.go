package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/metrics"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
)

type QRCodeHandler struct {
	qrcodes     *store.QRCodeStore
	menus       *store.MenuStore
	members     *store.InstanceMemberStore
	metrics     *metrics.Metrics
	frontendURL string
	logger      *slog.Logger
}

func NewQRCodeHandler(
	qs *store.QRCodeStore,
	ms *store.MenuStore,
	ims *store.InstanceMemberStore,
	m *metrics.Metrics,
	frontendURL string,
	logger *slog.Logger,
) *QRCodeHandler {
	return &QRCodeHandler{
		qrcodes:     qs,
		menus:       ms,
		members:     ims,
		metrics:     m,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (h *QRCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	menuID := r.URL.Query().Get("menu")
	if menuID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu query parameter is required"})
		return
	}

	menu, _, ok := h.requireMenuAccess(w, r, menuID)
	if !ok {
		return
	}

	codes, err := h.qrcodes.ListByMenu(menu.ID)
	if err != nil {
		h.logger.Error("list qr codes", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list QR codes"})
		return
	}
	if codes == nil {
		codes = []model.QRCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

type createQRCodeRequest struct {
	Menu string `json:"menu"`
	Name string `json:"name"`
}

func (h *QRCodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQRCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Menu == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Menu is required."})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name is required."})
		return
	}

	menu, role, ok := h.requireMenuAccess(w, r, req.Menu)
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageQRCodes) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to create QR codes for this menu"})
		return
	}

	url := h.frontendURL + "/menu/" + menu.ID
	created, err := h.qrcodes.Create(menu.ID, strings.TrimSpace(req.Name), url)
	if err != nil {
		h.logger.Error("create qr code", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create QR code"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "QR code created successfully",
		"qr_code": created,
	})
}

// Scan resolves a printed code to its menu URL and counts the hit. No
// auth; this is what the customer's phone calls.
func (h *QRCodeHandler) Scan(w http.ResponseWriter, r *http.Request) {
	qr, err := h.qrcodes.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("load qr code", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load QR code"})
		return
	}
	if qr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "QR code not found"})
		return
	}
	if !qr.IsActive {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "This QR code is no longer active"})
		return
	}

	if err := h.qrcodes.RecordScan(qr.ID); err != nil {
		h.logger.Error("record qr scan", "qr_code_id", qr.ID, "error", err)
	}
	h.metrics.RecordQRScan()

	writeJSON(w, http.StatusOK, map[string]any{
		"menu_url": qr.URL,
		"menu_id":  qr.MenuID,
	})
}

func (h *QRCodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	qr, err := h.qrcodes.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("load qr code", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load QR code"})
		return
	}
	if qr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "QR code not found"})
		return
	}

	_, role, ok := h.requireMenuAccess(w, r, qr.MenuID)
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageQRCodes) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to delete this QR code"})
		return
	}

	if err := h.qrcodes.Delete(qr.ID); err != nil {
		h.logger.Error("delete qr code", "qr_code_id", qr.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete QR code"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QRCodeHandler) requireMenuAccess(w http.ResponseWriter, r *http.Request, menuID string) (*model.Menu, string, bool) {
	menu, err := h.menus.GetByID(menuID)
	if err != nil {
		h.logger.Error("load menu", "menu_id", menuID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load menu"})
		return nil, "", false
	}
	if menu == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Menu not found"})
		return nil, "", false
	}

	role, err := h.members.GetRole(menu.InstanceID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load menu membership", "menu_id", menuID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load menu"})
		return nil, "", false
	}
	if role == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have access to this instance"})
		return nil, "", false
	}
	return menu, role, true
}
