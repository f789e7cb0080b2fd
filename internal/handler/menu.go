package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/metrics"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
	"github.com/veomenu/veomenu/internal/websocket"
)

type MenuHandler struct {
	menus     *store.MenuStore
	instances *store.InstanceStore
	members   *store.InstanceMemberStore
	views     *store.MenuViewStore
	hub       *websocket.Hub
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewMenuHandler(
	ms *store.MenuStore,
	is *store.InstanceStore,
	ims *store.InstanceMemberStore,
	mvs *store.MenuViewStore,
	hub *websocket.Hub,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MenuHandler {
	return &MenuHandler{
		menus:     ms,
		instances: is,
		members:   ims,
		views:     mvs,
		hub:       hub,
		metrics:   m,
		logger:    logger,
	}
}

// List returns the menus of one instance when ?instance= is given, or of
// every instance the caller belongs to.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if instanceID := r.URL.Query().Get("instance"); instanceID != "" {
		role, err := h.members.GetRole(instanceID, userID)
		if err != nil {
			h.logger.Error("list menus membership", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list menus"})
			return
		}
		if role == "" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have access to this instance"})
			return
		}
		menus, err := h.menus.ListByInstance(instanceID)
		if err != nil {
			h.logger.Error("list menus", "instance_id", instanceID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list menus"})
			return
		}
		if menus == nil {
			menus = []model.Menu{}
		}
		writeJSON(w, http.StatusOK, menus)
		return
	}

	instances, err := h.instances.ListByUser(userID)
	if err != nil {
		h.logger.Error("list menu instances", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list menus"})
		return
	}

	menus := []model.Menu{}
	for _, inst := range instances {
		batch, err := h.menus.ListByInstance(inst.ID)
		if err != nil {
			h.logger.Error("list menus", "instance_id", inst.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list menus"})
			return
		}
		menus = append(menus, batch...)
	}
	writeJSON(w, http.StatusOK, menus)
}

type createMenuRequest struct {
	Instance           string   `json:"instance"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Icon               string   `json:"icon"`
	DefaultLanguage    string   `json:"default_language"`
	AvailableLanguages []string `json:"available_languages"`
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Instance == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Instance is required."})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name is required."})
		return
	}
	if req.DefaultLanguage == "" {
		req.DefaultLanguage = "en"
	}
	if msg := validateMenuLanguages(req.DefaultLanguage, req.AvailableLanguages); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	inst, err := h.instances.GetByID(req.Instance)
	if err != nil {
		h.logger.Error("create menu instance", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create menu"})
		return
	}
	if inst == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Instance not found"})
		return
	}

	role, err := h.members.GetRole(inst.ID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create menu membership", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create menu"})
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to create menus for this instance"})
		return
	}

	menu := &model.Menu{
		InstanceID:         inst.ID,
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		Icon:               req.Icon,
		DefaultLanguage:    req.DefaultLanguage,
		AvailableLanguages: req.AvailableLanguages,
		IsActive:           true,
	}
	created, err := h.menus.Create(menu)
	if err != nil {
		h.logger.Error("create menu", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create menu"})
		return
	}

	// First menu becomes the instance's QR default; later creates are a no-op.
	if err := h.instances.SetQRSelectedMenu(inst.ID, created.ID); err != nil {
		h.logger.Error("set qr selected menu", "instance_id", inst.ID, "error", err)
	}

	h.hub.Broadcast(inst.ID, websocket.NewMessage("menu", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Menu created successfully",
		"menu":    created,
	})
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	menu, _, ok := h.requireMenu(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	full, err := h.menus.GetFull(menu.ID, false)
	if err != nil {
		h.logger.Error("load full menu", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load menu"})
		return
	}
	writeJSON(w, http.StatusOK, full)
}

type updateMenuRequest struct {
	Name               *string   `json:"name"`
	Description        *string   `json:"description"`
	Icon               *string   `json:"icon"`
	DefaultLanguage    *string   `json:"default_language"`
	AvailableLanguages *[]string `json:"available_languages"`
	IsActive           *bool     `json:"is_active"`
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	menu, role, ok := h.requireMenu(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to update this menu"})
		return
	}

	var req updateMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Name != nil {
		menu.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		menu.Description = *req.Description
	}
	if req.Icon != nil {
		menu.Icon = *req.Icon
	}
	if req.DefaultLanguage != nil {
		menu.DefaultLanguage = *req.DefaultLanguage
	}
	if req.AvailableLanguages != nil {
		menu.AvailableLanguages = *req.AvailableLanguages
	}
	if req.IsActive != nil {
		menu.IsActive = *req.IsActive
	}

	if menu.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name is required."})
		return
	}
	if msg := validateMenuLanguages(menu.DefaultLanguage, menu.AvailableLanguages); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	updated, err := h.menus.Update(menu)
	if err != nil {
		h.logger.Error("update menu", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update menu"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu", "updated", menu.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	menu, role, ok := h.requireMenu(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to delete this menu"})
		return
	}

	if err := h.menus.Delete(menu.ID); err != nil {
		h.logger.Error("delete menu", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete menu"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu", "deleted", menu.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Public serves a customer-facing menu. No auth; inactive menus stay hidden.
func (h *MenuHandler) Public(w http.ResponseWriter, r *http.Request) {
	menu, err := h.menus.GetFull(r.PathValue("id"), true)
	if err != nil {
		h.logger.Error("load public menu", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load menu"})
		return
	}
	if menu == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Menu not found"})
		return
	}
	if !menu.IsActive {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "This menu is not currently available"})
		return
	}

	language := r.URL.Query().Get("language")
	if language == "" {
		language = menu.DefaultLanguage
	}

	if err := h.views.Record(menu.ID, language, deviceTypeFromUA(r.UserAgent())); err != nil {
		h.logger.Error("record menu view", "menu_id", menu.ID, "error", err)
	} else {
		menu.ViewCount++
	}
	h.metrics.RecordMenuView(language)

	writeJSON(w, http.StatusOK, menu)
}

func (h *MenuHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	menu, role, ok := h.requireMenu(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionViewAnalytics) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to view analytics"})
		return
	}

	days := 7
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a positive number"})
			return
		}
		days = n
	}

	analytics, err := h.views.Analytics(menu, days)
	if err != nil {
		h.logger.Error("menu analytics", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load analytics"})
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *MenuHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	menu, role, ok := h.requireMenu(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to duplicate this menu"})
		return
	}

	copied, err := h.menus.Duplicate(menu.ID)
	if err != nil {
		h.logger.Error("duplicate menu", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to duplicate menu"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu", "created", copied.ID, nil))

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Menu duplicated successfully",
		"menu":    copied,
	})
}

// requireMenu loads the menu and the caller's role on its instance.
func (h *MenuHandler) requireMenu(w http.ResponseWriter, r *http.Request, id string) (*model.Menu, string, bool) {
	menu, err := h.menus.GetByID(id)
	if err != nil {
		h.logger.Error("load menu", "menu_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load menu"})
		return nil, "", false
	}
	if menu == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Menu not found"})
		return nil, "", false
	}

	role, err := h.members.GetRole(menu.InstanceID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load menu membership", "menu_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load menu"})
		return nil, "", false
	}
	if role == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have access to this instance"})
		return nil, "", false
	}
	return menu, role, true
}

// validateMenuLanguages enforces the language invariants shared by create
// and update.
func validateMenuLanguages(defaultLanguage string, available []string) string {
	if len(available) == 0 {
		return "At least one language must be specified."
	}
	for _, lang := range available {
		if lang == defaultLanguage {
			return ""
		}
	}
	return fmt.Sprintf("Default language '%s' must be in available languages.", defaultLanguage)
}
