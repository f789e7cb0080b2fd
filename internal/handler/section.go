package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
	"github.com/veomenu/veomenu/internal/websocket"
)

type SectionHandler struct {
	sections *store.MenuSectionStore
	menus    *store.MenuStore
	members  *store.InstanceMemberStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSectionHandler(
	ss *store.MenuSectionStore,
	ms *store.MenuStore,
	ims *store.InstanceMemberStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *SectionHandler {
	return &SectionHandler{
		sections: ss,
		menus:    ms,
		members:  ims,
		hub:      hub,
		logger:   logger,
	}
}

func (h *SectionHandler) List(w http.ResponseWriter, r *http.Request) {
	menuID := r.URL.Query().Get("menu")
	if menuID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu query parameter is required"})
		return
	}

	menu, _, ok := h.requireMenuAccess(w, r, menuID)
	if !ok {
		return
	}

	sections, err := h.sections.ListByMenu(menu.ID)
	if err != nil {
		h.logger.Error("list sections", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list sections"})
		return
	}
	if sections == nil {
		sections = []model.MenuSection{}
	}
	writeJSON(w, http.StatusOK, sections)
}

type createSectionRequest struct {
	Menu        string            `json:"menu"`
	Name        map[string]string `json:"name"`
	Description map[string]string `json:"description"`
	Icon        string            `json:"icon"`
	Position    int               `json:"position"`
}

func (h *SectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Menu == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Menu is required."})
		return
	}
	if msg := validateLangMap(req.Name); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	menu, role, ok := h.requireMenuAccess(w, r, req.Menu)
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to create sections for this menu"})
		return
	}

	section := &model.MenuSection{
		MenuID:      menu.ID,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Position:    req.Position,
		IsActive:    true,
	}
	created, err := h.sections.Create(section)
	if err != nil {
		h.logger.Error("create section", "menu_id", menu.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create section"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_section", "created", created.ID, map[string]any{"menu_id": menu.ID}))

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Section created successfully",
		"section": created,
	})
}

type updateSectionRequest struct {
	Name        *map[string]string `json:"name"`
	Description *map[string]string `json:"description"`
	Icon        *string            `json:"icon"`
	Position    *int               `json:"position"`
	IsActive    *bool              `json:"is_active"`
}

func (h *SectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	section, menu, role, ok := h.requireSection(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to update this section"})
		return
	}

	var req updateSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Name != nil {
		if msg := validateLangMap(*req.Name); msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
		section.Name = *req.Name
	}
	if req.Description != nil {
		section.Description = *req.Description
	}
	if req.Icon != nil {
		section.Icon = *req.Icon
	}
	if req.Position != nil {
		section.Position = *req.Position
	}
	if req.IsActive != nil {
		section.IsActive = *req.IsActive
	}

	updated, err := h.sections.Update(section)
	if err != nil {
		h.logger.Error("update section", "section_id", section.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update section"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_section", "updated", section.ID, map[string]any{"menu_id": menu.ID}))
	writeJSON(w, http.StatusOK, updated)
}

func (h *SectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	section, menu, role, ok := h.requireSection(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMenus) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to delete this section"})
		return
	}

	if err := h.sections.Delete(section.ID); err != nil {
		h.logger.Error("delete section", "section_id", section.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete section"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_section", "deleted", section.ID, map[string]any{"menu_id": menu.ID}))
	w.WriteHeader(http.StatusNoContent)
}

// requireMenuAccess loads a menu and checks the caller belongs to its
// instance, without requiring any particular role.
func (h *SectionHandler) requireMenuAccess(w http.ResponseWriter, r *http.Request, menuID string) (*model.Menu, string, bool) {
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

func (h *SectionHandler) requireSection(w http.ResponseWriter, r *http.Request, id string) (*model.MenuSection, *model.Menu, string, bool) {
	section, err := h.sections.GetByID(id)
	if err != nil {
		h.logger.Error("load section", "section_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load section"})
		return nil, nil, "", false
	}
	if section == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Section not found"})
		return nil, nil, "", false
	}

	menu, role, ok := h.requireMenuAccess(w, r, section.MenuID)
	if !ok {
		return nil, nil, "", false
	}
	return section, menu, role, true
}

// validateLangMap checks a translated-text field holds at least one
// language with a non-empty value.
func validateLangMap(m map[string]string) string {
	if len(m) == 0 {
		return "Name must be a non-empty dictionary with language keys"
	}
	for _, v := range m {
		if v != "" {
			return ""
		}
	}
	return "Name must contain at least one non-empty value"
}
