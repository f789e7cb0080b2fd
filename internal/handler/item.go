package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
	"github.com/veomenu/veomenu/internal/websocket"
)

type ItemHandler struct {
	items    *store.MenuItemStore
	sections *store.MenuSectionStore
	menus    *store.MenuStore
	members  *store.InstanceMemberStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewItemHandler(
	its *store.MenuItemStore,
	ss *store.MenuSectionStore,
	ms *store.MenuStore,
	ims *store.InstanceMemberStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *ItemHandler {
	return &ItemHandler{
		items:    its,
		sections: ss,
		menus:    ms,
		members:  ims,
		hub:      hub,
		logger:   logger,
	}
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	sectionID := r.URL.Query().Get("section")
	if sectionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "section query parameter is required"})
		return
	}

	_, _, _, ok := h.requireSectionAccess(w, r, sectionID)
	if !ok {
		return
	}

	items, err := h.items.ListBySection(sectionID)
	if err != nil {
		h.logger.Error("list items", "section_id", sectionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list items"})
		return
	}
	if items == nil {
		items = []model.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type createItemRequest struct {
	Section     string            `json:"section"`
	Name        map[string]string `json:"name"`
	Description map[string]string `json:"description"`
	Price       float64           `json:"price"`
	Currency    string            `json:"currency"`
	SpicyLevel  int               `json:"spicy_level"`
	Allergens   []string          `json:"allergens"`
	Tags        []string          `json:"tags"`
	Calories    *int              `json:"calories"`
	Position    int               `json:"position"`
	IsFeatured  bool              `json:"is_featured"`
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Section == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Section is required."})
		return
	}
	if msg := validateItemName(req.Name); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if req.Price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Price cannot be negative."})
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}

	section, menu, role, ok := h.requireSectionAccess(w, r, req.Section)
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageItems) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to create items for this menu"})
		return
	}

	item := &model.MenuItem{
		SectionID:   section.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		SpicyLevel:  req.SpicyLevel,
		Allergens:   req.Allergens,
		Tags:        req.Tags,
		Calories:    req.Calories,
		Position:    req.Position,
		IsActive:    true,
		IsAvailable: true,
		IsFeatured:  req.IsFeatured,
	}
	created, err := h.items.Create(item)
	if err != nil {
		h.logger.Error("create item", "section_id", section.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create item"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_item", "created", created.ID, map[string]any{"section_id": section.ID}))

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Menu item created successfully",
		"item":    created,
	})
}

type updateItemRequest struct {
	Name        *map[string]string `json:"name"`
	Description *map[string]string `json:"description"`
	Price       *float64           `json:"price"`
	Currency    *string            `json:"currency"`
	SpicyLevel  *int               `json:"spicy_level"`
	Allergens   *[]string          `json:"allergens"`
	Tags        *[]string          `json:"tags"`
	Calories    *int               `json:"calories"`
	Position    *int               `json:"position"`
	IsActive    *bool              `json:"is_active"`
	IsAvailable *bool              `json:"is_available"`
	IsFeatured  *bool              `json:"is_featured"`
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, menu, role, ok := h.requireItem(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageItems) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to update this item"})
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Name != nil {
		if msg := validateItemName(*req.Name); msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
		item.Name = *req.Name
	}
	if req.Price != nil {
		if *req.Price < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Price cannot be negative."})
			return
		}
		item.Price = *req.Price
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Currency != nil {
		item.Currency = *req.Currency
	}
	if req.SpicyLevel != nil {
		item.SpicyLevel = *req.SpicyLevel
	}
	if req.Allergens != nil {
		item.Allergens = *req.Allergens
	}
	if req.Tags != nil {
		item.Tags = *req.Tags
	}
	if req.Calories != nil {
		item.Calories = req.Calories
	}
	if req.Position != nil {
		item.Position = *req.Position
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if req.IsAvailable != nil {
		item.IsAvailable = *req.IsAvailable
	}
	if req.IsFeatured != nil {
		item.IsFeatured = *req.IsFeatured
	}

	updated, err := h.items.Update(item)
	if err != nil {
		h.logger.Error("update item", "item_id", item.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update item"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_item", "updated", item.ID, map[string]any{"section_id": item.SectionID}))
	writeJSON(w, http.StatusOK, updated)
}

// ToggleAvailability flips sold-out state without touching the rest of
// the item, so staff can mark a dish from the floor.
func (h *ItemHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	item, menu, role, ok := h.requireItem(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageItems) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to update this item"})
		return
	}

	updated, err := h.items.ToggleAvailability(item.ID)
	if err != nil {
		h.logger.Error("toggle item availability", "item_id", item.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update item"})
		return
	}

	state := "unavailable"
	if updated.IsAvailable {
		state = "available"
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_item", "availability_changed", item.ID, map[string]any{"is_available": updated.IsAvailable}))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Item is now %s", state),
		"item":    updated,
	})
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, menu, role, ok := h.requireItem(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionDeleteItems) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to delete this item"})
		return
	}

	if err := h.items.Delete(item.ID); err != nil {
		h.logger.Error("delete item", "item_id", item.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete item"})
		return
	}

	h.hub.Broadcast(menu.InstanceID, websocket.NewMessage("menu_item", "deleted", item.ID, map[string]any{"section_id": item.SectionID}))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) requireSectionAccess(w http.ResponseWriter, r *http.Request, sectionID string) (*model.MenuSection, *model.Menu, string, bool) {
	section, err := h.sections.GetByID(sectionID)
	if err != nil {
		h.logger.Error("load section", "section_id", sectionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load section"})
		return nil, nil, "", false
	}
	if section == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Section not found"})
		return nil, nil, "", false
	}

	menu, err := h.menus.GetByID(section.MenuID)
	if err != nil || menu == nil {
		if err != nil {
			h.logger.Error("load menu", "menu_id", section.MenuID, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load section"})
		return nil, nil, "", false
	}

	role, err := h.members.GetRole(menu.InstanceID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load section membership", "section_id", sectionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load section"})
		return nil, nil, "", false
	}
	if role == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have access to this instance"})
		return nil, nil, "", false
	}
	return section, menu, role, true
}

func (h *ItemHandler) requireItem(w http.ResponseWriter, r *http.Request, id string) (*model.MenuItem, *model.Menu, string, bool) {
	item, err := h.items.GetByID(id)
	if err != nil {
		h.logger.Error("load item", "item_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load item"})
		return nil, nil, "", false
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
		return nil, nil, "", false
	}

	_, menu, role, ok := h.requireSectionAccess(w, r, item.SectionID)
	if !ok {
		return nil, nil, "", false
	}
	return item, menu, role, true
}

func validateItemName(m map[string]string) string {
	if len(m) == 0 {
		return "Name cannot be empty."
	}
	for _, v := range m {
		if v != "" {
			return ""
		}
	}
	return "Name cannot be empty."
}
