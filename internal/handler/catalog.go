package handler

import (
	"log/slog"
	"net/http"

	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
)

// CatalogHandler serves the read-only tag and allergen vocabularies that
// menu items reference.
type CatalogHandler struct {
	catalog *store.CatalogStore
	logger  *slog.Logger
}

func NewCatalogHandler(cs *store.CatalogStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cs, logger: logger}
}

func (h *CatalogHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalog.ListTags()
	if err != nil {
		h.logger.Error("list tags", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list tags"})
		return
	}
	if tags == nil {
		tags = []model.MenuTag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *CatalogHandler) Allergens(w http.ResponseWriter, r *http.Request) {
	allergens, err := h.catalog.ListAllergens()
	if err != nil {
		h.logger.Error("list allergens", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list allergens"})
		return
	}
	if allergens == nil {
		allergens = []model.MenuAllergen{}
	}
	writeJSON(w, http.StatusOK, allergens)
}
