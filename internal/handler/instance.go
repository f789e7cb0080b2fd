package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/store"
)

type InstanceHandler struct {
	instances *store.InstanceStore
	members   *store.InstanceMemberStore
	users     *store.UserStore
	hours     *store.BusinessHourStore
	logger    *slog.Logger
}

func NewInstanceHandler(
	is *store.InstanceStore,
	ms *store.InstanceMemberStore,
	us *store.UserStore,
	bhs *store.BusinessHourStore,
	logger *slog.Logger,
) *InstanceHandler {
	return &InstanceHandler{
		instances: is,
		members:   ms,
		users:     us,
		hours:     bhs,
		logger:    logger,
	}
}

func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	instances, err := h.instances.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list instances", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list instances"})
		return
	}
	if instances == nil {
		instances = []model.Instance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

type createInstanceRequest struct {
	Name        string `json:"name"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Whatsapp    string `json:"whatsapp"`
	Description string `json:"description"`
	CuisineType string `json:"cuisine_type"`
}

func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name is required."})
		return
	}

	inst, err := h.instances.Create(auth.UserID(r.Context()), &model.Instance{
		Name:        strings.TrimSpace(req.Name),
		Country:     req.Country,
		City:        req.City,
		Address:     req.Address,
		Phone:       req.Phone,
		Email:       req.Email,
		Website:     req.Website,
		Whatsapp:    req.Whatsapp,
		Description: req.Description,
		CuisineType: req.CuisineType,
	})
	if err != nil {
		h.logger.Error("create instance", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create instance"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Instance created successfully",
		"instance": inst,
	})
}

func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, _, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type updateInstanceRequest struct {
	Name                   *string `json:"name"`
	Country                *string `json:"country"`
	City                   *string `json:"city"`
	Address                *string `json:"address"`
	Phone                  *string `json:"phone"`
	Email                  *string `json:"email"`
	Website                *string `json:"website"`
	Whatsapp               *string `json:"whatsapp"`
	Description            *string `json:"description"`
	CuisineType            *string `json:"cuisine_type"`
	WifiName               *string `json:"wifi_name"`
	WifiPassword           *string `json:"wifi_password"`
	ShowWifiOnMenu         *bool   `json:"show_wifi_on_menu"`
	ShowHoursOnMenu        *bool   `json:"show_hours_on_menu"`
	GoogleBusinessURL      *string `json:"google_business_url"`
	ShowGoogleRating       *bool   `json:"show_google_rating"`
	QRForegroundColor      *string `json:"qr_foreground_color"`
	QRSize                 *int    `json:"qr_size"`
	QRMargin               *int    `json:"qr_margin"`
	QRErrorCorrectionLevel *string `json:"qr_error_correction_level"`
	QRSelectedMenuID       *string `json:"qr_selected_menu_id"`
}

func (h *InstanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	inst, role, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionUpdateInstance) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to update this instance"})
		return
	}

	var req updateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	applyInstanceUpdate(inst, &req)
	if inst.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Name is required."})
		return
	}

	updated, err := h.instances.Update(inst)
	if err != nil {
		h.logger.Error("update instance", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update instance"})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	inst, role, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionDeleteInstance) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Only the owner can delete this instance"})
		return
	}

	if err := h.instances.Delete(inst.ID); err != nil {
		h.logger.Error("delete instance", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete instance"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InstanceHandler) Members(w http.ResponseWriter, r *http.Request) {
	inst, role, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionViewMembers) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to view members"})
		return
	}

	members, err := h.members.List(inst.ID)
	if err != nil {
		h.logger.Error("list members", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list members"})
		return
	}
	if members == nil {
		members = []model.InstanceMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *InstanceHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	inst, role, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMembers) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Only owners and admins can invite members"})
		return
	}

	var req inviteMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email is required."})
		return
	}
	// The owner role is assigned at creation and never by invite.
	if req.Role != model.RoleAdmin && req.Role != model.RoleManager && req.Role != model.RoleStaff {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Role must be admin, manager, or staff."})
		return
	}

	user, err := h.users.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to invite member"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No user found with this email. They must register first."})
		return
	}

	existing, err := h.members.Get(inst.ID, user.ID)
	if err != nil {
		h.logger.Error("invite membership lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to invite member"})
		return
	}

	var member *model.InstanceMember
	switch {
	case existing == nil:
		member, err = h.members.Add(inst.ID, user.ID, req.Role)
	case existing.IsActive:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "This user is already a member of this instance."})
		return
	default:
		// A previously removed member rejoins under the new role.
		member, err = h.members.Reactivate(existing.ID, req.Role)
	}
	if err != nil {
		h.logger.Error("invite member", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to invite member"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("User %s has been added as %s", emailAddr, req.Role),
		"member":  member,
	})
}

type removeMemberRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *InstanceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	inst, role, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionManageMembers) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Only owners and admins can remove members"})
		return
	}

	var req removeMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.UserID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	member, err := h.members.Get(inst.ID, req.UserID)
	if err != nil {
		h.logger.Error("remove membership lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to remove member"})
		return
	}
	if member == nil || !member.IsActive {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Member not found"})
		return
	}
	if member.Role == model.RoleOwner {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Cannot remove the owner"})
		return
	}

	if _, err := h.members.Remove(inst.ID, req.UserID); err != nil {
		h.logger.Error("remove member", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to remove member"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Member removed successfully"})
}

func (h *InstanceHandler) GetBusinessHours(w http.ResponseWriter, r *http.Request) {
	inst, _, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	hours, err := h.hours.ListByInstance(inst.ID)
	if err != nil {
		h.logger.Error("list business hours", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list business hours"})
		return
	}
	if hours == nil {
		hours = []model.BusinessHour{}
	}
	writeJSON(w, http.StatusOK, hours)
}

type businessHourEntry struct {
	DayOfWeek   int    `json:"day_of_week"`
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
	IsClosed    bool   `json:"is_closed"`
}

func (h *InstanceHandler) UpdateBusinessHours(w http.ResponseWriter, r *http.Request) {
	inst, role, ok := h.requireInstance(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if !auth.Allowed(role, auth.ActionUpdateBusinessHours) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to update business hours"})
		return
	}

	var entries []businessHourEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	hours := make([]model.BusinessHour, 0, len(entries))
	for _, e := range entries {
		if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day_of_week must be between 0 and 6"})
			return
		}
		hours = append(hours, model.BusinessHour{
			InstanceID:  inst.ID,
			DayOfWeek:   e.DayOfWeek,
			OpeningTime: e.OpeningTime,
			ClosingTime: e.ClosingTime,
			IsClosed:    e.IsClosed,
		})
	}

	saved, err := h.hours.ReplaceAll(inst.ID, hours)
	if err != nil {
		h.logger.Error("replace business hours", "instance_id", inst.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update business hours"})
		return
	}
	if saved == nil {
		saved = []model.BusinessHour{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Business hours updated successfully",
		"hours":   saved,
	})
}

// requireInstance loads the instance and the caller's active role,
// answering the request itself when either is missing.
func (h *InstanceHandler) requireInstance(w http.ResponseWriter, r *http.Request, id string) (*model.Instance, string, bool) {
	inst, err := h.instances.GetByID(id)
	if err != nil {
		h.logger.Error("load instance", "instance_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load instance"})
		return nil, "", false
	}
	if inst == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Instance not found"})
		return nil, "", false
	}

	role, err := h.members.GetRole(inst.ID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load membership", "instance_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load instance"})
		return nil, "", false
	}
	if role == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have access to this instance"})
		return nil, "", false
	}
	return inst, role, true
}

// applyInstanceUpdate copies the provided fields onto the loaded row.
func applyInstanceUpdate(inst *model.Instance, req *updateInstanceRequest) {
	if req.Name != nil {
		inst.Name = strings.TrimSpace(*req.Name)
	}
	if req.Country != nil {
		inst.Country = *req.Country
	}
	if req.City != nil {
		inst.City = *req.City
	}
	if req.Address != nil {
		inst.Address = *req.Address
	}
	if req.Phone != nil {
		inst.Phone = *req.Phone
	}
	if req.Email != nil {
		inst.Email = *req.Email
	}
	if req.Website != nil {
		inst.Website = *req.Website
	}
	if req.Whatsapp != nil {
		inst.Whatsapp = *req.Whatsapp
	}
	if req.Description != nil {
		inst.Description = *req.Description
	}
	if req.CuisineType != nil {
		inst.CuisineType = *req.CuisineType
	}
	if req.WifiName != nil {
		inst.WifiName = *req.WifiName
	}
	if req.WifiPassword != nil {
		inst.WifiPassword = *req.WifiPassword
	}
	if req.ShowWifiOnMenu != nil {
		inst.ShowWifiOnMenu = *req.ShowWifiOnMenu
	}
	if req.ShowHoursOnMenu != nil {
		inst.ShowHoursOnMenu = *req.ShowHoursOnMenu
	}
	if req.GoogleBusinessURL != nil {
		inst.GoogleBusinessURL = *req.GoogleBusinessURL
	}
	if req.ShowGoogleRating != nil {
		inst.ShowGoogleRating = *req.ShowGoogleRating
	}
	if req.QRForegroundColor != nil {
		inst.QRForegroundColor = *req.QRForegroundColor
	}
	if req.QRSize != nil {
		inst.QRSize = *req.QRSize
	}
	if req.QRMargin != nil {
		inst.QRMargin = *req.QRMargin
	}
	if req.QRErrorCorrectionLevel != nil {
		inst.QRErrorCorrectionLevel = *req.QRErrorCorrectionLevel
	}
	if req.QRSelectedMenuID != nil {
		if *req.QRSelectedMenuID == "" {
			inst.QRSelectedMenuID = nil
		} else {
			inst.QRSelectedMenuID = req.QRSelectedMenuID
		}
	}
}
