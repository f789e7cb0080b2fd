package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/push"
	"github.com/veomenu/veomenu/internal/store"
	"github.com/veomenu/veomenu/internal/websocket"
)

type TicketHandler struct {
	tickets   *store.TicketStore
	instances *store.InstanceStore
	members   *store.InstanceMemberStore
	pushes    *store.PushStore
	pusher    *push.Service
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewTicketHandler(
	ts *store.TicketStore,
	is *store.InstanceStore,
	ims *store.InstanceMemberStore,
	ps *store.PushStore,
	pusher *push.Service,
	hub *websocket.Hub,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		tickets:   ts,
		instances: is,
		members:   ims,
		pushes:    ps,
		pusher:    pusher,
		hub:       hub,
		logger:    logger,
	}
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list tickets", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list tickets"})
		return
	}
	if tickets == nil {
		tickets = []model.SupportTicket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

type createTicketRequest struct {
	InstanceID  string `json:"instance_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.InstanceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "instance_id is required"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Title is required."})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Description is required."})
		return
	}
	if req.Category == "" {
		req.Category = model.CategoryOther
	}
	priority, ok := model.TicketCategoryPriority[req.Category]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid category"})
		return
	}

	inst, err := h.instances.GetByID(req.InstanceID)
	if err != nil {
		h.logger.Error("create ticket instance", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create ticket"})
		return
	}
	if inst == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Instance not found"})
		return
	}
	role, err := h.members.GetRole(inst.ID, userID)
	if err != nil {
		h.logger.Error("create ticket membership", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create ticket"})
		return
	}
	if role == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have access to this instance"})
		return
	}

	ticket := &model.SupportTicket{
		InstanceID:  inst.ID,
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Priority:    priority,
	}
	created, err := h.tickets.Create(ticket)
	if err != nil {
		h.logger.Error("create ticket", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create ticket"})
		return
	}

	h.hub.Broadcast(inst.ID, websocket.NewMessage("ticket", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Support ticket created successfully",
		"ticket":  created,
	})
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.requireTicket(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	messages, err := h.tickets.ListMessages(ticket.ID)
	if err != nil {
		h.logger.Error("list ticket messages", "ticket_id", ticket.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load ticket"})
		return
	}
	if messages == nil {
		messages = []model.TicketMessage{}
	}
	ticket.Messages = messages
	writeJSON(w, http.StatusOK, ticket)
}

func (h *TicketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tickets.Stats(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("ticket stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load ticket stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type addTicketMessageRequest struct {
	Content string `json:"content"`
}

func (h *TicketHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.requireTicket(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req addTicketMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message content is required"})
		return
	}

	userID := auth.UserID(r.Context())
	message, err := h.tickets.AddMessage(ticket.ID, userID, content, false)
	if err != nil {
		h.logger.Error("add ticket message", "ticket_id", ticket.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to add message"})
		return
	}

	h.hub.Broadcast(ticket.InstanceID, websocket.NewMessage("ticket", "message_added", ticket.ID, nil))

	// The owner is only notified about replies from someone else, so the
	// usual case of commenting on your own ticket stays quiet.
	if userID != ticket.UserID {
		go h.notifyOwner(ticket, push.Payload{
			Title: fmt.Sprintf("Ticket %s", ticket.TicketNumber),
			Body:  "You have a new reply on your support ticket.",
			Tag:   "ticket-" + ticket.ID,
		})
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":        "Message added successfully",
		"ticket_message": message,
	})
}

type changeTicketStatusRequest struct {
	Status string `json:"status"`
}

func (h *TicketHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.requireTicket(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req changeTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	newLabel, ok := model.TicketStatusLabels[req.Status]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid status"})
		return
	}

	content := fmt.Sprintf("Status changed from '%s' to '%s'", model.TicketStatusLabels[ticket.Status], newLabel)
	userID := auth.UserID(r.Context())
	if err := h.tickets.ChangeStatus(ticket.ID, req.Status, content, userID, false); err != nil {
		h.logger.Error("change ticket status", "ticket_id", ticket.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update ticket status"})
		return
	}

	updated, err := h.tickets.GetByID(ticket.ID)
	if err != nil {
		h.logger.Error("reload ticket", "ticket_id", ticket.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update ticket status"})
		return
	}

	h.hub.Broadcast(ticket.InstanceID, websocket.NewMessage("ticket", "status_changed", ticket.ID, map[string]any{"status": req.Status}))

	go h.notifyOwner(ticket, push.Payload{
		Title: fmt.Sprintf("Ticket %s", ticket.TicketNumber),
		Body:  content,
		Tag:   "ticket-" + ticket.ID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ticket status updated successfully",
		"ticket":  updated,
	})
}

// requireTicket loads the ticket scoped to the caller, so another
// user's ticket id reads as not found.
func (h *TicketHandler) requireTicket(w http.ResponseWriter, r *http.Request, id string) (*model.SupportTicket, bool) {
	ticket, err := h.tickets.GetForUser(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load ticket", "ticket_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load ticket"})
		return nil, false
	}
	if ticket == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Ticket not found"})
		return nil, false
	}
	return ticket, true
}

// notifyOwner pushes to every browser the ticket owner registered.
// Endpoints the push service reports gone are pruned on the spot.
func (h *TicketHandler) notifyOwner(ticket *model.SupportTicket, payload push.Payload) {
	if !h.pusher.Configured() {
		return
	}

	subs, err := h.pushes.ListByUser(ticket.UserID)
	if err != nil {
		h.logger.Error("list push subscriptions", "user_id", ticket.UserID, "error", err)
		return
	}
	for i := range subs {
		err := h.pusher.Send(&subs[i], payload)
		if errors.Is(err, push.ErrExpired) {
			if err := h.pushes.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				h.logger.Error("prune push subscription", "subscription_id", subs[i].ID, "error", err)
			}
			continue
		}
		if err != nil {
			h.logger.Error("send push", "subscription_id", subs[i].ID, "error", err)
		}
	}
}
