package model

import "time"

// Ticket status constants
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

// Ticket category constants
const (
	CategoryQRCodeIssue      = "qr_code_issue"
	CategoryMenuNotLoading   = "menu_not_loading"
	CategoryTranslationError = "translation_error"
	CategoryPaymentIssue     = "payment_issue"
	CategoryCannotUseApp     = "cannot_use_app"
	CategoryFeatureRequest   = "feature_request"
	CategoryOther            = "other"
)

// Ticket priority constants
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Message type constants
const (
	MessageTypeMessage      = "message"
	MessageTypeStatusChange = "status_change"
)

// TicketStatusLabels maps status values to their display form used in
// status change messages.
var TicketStatusLabels = map[string]string{
	TicketOpen:       "Open",
	TicketInProgress: "In Progress",
	TicketResolved:   "Resolved",
	TicketClosed:     "Closed",
}

// TicketCategoryPriority derives a ticket's priority from its category.
var TicketCategoryPriority = map[string]string{
	CategoryCannotUseApp:     PriorityCritical,
	CategoryPaymentIssue:     PriorityHigh,
	CategoryMenuNotLoading:   PriorityHigh,
	CategoryQRCodeIssue:      PriorityMedium,
	CategoryTranslationError: PriorityMedium,
	CategoryFeatureRequest:   PriorityLow,
	CategoryOther:            PriorityMedium,
}

type SupportTicket struct {
	ID           string     `json:"id"`
	TicketNumber string     `json:"ticket_number"`
	InstanceID   string     `json:"instance_id"`
	UserID       int64      `json:"user_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`

	// Populated on full reads.
	Messages []TicketMessage `json:"messages,omitempty"`
}

type TicketMessage struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	AuthorID    *int64    `json:"author_id"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	IsStaff     bool      `json:"is_staff"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined from users, populated on reads.
	AuthorName string `json:"author_name,omitempty"`
}

type TicketStats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
}
