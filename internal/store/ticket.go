package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/veomenu/veomenu/internal/model"
)

type TicketStore struct {
	db *sql.DB
}

func NewTicketStore(db *sql.DB) *TicketStore {
	return &TicketStore{db: db}
}

func scanTicket(scanner interface{ Scan(...any) error }) (*model.SupportTicket, error) {
	var t model.SupportTicket
	var resolvedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.TicketNumber, &t.InstanceID, &t.UserID, &t.Title, &t.Description,
		&t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return &t, nil
}

const ticketCols = `id, ticket_number, instance_id, user_id, title, description, category, priority, status, created_at, updated_at, resolved_at`

// Create inserts the ticket plus its opening message. Ticket numbers
// are sequential (TICK-0001, TICK-0002, ...); the UNIQUE constraint
// catches concurrent creates and the insert retries with a fresh number.
func (s *TicketStore) Create(t *model.SupportTicket) (*model.SupportTicket, error) {
	id := uuid.NewString()

	backoff := retry.WithMaxRetries(10, retry.NewConstant(time.Millisecond))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		number, err := s.nextTicketNumber()
		if err != nil {
			return err
		}
		err = s.insertWithOpeningMessage(id, number, t)
		if isUniqueViolation(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return s.GetByID(id)
}

func (s *TicketStore) nextTicketNumber() (string, error) {
	var max int64
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(CAST(SUBSTR(ticket_number, 6) AS INTEGER)), 0) FROM support_tickets`,
	).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("next ticket number: %w", err)
	}
	return fmt.Sprintf("TICK-%04d", max+1), nil
}

func (s *TicketStore) insertWithOpeningMessage(id, number string, t *model.SupportTicket) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO support_tickets (id, ticket_number, instance_id, user_id, title, description, category, priority)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, number, t.InstanceID, t.UserID, t.Title, t.Description, t.Category, t.Priority,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO ticket_messages (id, ticket_id, author_id, content, message_type) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), id, t.UserID, t.Description, model.MessageTypeMessage,
	)
	if err != nil {
		return fmt.Errorf("insert opening message: %w", err)
	}
	return tx.Commit()
}

func (s *TicketStore) GetByID(id string) (*model.SupportTicket, error) {
	row := s.db.QueryRow(`SELECT `+ticketCols+` FROM support_tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// GetForUser returns the ticket only when it belongs to the user.
func (s *TicketStore) GetForUser(id string, userID int64) (*model.SupportTicket, error) {
	row := s.db.QueryRow(
		`SELECT `+ticketCols+` FROM support_tickets WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket for user: %w", err)
	}
	return t, nil
}

func (s *TicketStore) ListByUser(userID int64) ([]model.SupportTicket, error) {
	rows, err := s.db.Query(
		`SELECT `+ticketCols+` FROM support_tickets WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.SupportTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// ListMessages returns a ticket's thread oldest first, with author
// names joined in.
func (s *TicketStore) ListMessages(ticketID string) ([]model.TicketMessage, error) {
	rows, err := s.db.Query(
		`SELECT tm.id, tm.ticket_id, tm.author_id, tm.content, tm.message_type, tm.is_staff, tm.created_at, COALESCE(u.name, '')
		 FROM ticket_messages tm
		 LEFT JOIN users u ON u.id = tm.author_id
		 WHERE tm.ticket_id = ?
		 ORDER BY tm.created_at ASC, tm.id ASC`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	defer rows.Close()

	var messages []model.TicketMessage
	for rows.Next() {
		var m model.TicketMessage
		var authorID sql.NullInt64
		err := rows.Scan(&m.ID, &m.TicketID, &authorID, &m.Content, &m.MessageType, &m.IsStaff, &m.CreatedAt, &m.AuthorName)
		if err != nil {
			return nil, fmt.Errorf("scan ticket message: %w", err)
		}
		if authorID.Valid {
			m.AuthorID = &authorID.Int64
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AddMessage appends to the thread and bumps the ticket's updated_at so
// recently active tickets sort first.
func (s *TicketStore) AddMessage(ticketID string, authorID int64, content string, isStaff bool) (*model.TicketMessage, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO ticket_messages (id, ticket_id, author_id, content, message_type, is_staff) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ticketID, authorID, content, model.MessageTypeMessage, isStaff,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ticket message: %w", err)
	}

	_, err = tx.Exec(`UPDATE support_tickets SET updated_at = datetime('now') WHERE id = ?`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("bump ticket updated_at: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.getMessage(id)
}

// ChangeStatus moves the ticket to a new status and records an audit
// message in the thread. The first transition to resolved stamps
// resolved_at.
func (s *TicketStore) ChangeStatus(ticketID, status, messageContent string, authorID int64, isStaff bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE support_tickets SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, ticketID,
	)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}

	if status == model.TicketResolved {
		_, err = tx.Exec(
			`UPDATE support_tickets SET resolved_at = datetime('now') WHERE id = ? AND resolved_at IS NULL`,
			ticketID,
		)
		if err != nil {
			return fmt.Errorf("stamp resolved_at: %w", err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO ticket_messages (id, ticket_id, author_id, content, message_type, is_staff) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ticketID, authorID, messageContent, model.MessageTypeStatusChange, isStaff,
	)
	if err != nil {
		return fmt.Errorf("insert status change message: %w", err)
	}
	return tx.Commit()
}

func (s *TicketStore) getMessage(id string) (*model.TicketMessage, error) {
	row := s.db.QueryRow(
		`SELECT tm.id, tm.ticket_id, tm.author_id, tm.content, tm.message_type, tm.is_staff, tm.created_at, COALESCE(u.name, '')
		 FROM ticket_messages tm
		 LEFT JOIN users u ON u.id = tm.author_id
		 WHERE tm.id = ?`,
		id,
	)
	var m model.TicketMessage
	var authorID sql.NullInt64
	err := row.Scan(&m.ID, &m.TicketID, &authorID, &m.Content, &m.MessageType, &m.IsStaff, &m.CreatedAt, &m.AuthorName)
	if err != nil {
		return nil, fmt.Errorf("get ticket message: %w", err)
	}
	if authorID.Valid {
		m.AuthorID = &authorID.Int64
	}
	return &m, nil
}

func (s *TicketStore) Stats(userID int64) (*model.TicketStats, error) {
	var stats model.TicketStats
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'open'), 0),
		        COALESCE(SUM(status = 'in_progress'), 0),
		        COALESCE(SUM(status = 'resolved'), 0),
		        COALESCE(SUM(status = 'closed'), 0)
		 FROM support_tickets WHERE user_id = ?`,
		userID,
	).Scan(&stats.Total, &stats.Open, &stats.InProgress, &stats.Resolved, &stats.Closed)
	if err != nil {
		return nil, fmt.Errorf("ticket stats: %w", err)
	}
	return &stats, nil
}
