package storage

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Action item statuses. pending -> in_progress -> completed, with
// cancellation allowed from the two non-terminal states. completed and
// cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Action item priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ActionItem is a tracked piece of follow-up work extracted from a
// conversation. It belongs to exactly one conversation but is also
// indexable by assignee id for cross-conversation personal views.
type ActionItem struct {
	ID               int64  `json:"id"`
	ConversationID   string `json:"conversation_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	AssignedToName   string `json:"assigned_to"`
	AssignedToID     string `json:"assigned_to_id,omitempty"`
	AssignedByName   string `json:"assigned_by"`
	AssignedByID     string `json:"assigned_by_id,omitempty"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	DueDate          string `json:"due_date,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	SourceMessageIDs string `json:"source_message_ids,omitempty"`
}

// CreateActionItemParams holds the input for creating an action item.
// Status is not an input: every item starts pending.
type CreateActionItemParams struct {
	ConversationID   string
	Title            string
	Description      string
	AssignedToName   string
	AssignedToID     string
	AssignedByName   string
	AssignedByID     string
	Priority         string // empty = medium
	DueDate          string
	SourceMessageIDs string
}

// ActionItemsSummary holds aggregate counts for the debug surface.
type ActionItemsSummary struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
}

// ValidStatus reports whether s is one of the four action item statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the four priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// terminalStatus reports whether no transition is defined out of s.
func terminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

// CreateActionItem persists a new action item in the pending state.
// An out-of-enum priority is rejected, not coerced.
func (s *Store) CreateActionItem(p CreateActionItemParams) (*ActionItem, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("storage: action item title is required")
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("storage: invalid priority %q", p.Priority)
	}

	now := Now()
	res, err := s.db.Exec(
		`INSERT INTO action_items
		   (conversation_id, title, description, assigned_to, assigned_to_id,
		    assigned_by, assigned_by_id, status, priority, due_date,
		    created_at, updated_at, source_message_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ConversationID, p.Title, p.Description,
		p.AssignedToName, nullableString(p.AssignedToID),
		p.AssignedByName, nullableString(p.AssignedByID),
		StatusPending, priority, nullableString(p.DueDate),
		now, now, nullableString(p.SourceMessageIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create action item: %w", err)
	}

	id, _ := res.LastInsertId()
	return s.GetActionItem(id), nil
}

// GetActionItem retrieves a single action item by id, or nil.
func (s *Store) GetActionItem(id int64) *ActionItem {
	row := s.db.QueryRow(actionItemSelect+` WHERE id = ?`, id)
	item, err := scanActionItem(row)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).WithField("id", id).Error("storage: get action item failed")
		}
		return nil
	}
	return item
}

// ActionItemsByConversation returns all action items of a conversation,
// newest first.
func (s *Store) ActionItemsByConversation(conversationID string) []ActionItem {
	return s.queryActionItems(
		actionItemSelect+` WHERE conversation_id = ? ORDER BY id DESC`,
		conversationID,
	)
}

// ActionItemsByAssigneeName returns items assigned to a name
// (case-insensitive), optionally filtered by status.
func (s *Store) ActionItemsByAssigneeName(name, status string) []ActionItem {
	query := actionItemSelect + ` WHERE assigned_to = ? COLLATE NOCASE`
	args := []any{name}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"
	return s.queryActionItems(query, args...)
}

// ActionItemsByAssigneeID returns items assigned to a platform user id
// across all conversations, optionally filtered by status. Items stored
// without a resolved assignee id are never returned here.
func (s *Store) ActionItemsByAssigneeID(assigneeID, status string) []ActionItem {
	query := actionItemSelect + ` WHERE assigned_to_id = ?`
	args := []any{assigneeID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"
	return s.queryActionItems(query, args...)
}

// UpdateActionItemStatus transitions an action item, bumping updated_at.
// Returns false for an unknown id, an out-of-enum status, or a transition
// out of a terminal state. Never panics or propagates storage errors.
func (s *Store) UpdateActionItemStatus(id int64, status string) bool {
	if !ValidStatus(status) {
		log.WithFields(log.Fields{"id": id, "status": status}).Warn("storage: rejected invalid status")
		return false
	}

	item := s.GetActionItem(id)
	if item == nil {
		return false
	}
	if terminalStatus(item.Status) && status != item.Status {
		log.WithFields(log.Fields{
			"id":   id,
			"from": item.Status,
			"to":   status,
		}).Warn("storage: rejected transition out of terminal state")
		return false
	}

	res, err := s.db.Exec(
		`UPDATE action_items SET status = ?, updated_at = ? WHERE id = ?`,
		status, Now(), id,
	)
	if err != nil {
		log.WithError(err).WithField("id", id).Error("storage: update status failed")
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// ClearActionItems deletes all action items of a conversation and returns
// how many were removed.
func (s *Store) ClearActionItems(conversationID string) int {
	res, err := s.db.Exec(`DELETE FROM action_items WHERE conversation_id = ?`, conversationID)
	if err != nil {
		log.WithError(err).WithField("conversation", conversationID).Error("storage: clear action items failed")
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// ActionItemsSummary returns aggregate counts by status and priority.
func (s *Store) ActionItemsSummary() *ActionItemsSummary {
	summary := &ActionItemsSummary{
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
	}

	rows, err := s.db.Query(`SELECT status, priority, COUNT(*) FROM action_items GROUP BY status, priority`)
	if err != nil {
		log.WithError(err).Error("storage: summary query failed")
		return summary
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status, priority string
		var count int
		if err := rows.Scan(&status, &priority, &count); err != nil {
			log.WithError(err).Error("storage: summary scan failed")
			return summary
		}
		summary.Total += count
		summary.ByStatus[status] += count
		summary.ByPriority[priority] += count
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Error("storage: summary rows failed")
	}
	return summary
}

// ─── Scanning ────────────────────────────────────────────────────────────────

const actionItemSelect = `
	SELECT id, conversation_id, title, description,
	       assigned_to, ifnull(assigned_to_id, ''),
	       assigned_by, ifnull(assigned_by_id, ''),
	       status, priority, ifnull(due_date, ''),
	       created_at, updated_at, ifnull(source_message_ids, '')
	FROM action_items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActionItem(row rowScanner) (*ActionItem, error) {
	var a ActionItem
	err := row.Scan(
		&a.ID, &a.ConversationID, &a.Title, &a.Description,
		&a.AssignedToName, &a.AssignedToID,
		&a.AssignedByName, &a.AssignedByID,
		&a.Status, &a.Priority, &a.DueDate,
		&a.CreatedAt, &a.UpdatedAt, &a.SourceMessageIDs,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) queryActionItems(query string, args ...any) []ActionItem {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.WithError(err).Error("storage: action item query failed")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var items []ActionItem
	for rows.Next() {
		item, err := scanActionItem(rows)
		if err != nil {
			log.WithError(err).Error("storage: action item scan failed")
			return items
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Error("storage: action item rows failed")
	}
	return items
}
