package entity

import "time"

// Notification is an in-memory message in one user's mailbox
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  string                 `json:"priority"`
	ActionURL string                 `json:"action_url,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

// Notification type constants
const (
	NotificationTypeTaskAssigned     = "task_assigned"
	NotificationTypeApprovalRequired = "approval_required"
	NotificationTypeApprovalDecision = "approval_decision"
	NotificationTypeTaskDue          = "task_due"
	NotificationTypeTaskOverdue      = "task_overdue"
)

// Clone returns a copy that shares nothing mutable with n
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	c := *n
	c.ReadAt = cloneTime(n.ReadAt)
	c.Metadata = cloneMap(n.Metadata)
	return &c
}
