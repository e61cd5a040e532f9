package entity

import "time"

// TaskSource tells where a UserTask was projected from
type TaskSource string

const (
	// TaskSourceApproval tasks are derived from a pending Step; acting on
	// them decides that Step.
	TaskSourceApproval TaskSource = "approval"
	// TaskSourceStandalone tasks live only in the ad-hoc task store.
	TaskSourceStandalone TaskSource = "standalone"
)

// UserTask is a unit of work shown in one user's inbox. Approval-derived
// tasks are recomputed on every read and carry no persistence of their own.
type UserTask struct {
	ID          string        `json:"id"`
	Source      TaskSource    `json:"source"`
	Type        string        `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Module      string        `json:"module"`
	ModuleURL   string        `json:"module_url"`
	ReferenceID string        `json:"reference_id,omitempty"`
	ApprovalID  string        `json:"approval_id,omitempty"`
	Priority    string        `json:"priority"`
	Status      string        `json:"status"`
	AssignedTo  string        `json:"assigned_to"`
	AssignedBy  string        `json:"assigned_by,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Actions     []string      `json:"actions"`
	Comments    []TaskComment `json:"comments,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TaskComment is one entry of a task's comment thread
type TaskComment struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFilters are optional equality predicates applied to an inbox
type TaskFilters struct {
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Module   string `form:"module"`
	TaskType string `form:"task_type"`
}

// TaskCounts summarizes a user's inbox
type TaskCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Overdue    int `json:"overdue"`
	Critical   int `json:"critical"`
}

// Task type constants
const (
	TaskTypeApproval = "approval"
	TaskTypeGeneral  = "general"
)

// Task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task action constants
const (
	TaskActionApprove  = "approve"
	TaskActionReject   = "reject"
	TaskActionSendBack = "send-back"
)

// Priority constants shared by tasks and notifications
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// PriorityRank orders priorities; unknown values rank lowest
func PriorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IsValidTaskPriority reports whether p is a known priority
func IsValidTaskPriority(p string) bool {
	return PriorityRank(p) > 0
}

// Clone returns a deep copy of the task
func (t *UserTask) Clone() *UserTask {
	if t == nil {
		return nil
	}
	c := *t
	c.DueDate = cloneTime(t.DueDate)
	c.Actions = append([]string(nil), t.Actions...)
	c.Comments = append([]TaskComment(nil), t.Comments...)
	return &c
}
