package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// TaskStore holds standalone tasks for the process lifetime
type TaskStore interface {
	Save(ctx context.Context, task *entity.UserTask) error
	// Get returns an error wrapping workflow.ErrNotFound when id is unknown
	Get(ctx context.Context, id string) (*entity.UserTask, error)
	// Update applies mutate to the stored task under the store's lock and
	// saves the result. A mutate error leaves the task unchanged.
	Update(ctx context.Context, id string, mutate func(*entity.UserTask) error) (*entity.UserTask, error)
	ListByAssignee(ctx context.Context, userID string) ([]*entity.UserTask, error)
}

// NotificationStore is the per-user mailbox
type NotificationStore interface {
	Append(ctx context.Context, n *entity.Notification) error
	// ListByUser returns the user's notifications newest first
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error)
	// MarkRead returns didUpdate=false when the id is unknown or already read
	MarkRead(ctx context.Context, id string) (didUpdate bool, err error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}
