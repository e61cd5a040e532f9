package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationPayload is what a caller supplies to Send
type NotificationPayload struct {
	UserID    string                 `json:"user_id" validate:"required"`
	Type      string                 `json:"type" validate:"required"`
	Title     string                 `json:"title" validate:"required"`
	Message   string                 `json:"message"`
	Priority  string                 `json:"priority"`
	ActionURL string                 `json:"action_url"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// NotificationService is the per-user mailbox fed by engine events and task assignment
type NotificationService interface {
	Send(ctx context.Context, payload NotificationPayload) (*entity.Notification, error)

	NotifyTaskAssigned(ctx context.Context, task *entity.UserTask) (*entity.Notification, error)
	NotifyApprovalRequired(ctx context.Context, userID string, approval ApprovalSummary) (*entity.Notification, error)
	NotifyTaskDue(ctx context.Context, task *entity.UserTask) (*entity.Notification, error)
	NotifyTaskOverdue(ctx context.Context, task *entity.UserTask) (*entity.Notification, error)

	// GetUserNotifications returns newest first, filtered or not
	GetUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error)
	MarkAsRead(ctx context.Context, id string) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)

	// Subscribe streams the user's new notifications until ctx is cancelled
	Subscribe(ctx context.Context, userID string) (<-chan *entity.Notification, error)
}

// ApprovalSummary is the slice of an approval a notification needs
type ApprovalSummary struct {
	ApprovalID  string
	Kind        string
	ReferenceID string
}

// dueSoonWindow is the remaining time under which a due task is high priority
const dueSoonWindow = 4 * time.Hour

type notificationServiceImpl struct {
	store  port.NotificationStore
	feed   port.NotificationFeed
	routes *RouteTable
	logger Logger
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService. feed may be nil
// when no live subscribers are served.
func NewNotificationService(
	store port.NotificationStore,
	feed port.NotificationFeed,
	routes *RouteTable,
	logger Logger,
) NotificationService {
	if routes == nil {
		routes = NewRouteTable(nil)
	}
	return &notificationServiceImpl{
		store:  store,
		feed:   feed,
		routes: routes,
		logger: logger,
		now:    time.Now,
	}
}

func (s *notificationServiceImpl) Send(ctx context.Context, payload NotificationPayload) (*entity.Notification, error) {
	if err := utils.ValidateStruct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if payload.Priority == "" {
		payload.Priority = entity.PriorityMedium
	}

	n := &entity.Notification{
		ID:        uuid.NewString(),
		UserID:    payload.UserID,
		Type:      payload.Type,
		Title:     payload.Title,
		Message:   payload.Message,
		Priority:  payload.Priority,
		ActionURL: payload.ActionURL,
		Metadata:  payload.Metadata,
		CreatedAt: s.now(),
	}

	if err := s.store.Append(ctx, n); err != nil {
		s.logger.Error("Failed to store notification", "user_id", n.UserID, "error", err)
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	if n.Priority == entity.PriorityCritical {
		s.logger.Warn("Critical notification",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"type", n.Type,
			"title", n.Title,
		)
	}

	if s.feed != nil {
		// Live delivery is best effort; the mailbox already has it
		if err := s.feed.Publish(ctx, n); err != nil {
			s.logger.Error("Failed to publish notification", "notification_id", n.ID, "error", err)
		}
	}

	return n, nil
}

func (s *notificationServiceImpl) NotifyTaskAssigned(ctx context.Context, task *entity.UserTask) (*entity.Notification, error) {
	return s.Send(ctx, NotificationPayload{
		UserID:    task.AssignedTo,
		Type:      entity.NotificationTypeTaskAssigned,
		Title:     "New Task Assigned",
		Message:   fmt.Sprintf("You have been assigned: %s", task.Title),
		Priority:  entity.PriorityMedium,
		ActionURL: task.ModuleURL,
		Metadata:  map[string]interface{}{"task_id": task.ID},
	})
}

func (s *notificationServiceImpl) NotifyApprovalRequired(ctx context.Context, userID string, approval ApprovalSummary) (*entity.Notification, error) {
	route := s.routes.Resolve(approval.Kind, approval.ApprovalID, approval.ReferenceID)
	return s.Send(ctx, NotificationPayload{
		UserID:    userID,
		Type:      entity.NotificationTypeApprovalRequired,
		Title:     "Approval Required",
		Message:   fmt.Sprintf("%s %s is waiting for your approval", approval.Kind, approval.ReferenceID),
		Priority:  entity.PriorityHigh,
		ActionURL: route.URL,
		Metadata: map[string]interface{}{
			"approval_id":  approval.ApprovalID,
			"kind":         approval.Kind,
			"reference_id": approval.ReferenceID,
		},
	})
}

func (s *notificationServiceImpl) NotifyTaskDue(ctx context.Context, task *entity.UserTask) (*entity.Notification, error) {
	priority := entity.PriorityMedium
	message := fmt.Sprintf("%s is due soon", task.Title)
	if task.DueDate != nil {
		remaining := task.DueDate.Sub(s.now())
		if remaining < dueSoonWindow {
			priority = entity.PriorityHigh
		}
		message = fmt.Sprintf("%s is due in %s", task.Title, remaining.Round(time.Minute))
	}

	return s.Send(ctx, NotificationPayload{
		UserID:    task.AssignedTo,
		Type:      entity.NotificationTypeTaskDue,
		Title:     "Task Due Soon",
		Message:   message,
		Priority:  priority,
		ActionURL: task.ModuleURL,
		Metadata:  map[string]interface{}{"task_id": task.ID},
	})
}

func (s *notificationServiceImpl) NotifyTaskOverdue(ctx context.Context, task *entity.UserTask) (*entity.Notification, error) {
	return s.Send(ctx, NotificationPayload{
		UserID:    task.AssignedTo,
		Type:      entity.NotificationTypeTaskOverdue,
		Title:     "Task Overdue",
		Message:   fmt.Sprintf("%s is overdue", task.Title),
		Priority:  entity.PriorityCritical,
		ActionURL: task.ModuleURL,
		Metadata:  map[string]interface{}{"task_id": task.ID},
	})
}

func (s *notificationServiceImpl) GetUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error) {
	return s.store.ListByUser(ctx, userID, unreadOnly)
}

func (s *notificationServiceImpl) MarkAsRead(ctx context.Context, id string) (bool, error) {
	return s.store.MarkRead(ctx, id)
}

func (s *notificationServiceImpl) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *notificationServiceImpl) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *notificationServiceImpl) Subscribe(ctx context.Context, userID string) (<-chan *entity.Notification, error) {
	if s.feed == nil {
		return nil, fmt.Errorf("live notification feed is not configured")
	}
	return s.feed.Subscribe(ctx, userID)
}
