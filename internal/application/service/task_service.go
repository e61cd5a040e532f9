package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/port"
	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/pkg/utils"
)

// DefaultTaskSLA is how long an approver has before an approval task is due
const DefaultTaskSLA = 48 * time.Hour

// CreateTaskInput describes a standalone task
type CreateTaskInput struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Module      string     `json:"module"`
	ModuleURL   string     `json:"module_url"`
	ReferenceID string     `json:"reference_id"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssignedTo  string     `json:"assigned_to" validate:"required"`
	AssignedBy  string     `json:"assigned_by"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskService projects a user's inbox from live approvals plus standalone tasks
type TaskService interface {
	GetUserInbox(ctx context.Context, userID string, filters entity.TaskFilters) ([]*entity.UserTask, error)

	// GetTaskByID checks standalone tasks first, then approvals
	GetTaskByID(ctx context.Context, taskID string) (*entity.UserTask, error)

	CreateTask(ctx context.Context, in CreateTaskInput) (*entity.UserTask, error)

	// UpdateTaskStatus decides the underlying step for approval-derived
	// tasks and completes standalone ones
	UpdateTaskStatus(ctx context.Context, taskID, userID, action, comment string) (*entity.UserTask, error)

	GetTaskCounts(ctx context.Context, userID string) (*entity.TaskCounts, error)
}

// TaskServiceConfig carries the projector's tunables
type TaskServiceConfig struct {
	SLA    time.Duration
	Routes *RouteTable
	Now    func() time.Time
}

type taskServiceImpl struct {
	approvals port.ApprovalRepository
	engine    appwf.Engine
	tasks     port.TaskStore
	notifier  NotificationService
	routes    *RouteTable
	sla       time.Duration
	now       func() time.Time
	logger    Logger
}

// NewTaskService creates a new TaskService. notifier may be nil.
func NewTaskService(
	approvals port.ApprovalRepository,
	engine appwf.Engine,
	tasks port.TaskStore,
	notifier NotificationService,
	cfg TaskServiceConfig,
	logger Logger,
) TaskService {
	if cfg.SLA <= 0 {
		cfg.SLA = DefaultTaskSLA
	}
	if cfg.Routes == nil {
		cfg.Routes = NewRouteTable(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &taskServiceImpl{
		approvals: approvals,
		engine:    engine,
		tasks:     tasks,
		notifier:  notifier,
		routes:    cfg.Routes,
		sla:       cfg.SLA,
		now:       cfg.Now,
		logger:    logger,
	}
}

// PriorityFor ages an approval: over 48h critical, over 24h high, a
// kind containing "emergency" (case-sensitive) critical, otherwise medium.
// Never returns low.
func PriorityFor(approval *entity.Approval, now time.Time) string {
	age := now.Sub(approval.CreatedAt)
	switch {
	case age > 48*time.Hour:
		return entity.PriorityCritical
	case age > 24*time.Hour:
		return entity.PriorityHigh
	case strings.Contains(approval.Kind, "emergency"):
		return entity.PriorityCritical
	default:
		return entity.PriorityMedium
	}
}

func (s *taskServiceImpl) GetUserInbox(ctx context.Context, userID string, filters entity.TaskFilters) ([]*entity.UserTask, error) {
	approvals, err := s.approvals.ListPendingForApprover(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	now := s.now()
	inbox := make([]*entity.UserTask, 0, len(approvals))
	for _, a := range approvals {
		// Only the current stage is actionable
		if a.Status != entity.ApprovalStatusPending || a.PendingStepFor(userID) == nil {
			continue
		}
		inbox = append(inbox, s.project(a, userID, now))
	}

	standalone, err := s.tasks.ListByAssignee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	inbox = append(inbox, standalone...)

	inbox = applyFilters(inbox, filters)
	sortInbox(inbox)
	return inbox, nil
}

func (s *taskServiceImpl) GetTaskByID(ctx context.Context, taskID string) (*entity.UserTask, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, workflow.ErrNotFound) {
		return nil, err
	}

	approval, err := s.approvals.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: task %q", workflow.ErrNotFound, taskID)
	}

	approver := firstCurrentApprover(approval)
	if approver == "" {
		return nil, fmt.Errorf("%w: task %q has no approver", workflow.ErrNotFound, taskID)
	}
	return s.project(approval, approver, s.now()), nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, in CreateTaskInput) (*entity.UserTask, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}

	now := s.now()
	task := &entity.UserTask{
		ID:          uuid.NewString(),
		Source:      entity.TaskSourceStandalone,
		Type:        defaultString(in.Type, entity.TaskTypeGeneral),
		Title:       in.Title,
		Description: in.Description,
		Module:      defaultString(in.Module, "tasks"),
		ModuleURL:   in.ModuleURL,
		ReferenceID: in.ReferenceID,
		Priority:    defaultString(in.Priority, entity.PriorityMedium),
		Status:      entity.TaskStatusPending,
		AssignedTo:  in.AssignedTo,
		AssignedBy:  in.AssignedBy,
		DueDate:     in.DueDate,
		Actions:     []string{entity.TaskActionApprove, entity.TaskActionReject, entity.TaskActionSendBack},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	s.logger.Info("Task created", "task_id", task.ID, "assigned_to", task.AssignedTo)

	if s.notifier != nil {
		if _, err := s.notifier.NotifyTaskAssigned(ctx, task); err != nil {
			s.logger.Error("Failed to notify task assignee", "task_id", task.ID, "error", err)
		}
	}

	return task, nil
}

func (s *taskServiceImpl) UpdateTaskStatus(ctx context.Context, taskID, userID, action, comment string) (*entity.UserTask, error) {
	action = strings.ToLower(strings.TrimSpace(action))

	task, err := s.tasks.Get(ctx, taskID)
	switch {
	case err == nil:
		return s.completeStandalone(ctx, task, userID, action, comment)
	case !errors.Is(err, workflow.ErrNotFound):
		return nil, err
	}

	if _, err := s.approvals.GetByID(ctx, taskID); err != nil {
		return nil, fmt.Errorf("%w: task %q", workflow.ErrNotFound, taskID)
	}

	if action == entity.TaskActionSendBack {
		return nil, fmt.Errorf("%w: %s is not supported on approval tasks", workflow.ErrInvalidAction, action)
	}

	approval, err := s.engine.ProcessAction(ctx, taskID, userID, action, comment)
	if err != nil {
		return nil, err
	}

	projected := s.project(approval, userID, s.now())
	projected.Status = entity.TaskStatusCompleted
	projected.Actions = []string{}
	return projected, nil
}

func (s *taskServiceImpl) completeStandalone(ctx context.Context, task *entity.UserTask, userID, action, comment string) (*entity.UserTask, error) {
	switch action {
	case entity.TaskActionApprove, entity.TaskActionReject, entity.TaskActionSendBack:
	default:
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidAction, action)
	}

	// Checks run against the stored copy so concurrent actions cannot both complete it
	updated, err := s.tasks.Update(ctx, task.ID, func(current *entity.UserTask) error {
		if current.AssignedTo != userID {
			return fmt.Errorf("%w: task %s is assigned to another user", workflow.ErrPermissionDenied, current.ID)
		}
		if current.Status == entity.TaskStatusCompleted {
			return fmt.Errorf("%w: task %s is already completed", workflow.ErrInvalidTransition, current.ID)
		}

		now := s.now()
		current.Status = entity.TaskStatusCompleted
		current.Actions = []string{}
		current.UpdatedAt = now
		if comment != "" {
			current.Comments = append(current.Comments, entity.TaskComment{UserID: userID, Text: comment, CreatedAt: now})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task completed", "task_id", updated.ID, "user_id", userID, "action", action)
	return updated, nil
}

func (s *taskServiceImpl) GetTaskCounts(ctx context.Context, userID string) (*entity.TaskCounts, error) {
	inbox, err := s.GetUserInbox(ctx, userID, entity.TaskFilters{})
	if err != nil {
		return nil, err
	}

	now := s.now()
	counts := &entity.TaskCounts{Total: len(inbox)}
	for _, t := range inbox {
		switch t.Status {
		case entity.TaskStatusPending:
			counts.Pending++
		case entity.TaskStatusInProgress:
			counts.InProgress++
		}
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != entity.TaskStatusCompleted {
			counts.Overdue++
		}
		if t.Priority == entity.PriorityCritical {
			counts.Critical++
		}
	}
	return counts, nil
}

// project builds the approval-derived task for one approver
func (s *taskServiceImpl) project(a *entity.Approval, userID string, now time.Time) *entity.UserTask {
	route := s.routes.Resolve(a.Kind, a.ID, a.ReferenceID)
	due := a.CreatedAt.Add(s.sla)

	status := entity.TaskStatusPending
	actions := []string{entity.TaskActionApprove, entity.TaskActionReject}
	if a.IsTerminal() || a.PendingStepFor(userID) == nil {
		status = entity.TaskStatusCompleted
		actions = []string{}
	}

	var comments []entity.TaskComment
	for _, step := range a.Steps {
		if step.Comments == "" || step.DecidedAt == nil {
			continue
		}
		comments = append(comments, entity.TaskComment{UserID: step.ApproverID, Text: step.Comments, CreatedAt: *step.DecidedAt})
	}

	return &entity.UserTask{
		ID:          a.ID,
		Source:      entity.TaskSourceApproval,
		Type:        entity.TaskTypeApproval,
		Title:       fmt.Sprintf("%s Approval Required", a.Kind),
		Description: a.Description,
		Module:      route.Module,
		ModuleURL:   route.URL,
		ReferenceID: a.ReferenceID,
		ApprovalID:  a.ID,
		Priority:    PriorityFor(a, now),
		Status:      status,
		AssignedTo:  userID,
		AssignedBy:  a.CreatedBy,
		DueDate:     &due,
		Actions:     actions,
		Comments:    comments,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// firstCurrentApprover prefers a pending step at the current stage and
// falls back to the first step of that stage
func firstCurrentApprover(a *entity.Approval) string {
	current := a.StepsAt(a.CurrentStepNumber)
	for _, step := range current {
		if step.Status == entity.StepStatusPending {
			return step.ApproverID
		}
	}
	if len(current) > 0 {
		return current[0].ApproverID
	}
	if len(a.Steps) > 0 {
		return a.Steps[0].ApproverID
	}
	return ""
}

func applyFilters(tasks []*entity.UserTask, f entity.TaskFilters) []*entity.UserTask {
	out := tasks[:0]
	for _, t := range tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Module != "" && t.Module != f.Module {
			continue
		}
		if f.TaskType != "" && t.Type != f.TaskType {
			continue
		}
		out = append(out, t)
	}
	return out
}

// sortInbox orders by priority rank, then earliest due date when both have one
func sortInbox(tasks []*entity.UserTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := entity.PriorityRank(tasks[i].Priority), entity.PriorityRank(tasks[j].Priority)
		if ri != rj {
			return ri > rj
		}
		if tasks[i].DueDate != nil && tasks[j].DueDate != nil {
			return tasks[i].DueDate.Before(*tasks[j].DueDate)
		}
		return false
	})
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
