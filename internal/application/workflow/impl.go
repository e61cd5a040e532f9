package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/pkg/utils"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	repo      port.ApprovalRepository
	txManager port.TransactionManager
	sink      port.EventSink
	logger    Logger
	now       func() time.Time

	// one decision at a time per approval id
	locks *keyedMutex
}

// EngineOption configures the approval engine
type EngineOption func(*engineImpl)

// WithEventSink sets where lifecycle events go after commit
func WithEventSink(sink port.EventSink) EngineOption {
	return func(e *engineImpl) {
		e.sink = sink
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new approval engine
func NewEngine(repo port.ApprovalRepository, txManager port.TransactionManager, opts ...EngineOption) Engine {
	e := &engineImpl{
		repo:      repo,
		txManager: txManager,
		now:       time.Now,
		locks:     newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) CreateApproval(ctx context.Context, in CreateApprovalInput) (*entity.Approval, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}

	mode := in.WorkflowMode
	if mode == "" {
		mode = entity.WorkflowModeSequential
	}

	now := e.now()
	approval := &entity.Approval{
		ID:                uuid.NewString(),
		ScopeID:           in.ScopeID,
		Kind:              in.Kind,
		ReferenceID:       in.ReferenceID,
		WorkflowMode:      mode,
		CurrentStepNumber: 1,
		Status:            entity.ApprovalStatusPending,
		CreatedBy:         in.CreatedBy,
		Description:       in.Description,
		Metadata:          in.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, st := range in.Steps {
		approval.Steps = append(approval.Steps, entity.Step{
			ID:            uuid.NewString(),
			ApprovalID:    approval.ID,
			StepNumber:    st.StepNumber,
			ApproverID:    st.ApproverID,
			ApproverRole:  st.ApproverRole,
			Status:        entity.StepStatusPending,
			SignatureData: st.SignatureData,
			Metadata:      st.Metadata,
			CreatedAt:     now,
		})
	}
	approval.SortSteps()

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.repo.Create(txCtx, approval); err != nil {
			return fmt.Errorf("failed to create approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, err := e.repo.GetByID(ctx, approval.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: approval %s missing after create: %v", domainwf.ErrNotFound, approval.ID, err)
	}

	e.info("Approval created",
		"approval_id", created.ID,
		"kind", created.Kind,
		"reference_id", created.ReferenceID,
		"steps", len(created.Steps),
	)

	e.emit(ctx, e.newEvent(event.TypeApprovalRequired, created, map[string]interface{}{
		event.KeyUserID: created.CreatedBy,
	}))

	return created, nil
}

func (e *engineImpl) ProcessAction(ctx context.Context, approvalID, userID, action, comments string) (*entity.Approval, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	stepStatus, ok := entity.StepStatusForAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not approve or reject", domainwf.ErrInvalidAction, action)
	}

	unlock := e.locks.Lock(approvalID)
	defer unlock()

	var evt *event.Event
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		approval, err := e.repo.GetByID(txCtx, approvalID)
		if err != nil {
			return err
		}

		// Terminal approvals never have an actionable step
		step := approval.PendingStepFor(userID)
		if approval.IsTerminal() || step == nil {
			return fmt.Errorf("%w: no pending approval for user %s at step %d", domainwf.ErrNotFound, userID, approval.CurrentStepNumber)
		}

		now := e.now()
		step.Status = stepStatus
		step.DecidedAt = &now
		step.Comments = comments

		decided := map[string]interface{}{
			event.KeyUserID:     userID,
			event.KeyDecision:   action,
			event.KeyComments:   comments,
			event.KeyStepNumber: approval.CurrentStepNumber,
		}

		switch {
		case action == entity.ActionReject:
			if err := e.transition(approval, domainwf.TriggerReject, now); err != nil {
				return err
			}
			evt = e.newEvent(event.TypeApprovalRejected, approval, decided)

		case approval.StageApproved(approval.CurrentStepNumber):
			if next, ok := approval.NextStepNumber(); ok {
				if err := e.transition(approval, domainwf.TriggerAdvance, now); err != nil {
					return err
				}
				approval.CurrentStepNumber = next
				evt = e.newEvent(event.TypeApprovalAdvanced, approval, decided)
			} else {
				if err := e.transition(approval, domainwf.TriggerApprove, now); err != nil {
					return err
				}
				evt = e.newEvent(event.TypeApprovalGranted, approval, decided)
			}
		}

		approval.UpdatedAt = now
		if err := e.repo.Update(txCtx, approval); err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.info("Approval decision recorded",
		"approval_id", approvalID,
		"user_id", userID,
		"action", action,
	)
	e.emit(ctx, evt)

	return e.repo.GetByID(ctx, approvalID)
}

func (e *engineImpl) GetApproval(ctx context.Context, id string) (*entity.Approval, error) {
	return e.repo.GetByID(ctx, id)
}

func (e *engineImpl) GetHistory(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error) {
	approvals, err := e.repo.ListByReference(ctx, referenceID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval history: %w", err)
	}
	return approvals, nil
}

func (e *engineImpl) CancelApproval(ctx context.Context, approvalID, userID, reason string) (*entity.Approval, error) {
	unlock := e.locks.Lock(approvalID)
	defer unlock()

	var evt *event.Event
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		approval, err := e.repo.GetByID(txCtx, approvalID)
		if err != nil {
			return err
		}
		if approval.CreatedBy != userID {
			return fmt.Errorf("%w: only the creator may cancel approval %s", domainwf.ErrPermissionDenied, approvalID)
		}

		now := e.now()
		if err := e.transition(approval, domainwf.TriggerCancel, now); err != nil {
			return err
		}
		if reason != "" {
			if approval.Metadata == nil {
				approval.Metadata = make(map[string]interface{})
			}
			approval.Metadata["cancel_reason"] = reason
		}
		approval.UpdatedAt = now

		if err := e.repo.Update(txCtx, approval); err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}

		evt = e.newEvent(event.TypeApprovalCancelled, approval, map[string]interface{}{
			event.KeyUserID:   userID,
			event.KeyComments: reason,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.info("Approval cancelled", "approval_id", approvalID, "user_id", userID)
	e.emit(ctx, evt)

	return e.repo.GetByID(ctx, approvalID)
}

// transition fires trigger against the approval's status and stamps
// completedAt when the result is terminal
func (e *engineImpl) transition(approval *entity.Approval, trigger domainwf.Trigger, now time.Time) error {
	next, err := domainwf.Transition(approval.Status, trigger)
	if err != nil {
		return fmt.Errorf("approval %s: %w", approval.ID, err)
	}
	approval.Status = next
	if entity.IsTerminalApprovalStatus(next) {
		approval.CompletedAt = &now
	}
	return nil
}

func (e *engineImpl) newEvent(t event.Type, approval *entity.Approval, extra map[string]interface{}) *event.Event {
	payload := map[string]interface{}{
		event.KeyApproverIDs:        approval.ApproverIDs(),
		event.KeyCurrentApproverIDs: approval.CurrentApproverIDs(),
		event.KeyMaxLevel:           len(approval.Steps),
		event.KeyStepNumber:         approval.CurrentStepNumber,
		event.KeyCreatedBy:          approval.CreatedBy,
		event.KeyScopeID:            approval.ScopeID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return event.NewEvent(t, approval.ID, approval.Kind, approval.ReferenceID, payload)
}

// emit hands the event to the sink. Failures are logged, never returned:
// the committed state change stands on its own.
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if evt == nil || e.sink == nil {
		return
	}
	if err := e.sink.Emit(ctx, evt); err != nil {
		if e.logger != nil {
			e.logger.Error("Failed to emit approval event",
				"event_type", evt.Type,
				"approval_id", evt.ApprovalID,
				"sink_failure", errors.Is(err, domainwf.ErrSinkFailure),
				"error", err,
			)
		}
	}
}

func (e *engineImpl) info(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}
