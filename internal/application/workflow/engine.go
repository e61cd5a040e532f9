package workflow

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Engine drives approvals through their numbered stages
type Engine interface {
	// CreateApproval persists a pending approval at stage 1 and announces it
	CreateApproval(ctx context.Context, in CreateApprovalInput) (*entity.Approval, error)

	// ProcessAction records userID's decision on their pending step at the
	// current stage. A reject ends the approval; a unanimous stage advances it.
	ProcessAction(ctx context.Context, approvalID, userID, action, comments string) (*entity.Approval, error)

	// GetApproval loads an approval with its steps
	GetApproval(ctx context.Context, id string) (*entity.Approval, error)

	// GetHistory returns every approval run for a business entity, newest first
	GetHistory(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error)

	// CancelApproval withdraws a pending approval; only its creator may do so
	CancelApproval(ctx context.Context, approvalID, userID, reason string) (*entity.Approval, error)
}

// CreateApprovalInput describes a new approval and its stages
type CreateApprovalInput struct {
	ScopeID      string                 `json:"scope_id" validate:"required"`
	Kind         string                 `json:"kind" validate:"required"`
	ReferenceID  string                 `json:"reference_id" validate:"required"`
	WorkflowMode string                 `json:"workflow_mode" validate:"omitempty,oneof=sequential parallel conditional"`
	Steps        []StepInput            `json:"steps" validate:"required,min=1,dive"`
	CreatedBy    string                 `json:"created_by" validate:"required"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// StepInput is one approver slot. Step numbers are taken as given; gaps
// and duplicates are allowed.
type StepInput struct {
	ApproverID    string                 `json:"approver_id" validate:"required"`
	ApproverRole  string                 `json:"approver_role"`
	StepNumber    int                    `json:"step_number" validate:"gte=1"`
	SignatureData []byte                 `json:"signature_data"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
