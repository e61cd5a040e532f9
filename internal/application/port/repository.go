package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ApprovalRepository defines persistence operations for Approval and its Steps.
// Implementations return copies; callers never share memory with the store.
type ApprovalRepository interface {
	// Create persists the approval with all its steps and sets Version to 1
	Create(ctx context.Context, approval *entity.Approval) error

	// GetByID returns the approval with steps ordered by step number,
	// or an error wrapping workflow.ErrNotFound
	GetByID(ctx context.Context, id string) (*entity.Approval, error)

	// Update writes status, stage pointer, completion and step decisions.
	// It fails with workflow.ErrConflict when approval.Version does not match
	// the stored version, and bumps Version on success.
	Update(ctx context.Context, approval *entity.Approval) error

	// ListByReference returns approvals for (referenceID, kind), newest first
	ListByReference(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error)

	// ListPendingForApprover returns pending approvals having a pending step
	// for the user at the approval's current step number
	ListPendingForApprover(ctx context.Context, userID string) ([]*entity.Approval, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
