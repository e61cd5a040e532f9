package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
)

// ApprovalRepository implements port.ApprovalRepository on SQLite
type ApprovalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sqlite.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `
	id, scope_id, kind, reference_id, workflow_mode, current_step_number,
	status, created_by, description, metadata, version,
	completed_at, created_at, updated_at`

const stepColumns = `
	id, approval_id, step_number, approver_id, approver_role, status,
	decided_at, comments, signature_data, metadata, created_at`

// Create inserts the approval and its steps in one transaction
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.Approval) error {
	if !entity.IsValidWorkflowMode(approval.WorkflowMode) {
		return fmt.Errorf("%w: unknown workflow mode %q", workflow.ErrValidation, approval.WorkflowMode)
	}
	metadata, err := encodeMetadata(approval.Metadata)
	if err != nil {
		return err
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		_, err := exec.ExecContext(txCtx, `
			INSERT INTO approvals (`+approvalColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			approval.ID,
			approval.ScopeID,
			approval.Kind,
			approval.ReferenceID,
			approval.WorkflowMode,
			approval.CurrentStepNumber,
			approval.Status,
			approval.CreatedBy,
			approval.Description,
			metadata,
			nullTime(approval.CompletedAt),
			approval.CreatedAt.UTC(),
			approval.UpdatedAt.UTC(),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("%w: approval %s already exists", workflow.ErrConflict, approval.ID)
			}
			r.logger.Error("Failed to create approval", zap.String("id", approval.ID), zap.Error(err))
			return storeErr("create approval", err)
		}

		for i, step := range approval.Steps {
			stepMeta, err := encodeMetadata(step.Metadata)
			if err != nil {
				return err
			}
			_, err = exec.ExecContext(txCtx, `
				INSERT INTO approval_steps (position, `+stepColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				i,
				step.ID,
				approval.ID,
				step.StepNumber,
				step.ApproverID,
				step.ApproverRole,
				step.Status,
				nullTime(step.DecidedAt),
				step.Comments,
				step.SignatureData,
				stepMeta,
				step.CreatedAt.UTC(),
			)
			if err != nil {
				if isConstraintViolation(err) {
					return fmt.Errorf("%w: step %s already exists", workflow.ErrConflict, step.ID)
				}
				r.logger.Error("Failed to create approval step", zap.String("approval_id", approval.ID), zap.Error(err))
				return storeErr("create approval step", err)
			}
		}

		approval.Version = 1
		return nil
	})
}

// GetByID retrieves an approval with its steps
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.Approval, error) {
	exec := r.db.Executor(ctx)

	row := exec.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = ?`, id)
	approval, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: approval %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.String("id", id), zap.Error(err))
		return nil, storeErr("get approval", err)
	}

	steps, err := r.loadSteps(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	approval.Steps = steps
	return approval, nil
}

// Update writes lifecycle fields and step decisions guarded by version
func (r *ApprovalRepository) Update(ctx context.Context, approval *entity.Approval) error {
	metadata, err := encodeMetadata(approval.Metadata)
	if err != nil {
		return err
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		result, err := exec.ExecContext(txCtx, `
			UPDATE approvals
			SET current_step_number = ?, status = ?, description = ?, metadata = ?,
				completed_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			approval.CurrentStepNumber,
			approval.Status,
			approval.Description,
			metadata,
			nullTime(approval.CompletedAt),
			approval.UpdatedAt.UTC(),
			approval.ID,
			approval.Version,
		)
		if err != nil {
			r.logger.Error("Failed to update approval", zap.String("id", approval.ID), zap.Error(err))
			return storeErr("update approval", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return storeErr("read update result", err)
		}
		if affected == 0 {
			var exists int
			err := exec.QueryRowContext(txCtx, `SELECT COUNT(1) FROM approvals WHERE id = ?`, approval.ID).Scan(&exists)
			if err != nil {
				return storeErr("check approval", err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: approval %s", workflow.ErrNotFound, approval.ID)
			}
			return fmt.Errorf("%w: approval %s is no longer at version %d", workflow.ErrConflict, approval.ID, approval.Version)
		}

		for _, step := range approval.Steps {
			stepMeta, err := encodeMetadata(step.Metadata)
			if err != nil {
				return err
			}
			_, err = exec.ExecContext(txCtx, `
				UPDATE approval_steps
				SET status = ?, decided_at = ?, comments = ?, signature_data = ?, metadata = ?
				WHERE id = ? AND approval_id = ?`,
				step.Status,
				nullTime(step.DecidedAt),
				step.Comments,
				step.SignatureData,
				stepMeta,
				step.ID,
				approval.ID,
			)
			if err != nil {
				r.logger.Error("Failed to update approval step", zap.String("step_id", step.ID), zap.Error(err))
				return storeErr("update approval step", err)
			}
		}

		approval.Version++
		return nil
	})
}

// ListByReference returns every run for (referenceID, kind), newest first
func (r *ApprovalRepository) ListByReference(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error) {
	return r.listWhere(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE reference_id = ? AND kind = ?
		ORDER BY created_at DESC, rowid DESC`,
		referenceID, kind,
	)
}

// ListPendingForApprover returns pending approvals the user can act on now
func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, userID string) ([]*entity.Approval, error) {
	return r.listWhere(ctx, `
		SELECT `+approvalColumns+` FROM approvals a
		WHERE a.status = ?
		  AND EXISTS (
			SELECT 1 FROM approval_steps s
			WHERE s.approval_id = a.id
			  AND s.approver_id = ?
			  AND s.status = ?
			  AND s.step_number = a.current_step_number
		  )
		ORDER BY a.created_at DESC, a.rowid DESC`,
		entity.ApprovalStatusPending, userID, entity.StepStatusPending,
	)
}

func (r *ApprovalRepository) listWhere(ctx context.Context, query string, args ...interface{}) ([]*entity.Approval, error) {
	exec := r.db.Executor(ctx)

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Error(err))
		return nil, storeErr("list approvals", err)
	}

	approvals := []*entity.Approval{}
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			rows.Close()
			return nil, storeErr("scan approval", err)
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeErr("iterate approvals", err)
	}
	// Release the cursor before issuing step queries on the same connection
	rows.Close()

	for _, approval := range approvals {
		steps, err := r.loadSteps(ctx, exec, approval.ID)
		if err != nil {
			return nil, err
		}
		approval.Steps = steps
	}
	return approvals, nil
}

func (r *ApprovalRepository) loadSteps(ctx context.Context, exec sqlite.Executor, approvalID string) ([]entity.Step, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT `+stepColumns+` FROM approval_steps
		WHERE approval_id = ?
		ORDER BY step_number, position`,
		approvalID,
	)
	if err != nil {
		r.logger.Error("Failed to load approval steps", zap.String("approval_id", approvalID), zap.Error(err))
		return nil, storeErr("load approval steps", err)
	}
	defer rows.Close()

	var steps []entity.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate approval steps", err)
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanStep reads one step row, rejecting statuses outside the step set
func scanStep(row rowScanner) (entity.Step, error) {
	var (
		step      entity.Step
		decidedAt sql.NullTime
		metadata  string
	)
	err := row.Scan(
		&step.ID,
		&step.ApprovalID,
		&step.StepNumber,
		&step.ApproverID,
		&step.ApproverRole,
		&step.Status,
		&decidedAt,
		&step.Comments,
		&step.SignatureData,
		&metadata,
		&step.CreatedAt,
	)
	if err != nil {
		return entity.Step{}, storeErr("scan approval step", err)
	}
	if step.Status, err = entity.ParseStepStatus(step.Status); err != nil {
		return entity.Step{}, storeErr("decode step "+step.ID, err)
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		step.DecidedAt = &t
	}
	if step.Metadata, err = decodeMetadata(metadata); err != nil {
		return entity.Step{}, err
	}
	return step, nil
}

func scanApproval(row rowScanner) (*entity.Approval, error) {
	var (
		a           entity.Approval
		metadata    string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.ScopeID,
		&a.Kind,
		&a.ReferenceID,
		&a.WorkflowMode,
		&a.CurrentStepNumber,
		&a.Status,
		&a.CreatedBy,
		&a.Description,
		&metadata,
		&a.Version,
		&completedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Callers wrap these as store failures
	if a.Status, err = entity.ParseApprovalStatus(a.Status); err != nil {
		return nil, fmt.Errorf("approval %s: %w", a.ID, err)
	}
	if !entity.IsValidWorkflowMode(a.WorkflowMode) {
		return nil, fmt.Errorf("approval %s: unknown workflow mode %q", a.ID, a.WorkflowMode)
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if a.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeMetadata(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: metadata is not JSON-serializable: %v", workflow.ErrValidation, err)
	}
	return string(data), nil
}

// decodeMetadata maps an empty object back to nil
func decodeMetadata(s string) (map[string]interface{}, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, storeErr("decode metadata", err)
	}
	return m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func storeErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, workflow.ErrStoreFailure, err)
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
