package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/pkg/database"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "approvals.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(""))
	return sqlite.NewDB(db.DB, logger)
}

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newApproval(id, reference string, created time.Time, steps ...entity.Step) *entity.Approval {
	for i := range steps {
		steps[i].ApprovalID = id
		steps[i].Status = entity.StepStatusPending
		steps[i].CreatedAt = created
		if steps[i].ID == "" {
			steps[i].ID = id + "-step-" + steps[i].ApproverID
		}
	}
	return &entity.Approval{
		ID:                id,
		ScopeID:           "scope-1",
		Kind:              "purchase-order",
		ReferenceID:       reference,
		WorkflowMode:      entity.WorkflowModeSequential,
		CurrentStepNumber: 1,
		Status:            entity.ApprovalStatusPending,
		CreatedBy:         "creator",
		Steps:             steps,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

func TestApprovalRepository_CreateAndGet(t *testing.T) {
	repo := NewApprovalRepository(setupTestDB(t), zap.NewNop())
	ctx := context.Background()

	a := newApproval("a1", "PO-1", baseTime,
		entity.Step{StepNumber: 2, ApproverID: "U3"},
		entity.Step{StepNumber: 1, ApproverID: "U1", ApproverRole: "manager", SignatureData: []byte{0x01, 0x02}},
		entity.Step{StepNumber: 1, ApproverID: "U2", Metadata: map[string]interface{}{"limit": 500.0}},
	)
	a.Metadata = map[string]interface{}{"amount": 1200.5}
	a.Description = "laptops"

	require.NoError(t, repo.Create(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, "laptops", got.Description)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 1200.5, got.Metadata["amount"])
	assert.True(t, baseTime.Equal(got.CreatedAt))
	assert.Nil(t, got.CompletedAt)

	require.Len(t, got.Steps, 3)
	assert.Equal(t, []string{"U1", "U2", "U3"}, []string{got.Steps[0].ApproverID, got.Steps[1].ApproverID, got.Steps[2].ApproverID})
	assert.Equal(t, "manager", got.Steps[0].ApproverRole)
	assert.Equal(t, []byte{0x01, 0x02}, got.Steps[0].SignatureData)
	assert.Equal(t, 500.0, got.Steps[1].Metadata["limit"])
	assert.Nil(t, got.Steps[2].Metadata)

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := repo.Create(ctx, newApproval("a1", "PO-1", baseTime))
		assert.ErrorIs(t, err, workflow.ErrConflict)
	})

	t.Run("missing id is not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestApprovalRepository_UpdateVersioning(t *testing.T) {
	repo := NewApprovalRepository(setupTestDB(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newApproval("a1", "PO-1", baseTime,
		entity.Step{StepNumber: 1, ApproverID: "U1"},
		entity.Step{StepNumber: 2, ApproverID: "U2"},
	)))

	first, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	stale, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)

	decided := baseTime.Add(time.Hour)
	first.Steps[0].Status = entity.StepStatusApproved
	first.Steps[0].DecidedAt = &decided
	first.Steps[0].Comments = "ok"
	first.CurrentStepNumber = 2
	first.UpdatedAt = decided
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	stale.Status = entity.ApprovalStatusRejected
	err = repo.Update(ctx, stale)
	assert.ErrorIs(t, err, workflow.ErrConflict)

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusPending, got.Status)
	assert.Equal(t, 2, got.CurrentStepNumber)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, entity.StepStatusApproved, got.Steps[0].Status)
	assert.Equal(t, "ok", got.Steps[0].Comments)
	require.NotNil(t, got.Steps[0].DecidedAt)
	assert.True(t, decided.Equal(*got.Steps[0].DecidedAt))

	t.Run("unknown approval is not found", func(t *testing.T) {
		ghost := newApproval("ghost", "PO-9", baseTime)
		ghost.Version = 1
		assert.ErrorIs(t, repo.Update(ctx, ghost), workflow.ErrNotFound)
	})
}

func TestApprovalRepository_ListByReference(t *testing.T) {
	repo := NewApprovalRepository(setupTestDB(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newApproval("old", "PO-1", baseTime, entity.Step{StepNumber: 1, ApproverID: "U1"})))
	require.NoError(t, repo.Create(ctx, newApproval("new", "PO-1", baseTime.Add(time.Minute), entity.Step{StepNumber: 1, ApproverID: "U1"})))
	require.NoError(t, repo.Create(ctx, newApproval("other", "PO-2", baseTime, entity.Step{StepNumber: 1, ApproverID: "U1"})))

	got, err := repo.ListByReference(ctx, "PO-1", "purchase-order")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
	assert.Len(t, got[0].Steps, 1)

	none, err := repo.ListByReference(ctx, "PO-1", "vendor-bill")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApprovalRepository_ListPendingForApprover(t *testing.T) {
	repo := NewApprovalRepository(setupTestDB(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newApproval("a1", "PO-1", baseTime,
		entity.Step{StepNumber: 1, ApproverID: "U1"},
		entity.Step{StepNumber: 2, ApproverID: "U2"},
	)))
	done := newApproval("a2", "PO-2", baseTime, entity.Step{StepNumber: 1, ApproverID: "U2"})
	done.Status = entity.ApprovalStatusApproved
	require.NoError(t, repo.Create(ctx, done))

	u1, err := repo.ListPendingForApprover(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, u1, 1)
	assert.Equal(t, "a1", u1[0].ID)

	u2, err := repo.ListPendingForApprover(ctx, "U2")
	require.NoError(t, err)
	assert.Empty(t, u2, "future stage and terminal approvals are excluded")
}

func TestApprovalRepository_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, newApproval("a1", "PO-1", baseTime, entity.Step{StepNumber: 1, ApproverID: "U1"})); err != nil {
			return err
		}
		_, err := repo.GetByID(txCtx, "a1")
		require.NoError(t, err, "visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, "a1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestApprovalRepository_CascadeDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newApproval("a1", "PO-1", baseTime, entity.Step{StepNumber: 1, ApproverID: "U1"})))

	_, err := db.ExecContext(ctx, `DELETE FROM approvals WHERE id = ?`, "a1")
	require.NoError(t, err)

	var steps int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(1) FROM approval_steps WHERE approval_id = ?`, "a1").Scan(&steps))
	assert.Equal(t, 0, steps)
}

func TestApprovalRepository_StoreFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	require.NoError(t, db.Close())

	_, err := repo.GetByID(context.Background(), "a1")
	assert.ErrorIs(t, err, workflow.ErrStoreFailure)
}

func TestApprovalRepository_RejectsUnknownStoredStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newApproval("a1", "PO-1", baseTime, entity.Step{StepNumber: 1, ApproverID: "U1"})))

	// Simulate rows written before the status set was narrowed
	exec := db.Executor(ctx)
	_, err := exec.ExecContext(ctx, `PRAGMA ignore_check_constraints = ON`)
	require.NoError(t, err)

	_, err = exec.ExecContext(ctx, `UPDATE approvals SET status = 'in_review' WHERE id = 'a1'`)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, "a1")
	assert.ErrorIs(t, err, workflow.ErrStoreFailure)
	assert.ErrorContains(t, err, "unknown approval status")

	_, err = exec.ExecContext(ctx, `UPDATE approvals SET status = 'pending' WHERE id = 'a1'`)
	require.NoError(t, err)
	_, err = exec.ExecContext(ctx, `UPDATE approval_steps SET status = 'skipped' WHERE approval_id = 'a1'`)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, "a1")
	assert.ErrorIs(t, err, workflow.ErrStoreFailure)
	assert.ErrorContains(t, err, "unknown step status")

	_, err = exec.ExecContext(ctx, `UPDATE approval_steps SET status = 'pending' WHERE approval_id = 'a1'`)
	require.NoError(t, err)
	_, err = exec.ExecContext(ctx, `UPDATE approvals SET workflow_mode = 'adhoc' WHERE id = 'a1'`)
	require.NoError(t, err)
	_, err = repo.ListByReference(ctx, "PO-1", "purchase-order")
	assert.ErrorIs(t, err, workflow.ErrStoreFailure)
	assert.ErrorContains(t, err, "unknown workflow mode")
}

func TestApprovalRepository_CreateRejectsUnknownMode(t *testing.T) {
	repo := NewApprovalRepository(setupTestDB(t), zap.NewNop())

	a := newApproval("a1", "PO-1", baseTime, entity.Step{StepNumber: 1, ApproverID: "U1"})
	a.WorkflowMode = "adhoc"
	err := repo.Create(context.Background(), a)
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = repo.GetByID(context.Background(), "a1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestApprovalRepository_WithEngine(t *testing.T) {
	db := setupTestDB(t)
	engine := appwf.NewEngine(NewApprovalRepository(db, zap.NewNop()), db)
	ctx := context.Background()

	a, err := engine.CreateApproval(ctx, appwf.CreateApprovalInput{
		ScopeID:     "scope-1",
		Kind:        "vendor-bill",
		ReferenceID: "VB-3",
		CreatedBy:   "creator",
		Steps: []appwf.StepInput{
			{StepNumber: 1, ApproverID: "U1"},
			{StepNumber: 1, ApproverID: "U2"},
			{StepNumber: 2, ApproverID: "U3"},
		},
	})
	require.NoError(t, err)

	_, err = engine.ProcessAction(ctx, a.ID, "U1", "approve", "")
	require.NoError(t, err)
	_, err = engine.ProcessAction(ctx, a.ID, "U2", "approve", "")
	require.NoError(t, err)
	final, err := engine.ProcessAction(ctx, a.ID, "U3", "approve", "paid")
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalStatusApproved, final.Status)
	assert.Equal(t, 2, final.CurrentStepNumber)
	assert.NotNil(t, final.CompletedAt)
	assert.Equal(t, int64(4), final.Version)

	_, err = engine.ProcessAction(ctx, a.ID, "U3", "approve", "")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
