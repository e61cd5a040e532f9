package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Sheet layout of the history workbook
const (
	approvalsSheet = "Approvals"
	stepsSheet     = "Steps"
	timeLayout     = "2006-01-02 15:04:05"
)

var approvalHeader = []interface{}{
	"Approval ID", "Kind", "Reference ID", "Scope", "Mode", "Status",
	"Current Step", "Created By", "Created At", "Completed At", "Description",
}

var stepHeader = []interface{}{
	"Approval ID", "Step", "Approver", "Role", "Status", "Decided At", "Comments",
}

// HistoryExporter renders an entity's approval runs as an xlsx workbook
type HistoryExporter struct {
	logger *zap.Logger
}

// NewHistoryExporter creates a new HistoryExporter
func NewHistoryExporter(logger *zap.Logger) *HistoryExporter {
	return &HistoryExporter{logger: logger}
}

// Export writes one row per approval and one row per step, in the order given
func (e *HistoryExporter) Export(ctx context.Context, approvals []*entity.Approval) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", approvalsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := file.NewSheet(stepsSheet); err != nil {
		return nil, fmt.Errorf("failed to create steps sheet: %w", err)
	}

	if err := file.SetSheetRow(approvalsSheet, "A1", &approvalHeader); err != nil {
		return nil, fmt.Errorf("failed to write approvals header: %w", err)
	}
	if err := file.SetSheetRow(stepsSheet, "A1", &stepHeader); err != nil {
		return nil, fmt.Errorf("failed to write steps header: %w", err)
	}

	stepRow := 2
	for i, a := range approvals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := []interface{}{
			a.ID, a.Kind, a.ReferenceID, a.ScopeID, a.WorkflowMode, a.Status,
			a.CurrentStepNumber, a.CreatedBy, formatTime(&a.CreatedAt), formatTime(a.CompletedAt), a.Description,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(approvalsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write approval %s: %w", a.ID, err)
		}

		for _, s := range a.Steps {
			row := []interface{}{
				a.ID, s.StepNumber, s.ApproverID, s.ApproverRole, s.Status, formatTime(s.DecidedAt), s.Comments,
			}
			cell := fmt.Sprintf("A%d", stepRow)
			if err := file.SetSheetRow(stepsSheet, cell, &row); err != nil {
				return nil, fmt.Errorf("failed to write step %s: %w", s.ID, err)
			}
			stepRow++
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	e.logger.Debug("Approval history exported",
		zap.Int("approvals", len(approvals)),
		zap.Int("steps", stepRow-2),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
