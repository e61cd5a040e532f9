package service

import (
	"context"
	"fmt"

	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// HistoryRenderer turns approval runs into a downloadable document
type HistoryRenderer interface {
	Export(ctx context.Context, approvals []*entity.Approval) ([]byte, error)
}

// ApprovalService covers read-side approval features built on the engine
type ApprovalService interface {
	// ExportHistory renders every run for (referenceID, kind), newest first
	ExportHistory(ctx context.Context, referenceID, kind string) ([]byte, error)
}

type approvalServiceImpl struct {
	engine   appwf.Engine
	renderer HistoryRenderer
	logger   Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(engine appwf.Engine, renderer HistoryRenderer, logger Logger) ApprovalService {
	return &approvalServiceImpl{
		engine:   engine,
		renderer: renderer,
		logger:   logger,
	}
}

func (s *approvalServiceImpl) ExportHistory(ctx context.Context, referenceID, kind string) ([]byte, error) {
	if referenceID == "" || kind == "" {
		return nil, fmt.Errorf("%w: reference_id and kind are required", workflow.ErrValidation)
	}

	approvals, err := s.engine.GetHistory(ctx, referenceID, kind)
	if err != nil {
		s.logger.Error("Failed to load approval history", "reference_id", referenceID, "kind", kind, "error", err)
		return nil, err
	}

	data, err := s.renderer.Export(ctx, approvals)
	if err != nil {
		s.logger.Error("Failed to render approval history", "reference_id", referenceID, "kind", kind, "error", err)
		return nil, fmt.Errorf("render history: %w", err)
	}

	s.logger.Info("Approval history exported", "reference_id", referenceID, "kind", kind, "runs", len(approvals))
	return data, nil
}
