package service

import (
	"context"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

var auditedTypes = []event.Type{
	event.TypeApprovalRequired,
	event.TypeApprovalAdvanced,
	event.TypeApprovalGranted,
	event.TypeApprovalRejected,
	event.TypeApprovalCancelled,
}

// RegisterAuditLog writes every approval lifecycle event to the log
func RegisterAuditLog(d dispatcher.Dispatcher, logger Logger) {
	handler := func(ctx context.Context, evt *event.Event) error {
		logger.Info("Approval lifecycle event",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"approval_id", evt.ApprovalID,
			"kind", evt.Kind,
			"reference_id", evt.ReferenceID,
			"step_number", evt.GetPayloadInt(event.KeyStepNumber),
			"user_id", evt.GetPayloadString(event.KeyUserID),
			"decision", evt.GetPayloadString(event.KeyDecision),
			"occurred_at", evt.Timestamp,
		)
		return nil
	}

	for _, t := range auditedTypes {
		d.SubscribeNamed(t, "audit-log", handler)
	}
}
