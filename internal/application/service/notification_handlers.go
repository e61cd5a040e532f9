package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

// RegisterNotificationHandlers routes engine events into user mailboxes
func RegisterNotificationHandlers(d dispatcher.Dispatcher, svc NotificationService) {
	required := approvalRequiredHandler(svc)
	d.SubscribeNamed(event.TypeApprovalRequired, "notify-approvers", required)
	d.SubscribeNamed(event.TypeApprovalAdvanced, "notify-approvers", required)

	decided := approvalDecisionHandler(svc)
	d.SubscribeNamed(event.TypeApprovalGranted, "notify-creator", decided)
	d.SubscribeNamed(event.TypeApprovalRejected, "notify-creator", decided)
	d.SubscribeNamed(event.TypeApprovalCancelled, "notify-creator", decided)
}

func approvalRequiredHandler(svc NotificationService) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		summary := ApprovalSummary{ApprovalID: evt.ApprovalID, Kind: evt.Kind, ReferenceID: evt.ReferenceID}
		for _, userID := range evt.GetPayloadStrings(event.KeyCurrentApproverIDs) {
			if _, err := svc.NotifyApprovalRequired(ctx, userID, summary); err != nil {
				return fmt.Errorf("notify approver %s: %w", userID, err)
			}
		}
		return nil
	}
}

func approvalDecisionHandler(svc NotificationService) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		creator := evt.GetPayloadString(event.KeyCreatedBy)
		if creator == "" {
			return nil
		}

		var title, priority, outcome string
		switch evt.Type {
		case event.TypeApprovalGranted:
			title, priority, outcome = "Approval Granted", entity.PriorityMedium, "was approved"
		case event.TypeApprovalRejected:
			title, priority, outcome = "Approval Rejected", entity.PriorityHigh, "was rejected"
		default:
			title, priority, outcome = "Approval Cancelled", entity.PriorityLow, "was cancelled"
		}

		message := fmt.Sprintf("%s %s %s", evt.Kind, evt.ReferenceID, outcome)
		if by := evt.GetPayloadString(event.KeyUserID); by != "" && by != creator {
			message += " by " + by
		}
		if c := evt.GetPayloadString(event.KeyComments); c != "" {
			message += ": " + c
		}

		_, err := svc.Send(ctx, NotificationPayload{
			UserID:   creator,
			Type:     entity.NotificationTypeApprovalDecision,
			Title:    title,
			Message:  message,
			Priority: priority,
			Metadata: map[string]interface{}{
				"approval_id":  evt.ApprovalID,
				"kind":         evt.Kind,
				"reference_id": evt.ReferenceID,
				"decision":     evt.Type.String(),
			},
		})
		return err
	}
}
