package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/memory"
)

func newNotificationFixture() (*notificationServiceImpl, *memory.NotificationStore, *mockFeed, *mockLogger) {
	store := memory.NewNotificationStore()
	feed := &mockFeed{}
	logger := &mockLogger{}
	svc := NewNotificationService(store, feed, nil, logger).(*notificationServiceImpl)
	return svc, store, feed, logger
}

func TestSend(t *testing.T) {
	t.Run("stores publishes and defaults priority", func(t *testing.T) {
		svc, _, feed, logger := newNotificationFixture()

		n, err := svc.Send(context.Background(), NotificationPayload{UserID: "U1", Type: "custom", Title: "hello"})
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, entity.PriorityMedium, n.Priority)
		assert.False(t, n.Read)
		assert.Len(t, feed.published, 1)
		assert.Equal(t, 0, logger.count("warn"))
	})

	t.Run("critical is also logged as a warning", func(t *testing.T) {
		svc, _, _, logger := newNotificationFixture()

		_, err := svc.Send(context.Background(), NotificationPayload{UserID: "U1", Type: "custom", Title: "fire", Priority: entity.PriorityCritical})
		require.NoError(t, err)
		assert.Equal(t, 1, logger.count("warn"))
	})

	t.Run("feed failure does not fail the send", func(t *testing.T) {
		svc, store, feed, logger := newNotificationFixture()
		feed.publishErr = errors.New("feed down")

		_, err := svc.Send(context.Background(), NotificationPayload{UserID: "U1", Type: "custom", Title: "x"})
		require.NoError(t, err)
		assert.Equal(t, 1, logger.count("error"))

		count, err := store.CountUnread(context.Background(), "U1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		svc, _, _, _ := newNotificationFixture()

		_, err := svc.Send(context.Background(), NotificationPayload{Type: "custom", Title: "x"})
		assert.ErrorIs(t, err, workflow.ErrValidation)
	})
}

func TestMailbox(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := svc.Send(ctx, NotificationPayload{UserID: "U1", Type: "custom", Title: "first"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, NotificationPayload{UserID: "U1", Type: "custom", Title: "second"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, NotificationPayload{UserID: "U2", Type: "custom", Title: "other user"})
	require.NoError(t, err)

	all, err := svc.GetUserNotifications(ctx, "U1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Title)
	assert.Equal(t, "first", all[1].Title)

	ok, err := svc.MarkAsRead(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.MarkAsRead(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already read")

	ok, err = svc.MarkAsRead(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	unread, err := svc.GetUserNotifications(ctx, "U1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "second", unread[0].Title)

	n, err := svc.MarkAllAsRead(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := svc.GetUnreadCount(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = svc.GetUnreadCount(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConvenienceNotifications(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	soon := now.Add(time.Hour)
	later := now.Add(24 * time.Hour)

	tests := []struct {
		name      string
		send      func() (*entity.Notification, error)
		wantType  string
		wantPrio  string
		wantURLIn string
	}{
		{
			name:     "task assigned",
			send:     func() (*entity.Notification, error) { return svc.NotifyTaskAssigned(ctx, &entity.UserTask{ID: "t1", AssignedTo: "U1", Title: "t"}) },
			wantType: entity.NotificationTypeTaskAssigned,
			wantPrio: entity.PriorityMedium,
		},
		{
			name: "approval required",
			send: func() (*entity.Notification, error) {
				return svc.NotifyApprovalRequired(ctx, "U1", ApprovalSummary{ApprovalID: "a1", Kind: "purchase-order", ReferenceID: "PO-9"})
			},
			wantType:  entity.NotificationTypeApprovalRequired,
			wantPrio:  entity.PriorityHigh,
			wantURLIn: "/procurement/orders/PO-9",
		},
		{
			name:     "due within four hours",
			send:     func() (*entity.Notification, error) { return svc.NotifyTaskDue(ctx, &entity.UserTask{ID: "t1", AssignedTo: "U1", DueDate: &soon}) },
			wantType: entity.NotificationTypeTaskDue,
			wantPrio: entity.PriorityHigh,
		},
		{
			name:     "due later",
			send:     func() (*entity.Notification, error) { return svc.NotifyTaskDue(ctx, &entity.UserTask{ID: "t1", AssignedTo: "U1", DueDate: &later}) },
			wantType: entity.NotificationTypeTaskDue,
			wantPrio: entity.PriorityMedium,
		},
		{
			name:     "overdue",
			send:     func() (*entity.Notification, error) { return svc.NotifyTaskOverdue(ctx, &entity.UserTask{ID: "t1", AssignedTo: "U1"}) },
			wantType: entity.NotificationTypeTaskOverdue,
			wantPrio: entity.PriorityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.send()
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, n.Type)
			assert.Equal(t, tt.wantPrio, n.Priority)
			if tt.wantURLIn != "" {
				assert.Equal(t, tt.wantURLIn, n.ActionURL)
			}
		})
	}
}

func TestSubscribe_WithoutFeed(t *testing.T) {
	svc := NewNotificationService(memory.NewNotificationStore(), nil, nil, &mockLogger{})
	_, err := svc.Subscribe(context.Background(), "U1")
	assert.Error(t, err)
}

func TestNotificationHandlers_ThroughEngine(t *testing.T) {
	ctx := context.Background()
	store := memory.NewNotificationStore()
	svc := NewNotificationService(store, nil, nil, &mockLogger{})

	d := dispatcher.NewDispatcher()
	RegisterNotificationHandlers(d, svc)
	sink := &syncSink{d: d}

	engine := appwf.NewEngine(memory.NewApprovalStore(), memory.TxManager{}, appwf.WithEventSink(sink))
	a, err := engine.CreateApproval(ctx, appwf.CreateApprovalInput{
		ScopeID:     "s",
		Kind:        "expense-claim",
		ReferenceID: "EC-1",
		CreatedBy:   "creator",
		Steps: []appwf.StepInput{
			{StepNumber: 1, ApproverID: "U1"},
			{StepNumber: 1, ApproverID: "U2"},
			{StepNumber: 2, ApproverID: "U3"},
		},
	})
	require.NoError(t, err)

	unread := func(user string) int {
		n, err := store.CountUnread(ctx, user)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, 1, unread("U1"))
	assert.Equal(t, 1, unread("U2"))
	assert.Equal(t, 0, unread("U3"), "only the current stage is notified")

	_, err = engine.ProcessAction(ctx, a.ID, "U1", "approve", "")
	require.NoError(t, err)
	assert.Equal(t, 0, unread("U3"))

	_, err = engine.ProcessAction(ctx, a.ID, "U2", "approve", "")
	require.NoError(t, err)
	assert.Equal(t, 1, unread("U3"))

	_, err = engine.ProcessAction(ctx, a.ID, "U3", "reject", "over budget")
	require.NoError(t, err)

	notes, err := store.ListByUser(ctx, "creator", false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, entity.NotificationTypeApprovalDecision, notes[0].Type)
	assert.Equal(t, entity.PriorityHigh, notes[0].Priority)
	assert.Equal(t, "expense-claim EC-1 was rejected by U3: over budget", notes[0].Message)
}

func TestNotificationHandlers_DecisionPriorities(t *testing.T) {
	tests := []struct {
		eventType event.Type
		want      string
	}{
		{event.TypeApprovalGranted, entity.PriorityMedium},
		{event.TypeApprovalRejected, entity.PriorityHigh},
		{event.TypeApprovalCancelled, entity.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			store := memory.NewNotificationStore()
			d := dispatcher.NewDispatcher()
			RegisterNotificationHandlers(d, NewNotificationService(store, nil, nil, &mockLogger{}))

			evt := event.NewEvent(tt.eventType, "a1", "document", "D-1", map[string]interface{}{
				event.KeyCreatedBy: "creator",
			})
			require.NoError(t, d.Dispatch(context.Background(), evt))

			notes, err := store.ListByUser(context.Background(), "creator", false)
			require.NoError(t, err)
			require.Len(t, notes, 1)
			assert.Equal(t, tt.want, notes[0].Priority)
		})
	}
}

func TestAuditLog(t *testing.T) {
	logger := &mockLogger{}
	d := dispatcher.NewDispatcher()
	RegisterAuditLog(d, logger)

	for _, typ := range auditedTypes {
		require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(typ, "a1", "document", "D-1", nil)))
	}
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeTaskAssigned, "", "", "", nil)))

	assert.Equal(t, len(auditedTypes), logger.count("info"))
}

func TestExportHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("requires reference and kind", func(t *testing.T) {
		svc := NewApprovalService(&mockEngine{}, &mockRenderer{}, &mockLogger{})
		_, err := svc.ExportHistory(ctx, "", "document")
		assert.ErrorIs(t, err, workflow.ErrValidation)
	})

	t.Run("renders engine history", func(t *testing.T) {
		runs := []*entity.Approval{{ID: "new"}, {ID: "old"}}
		engine := &mockEngine{
			getHistoryFunc: func(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error) {
				assert.Equal(t, "D-1", referenceID)
				assert.Equal(t, "document", kind)
				return runs, nil
			},
		}
		renderer := &mockRenderer{
			exportFunc: func(ctx context.Context, approvals []*entity.Approval) ([]byte, error) {
				assert.Equal(t, runs, approvals)
				return []byte("doc"), nil
			},
		}

		data, err := NewApprovalService(engine, renderer, &mockLogger{}).ExportHistory(ctx, "D-1", "document")
		require.NoError(t, err)
		assert.Equal(t, []byte("doc"), data)
	})

	t.Run("renderer failure is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		logger := &mockLogger{}
		renderer := &mockRenderer{
			exportFunc: func(ctx context.Context, approvals []*entity.Approval) ([]byte, error) { return nil, boom },
		}

		_, err := NewApprovalService(&mockEngine{}, renderer, logger).ExportHistory(ctx, "D-1", "document")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, logger.count("error"))
	})
}

// syncSink delivers engine events to the dispatcher inline
type syncSink struct {
	d dispatcher.Dispatcher
}

func (s *syncSink) Emit(ctx context.Context, evt *event.Event) error {
	return s.d.Dispatch(ctx, evt)
}
