package service

import (
	"context"
	"sync"

	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

type logEntry struct {
	level string
	msg   string
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (m *mockLogger) log(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{level: level, msg: msg})
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  { m.log("info", msg) }
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  { m.log("warn", msg) }
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) { m.log("error", msg) }

func (m *mockLogger) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type mockFeed struct {
	mu         sync.Mutex
	published  []*entity.Notification
	publishErr error
}

func (m *mockFeed) Publish(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, n)
	return nil
}

func (m *mockFeed) Subscribe(ctx context.Context, userID string) (<-chan *entity.Notification, error) {
	ch := make(chan *entity.Notification)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type mockEngine struct {
	processActionFunc func(ctx context.Context, approvalID, userID, action, comments string) (*entity.Approval, error)
	getHistoryFunc    func(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error)
}

func (m *mockEngine) CreateApproval(ctx context.Context, in appwf.CreateApprovalInput) (*entity.Approval, error) {
	return nil, workflow.ErrInvalidAction
}

func (m *mockEngine) ProcessAction(ctx context.Context, approvalID, userID, action, comments string) (*entity.Approval, error) {
	if m.processActionFunc != nil {
		return m.processActionFunc(ctx, approvalID, userID, action, comments)
	}
	return nil, workflow.ErrNotFound
}

func (m *mockEngine) GetApproval(ctx context.Context, id string) (*entity.Approval, error) {
	return nil, workflow.ErrNotFound
}

func (m *mockEngine) GetHistory(ctx context.Context, referenceID, kind string) ([]*entity.Approval, error) {
	if m.getHistoryFunc != nil {
		return m.getHistoryFunc(ctx, referenceID, kind)
	}
	return []*entity.Approval{}, nil
}

func (m *mockEngine) CancelApproval(ctx context.Context, approvalID, userID, reason string) (*entity.Approval, error) {
	return nil, workflow.ErrNotFound
}

type mockRenderer struct {
	exportFunc func(ctx context.Context, approvals []*entity.Approval) ([]byte, error)
}

func (m *mockRenderer) Export(ctx context.Context, approvals []*entity.Approval) ([]byte, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, approvals)
	}
	return []byte("xlsx"), nil
}
