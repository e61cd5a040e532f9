package memory

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// NotificationStore is a per-user mailbox living for the process lifetime.
// Notifications are never deleted.
type NotificationStore struct {
	mu     sync.RWMutex
	byUser map[string][]*entity.Notification
	byID   map[string]*entity.Notification
	now    func() time.Time
}

// NewNotificationStore creates an empty mailbox
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		byUser: make(map[string][]*entity.Notification),
		byID:   make(map[string]*entity.Notification),
		now:    time.Now,
	}
}

func (s *NotificationStore) Append(_ context.Context, n *entity.Notification) error {
	stored := n.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[n.UserID] = append(s.byUser[n.UserID], stored)
	s.byID[n.ID] = stored
	return nil
}

// ListByUser walks the mailbox backwards so results are newest first
// regardless of the unread filter
func (s *NotificationStore) ListByUser(_ context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	box := s.byUser[userID]
	result := make([]*entity.Notification, 0, len(box))
	for i := len(box) - 1; i >= 0; i-- {
		if unreadOnly && box[i].Read {
			continue
		}
		result = append(result, box[i].Clone())
	}
	return result, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.Read {
		return false, nil
	}
	now := s.now()
	n.Read = true
	n.ReadAt = &now
	return true, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	marked := 0
	for _, n := range s.byUser[userID] {
		if n.Read {
			continue
		}
		n.Read = true
		readAt := now
		n.ReadAt = &readAt
		marked++
	}
	return marked, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.byUser[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
