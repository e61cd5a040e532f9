package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// TaskStore keeps standalone tasks for the process lifetime
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*entity.UserTask
}

// NewTaskStore creates an empty task store
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*entity.UserTask)}
}

// Save inserts or replaces the task
func (s *TaskStore) Save(_ context.Context, task *entity.UserTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task id is required", workflow.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *TaskStore) Get(_ context.Context, id string) (*entity.UserTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", workflow.ErrNotFound, id)
	}
	return task.Clone(), nil
}

// Update runs mutate on a copy of the task and stores it only on success
func (s *TaskStore) Update(_ context.Context, id string, mutate func(*entity.UserTask) error) (*entity.UserTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", workflow.ErrNotFound, id)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.tasks[id] = next
	return next.Clone(), nil
}

// ListByAssignee returns the user's tasks oldest first
func (s *TaskStore) ListByAssignee(_ context.Context, userID string) ([]*entity.UserTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entity.UserTask, 0)
	for _, task := range s.tasks {
		if task.AssignedTo == userID {
			result = append(result, task.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
