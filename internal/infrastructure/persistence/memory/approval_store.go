package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// ApprovalStore is an in-memory ApprovalRepository. Every read and write
// copies, so callers never alias stored approvals.
type ApprovalStore struct {
	mu        sync.RWMutex
	approvals map[string]*entity.Approval
	order     map[string]int64
	seq       int64
}

// NewApprovalStore creates an empty store
func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{
		approvals: make(map[string]*entity.Approval),
		order:     make(map[string]int64),
	}
}

func (s *ApprovalStore) Create(_ context.Context, approval *entity.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.approvals[approval.ID]; exists {
		return fmt.Errorf("%w: approval %q already exists", workflow.ErrConflict, approval.ID)
	}

	approval.Version = 1
	stored := approval.Clone()
	stored.SortSteps()
	s.approvals[approval.ID] = stored
	s.seq++
	s.order[approval.ID] = s.seq
	return nil
}

func (s *ApprovalStore) GetByID(_ context.Context, id string) (*entity.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approval, exists := s.approvals[id]
	if !exists {
		return nil, fmt.Errorf("%w: approval %q", workflow.ErrNotFound, id)
	}
	return approval.Clone(), nil
}

// Update replaces the stored approval when versions match
func (s *ApprovalStore) Update(_ context.Context, approval *entity.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.approvals[approval.ID]
	if !exists {
		return fmt.Errorf("%w: approval %q", workflow.ErrNotFound, approval.ID)
	}
	if existing.Version != approval.Version {
		return fmt.Errorf("%w: approval %q version conflict (expected %d, got %d)",
			workflow.ErrConflict, approval.ID, approval.Version, existing.Version)
	}

	approval.Version++
	stored := approval.Clone()
	// Identity fields are immutable after create
	stored.CreatedAt = existing.CreatedAt
	stored.CreatedBy = existing.CreatedBy
	s.approvals[approval.ID] = stored
	return nil
}

func (s *ApprovalStore) ListByReference(_ context.Context, referenceID, kind string) ([]*entity.Approval, error) {
	return s.list(func(a *entity.Approval) bool {
		return a.ReferenceID == referenceID && a.Kind == kind
	}), nil
}

func (s *ApprovalStore) ListPendingForApprover(_ context.Context, userID string) ([]*entity.Approval, error) {
	return s.list(func(a *entity.Approval) bool {
		return a.Status == entity.ApprovalStatusPending && a.PendingStepFor(userID) != nil
	}), nil
}

// list returns matching copies, newest first
func (s *ApprovalStore) list(match func(*entity.Approval) bool) []*entity.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entity.Approval, 0)
	for _, a := range s.approvals {
		if match(a) {
			result = append(result, a.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return s.order[result[i].ID] > s.order[result[j].ID]
	})
	return result
}

// TxManager runs fn directly; the memory stores apply each write atomically
type TxManager struct{}

func (TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
