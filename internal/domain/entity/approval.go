package entity

import (
	"sort"
	"time"
)

// Approval is one workflow instance attached to exactly one business entity.
// It owns its Steps: they are created with it and never outlive it.
//
// WorkflowMode is recorded as declared by the caller. Every mode advances
// the same way: a stage must be approved unanimously before the next
// higher step number becomes current.
type Approval struct {
	ID                string                 `json:"id"`
	ScopeID           string                 `json:"scope_id"`
	Kind              string                 `json:"kind"`
	ReferenceID       string                 `json:"reference_id"`
	WorkflowMode      string                 `json:"workflow_mode"`
	CurrentStepNumber int                    `json:"current_step_number"`
	Status            string                 `json:"status"`
	CreatedBy         string                 `json:"created_by"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
	Description       string                 `json:"description,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Steps             []Step                 `json:"steps"`

	// Version is bumped by the store on every successful update
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Step is one approver's slot within a numbered stage of an Approval.
// ApprovalID is a lookup key back to the owner, not an ownership edge.
type Step struct {
	ID            string                 `json:"id"`
	ApprovalID    string                 `json:"approval_id"`
	StepNumber    int                    `json:"step_number"`
	ApproverID    string                 `json:"approver_id"`
	ApproverRole  string                 `json:"approver_role,omitempty"`
	Status        string                 `json:"status"`
	DecidedAt     *time.Time             `json:"decided_at,omitempty"`
	Comments      string                 `json:"comments,omitempty"`
	SignatureData []byte                 `json:"signature_data,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// IsTerminal reports whether the approval can no longer change
func (a *Approval) IsTerminal() bool {
	return IsTerminalApprovalStatus(a.Status)
}

// StepsAt returns pointers into a.Steps for every step of the given stage
func (a *Approval) StepsAt(stepNumber int) []*Step {
	var steps []*Step
	for i := range a.Steps {
		if a.Steps[i].StepNumber == stepNumber {
			steps = append(steps, &a.Steps[i])
		}
	}
	return steps
}

// PendingStepFor returns the pending step of the current stage assigned to
// userID, or nil when the user has nothing to decide right now.
func (a *Approval) PendingStepFor(userID string) *Step {
	for _, step := range a.StepsAt(a.CurrentStepNumber) {
		if step.ApproverID == userID && step.Status == StepStatusPending {
			return step
		}
	}
	return nil
}

// StageApproved reports whether every step of the stage is approved.
// A stage without steps is never approved.
func (a *Approval) StageApproved(stepNumber int) bool {
	steps := a.StepsAt(stepNumber)
	if len(steps) == 0 {
		return false
	}
	for _, step := range steps {
		if step.Status != StepStatusApproved {
			return false
		}
	}
	return true
}

// NextStepNumber returns the smallest step number strictly greater than
// the current one. ok is false when the current stage is the last.
func (a *Approval) NextStepNumber() (next int, ok bool) {
	for _, step := range a.Steps {
		if step.StepNumber <= a.CurrentStepNumber {
			continue
		}
		if !ok || step.StepNumber < next {
			next = step.StepNumber
			ok = true
		}
	}
	return next, ok
}

// ApproverIDs returns every distinct approver in step order
func (a *Approval) ApproverIDs() []string {
	return distinctApprovers(a.Steps, func(Step) bool { return true })
}

// CurrentApproverIDs returns the approvers still pending at the current stage
func (a *Approval) CurrentApproverIDs() []string {
	return distinctApprovers(a.Steps, func(s Step) bool {
		return s.StepNumber == a.CurrentStepNumber && s.Status == StepStatusPending
	})
}

// SortSteps orders steps by stage, keeping insertion order inside a stage
func (a *Approval) SortSteps() {
	sort.SliceStable(a.Steps, func(i, j int) bool {
		return a.Steps[i].StepNumber < a.Steps[j].StepNumber
	})
}

// Clone returns a deep copy so callers cannot mutate stored state
func (a *Approval) Clone() *Approval {
	if a == nil {
		return nil
	}
	c := *a
	c.CompletedAt = cloneTime(a.CompletedAt)
	c.Metadata = cloneMap(a.Metadata)
	c.Steps = make([]Step, len(a.Steps))
	for i, s := range a.Steps {
		s.DecidedAt = cloneTime(s.DecidedAt)
		s.Metadata = cloneMap(s.Metadata)
		if s.SignatureData != nil {
			s.SignatureData = append([]byte(nil), s.SignatureData...)
		}
		c.Steps[i] = s
	}
	return &c
}

func distinctApprovers(steps []Step, keep func(Step) bool) []string {
	seen := make(map[string]bool, len(steps))
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		if !keep(s) || seen[s.ApproverID] {
			continue
		}
		seen[s.ApproverID] = true
		ids = append(ids, s.ApproverID)
	}
	return ids
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
