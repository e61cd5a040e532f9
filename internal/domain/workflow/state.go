package workflow

import "github.com/garyjia/approval-engine/internal/domain/entity"

// State is an approval lifecycle status as seen by the state machine
type State string

const (
	StatePending   State = State(entity.ApprovalStatusPending)
	StateApproved  State = State(entity.ApprovalStatusApproved)
	StateRejected  State = State(entity.ApprovalStatusRejected)
	StateCancelled State = State(entity.ApprovalStatusCancelled)
)

// IsTerminal returns true if no further transitions leave the state
func (s State) IsTerminal() bool {
	return s.IsValid() && s != StatePending
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known approval status. It reads
// no package variables, so it is safe to call from package initializers.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected, StateCancelled:
		return true
	default:
		return false
	}
}
