package workflow

import "fmt"

var approvalBuilder = newApprovalBuilder()

func newApprovalBuilder() StateMachineBuilder {
	builder := NewBuilder()

	// Advancing keeps the approval pending; only the stage pointer moves.
	builder.Configure(StatePending).
		Permit(TriggerAdvance, StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	builder.Configure(StateApproved)
	builder.Configure(StateRejected)
	builder.Configure(StateCancelled)

	return builder
}

// NewApprovalMachine returns a machine positioned at the given approval status
func NewApprovalMachine(status string) (StateMachine, error) {
	state := State(status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	return approvalBuilder.Build(state), nil
}

// Transition validates firing trigger from status and returns the resulting status
func Transition(status string, trigger Trigger) (string, error) {
	machine, err := NewApprovalMachine(status)
	if err != nil {
		return "", err
	}
	if err := machine.Fire(trigger); err != nil {
		return "", err
	}
	return machine.State().String(), nil
}
