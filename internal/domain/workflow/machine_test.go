package workflow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateCancelled, true},
		{State("in_review"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"cancelled", StateCancelled, true},
		{"removed in_review", State("in_review"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerAdvance.String(); got != "ADVANCE" {
		t.Errorf("Trigger.String() = %v, want %v", got, "ADVANCE")
	}
}

func TestErrPermissionDenied_IsInvalidAction(t *testing.T) {
	if !errors.Is(ErrPermissionDenied, ErrInvalidAction) {
		t.Error("ErrPermissionDenied should match ErrInvalidAction")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateConfiguration_PermitPanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Configure(StatePending).Permit(TriggerApprove, State("INVALID"))
}

func TestStateMachine_Fire_NoConfiguration(t *testing.T) {
	machine := NewBuilder().Build(StatePending)

	err := machine.Fire(TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StatePending {
		t.Errorf("State after failed Fire() = %v, want %v", machine.State(), StatePending)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerApprove, StateApproved)

	machine := builder.Build(StatePending)
	builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

	if err := machine.Fire(TriggerReject); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("machine built before Configure should not see later transitions, got %v", err)
	}
	if err := builder.Build(StatePending).Fire(TriggerReject); err != nil {
		t.Errorf("machine built after Configure should see the new transition, got %v", err)
	}
}

func TestStateConfiguration_PermitReplaces(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		Permit(TriggerCancel, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	machine := builder.Build(StatePending)
	if err := machine.Fire(TriggerCancel); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StateCancelled {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateCancelled)
	}
}

// The package-level approval machine is built during package
// initialization; every status must be usable from the first call.
func TestNewApprovalMachine_EveryStatus(t *testing.T) {
	for _, status := range []string{"pending", "approved", "rejected", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			machine, err := NewApprovalMachine(status)
			if err != nil {
				t.Fatalf("NewApprovalMachine(%q) failed: %v", status, err)
			}
			if machine.State().String() != status {
				t.Errorf("State() = %v, want %v", machine.State(), status)
			}
		})
	}

	if _, err := NewApprovalMachine("skipped"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewApprovalMachine(skipped) error = %v, want %v", err, ErrInvalidState)
	}
}

func TestApprovalMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		trigger Trigger
		want    string
		wantErr error
	}{
		{"advance keeps pending", "pending", TriggerAdvance, "pending", nil},
		{"approve", "pending", TriggerApprove, "approved", nil},
		{"reject", "pending", TriggerReject, "rejected", nil},
		{"cancel", "pending", TriggerCancel, "cancelled", nil},
		{"approved is terminal", "approved", TriggerReject, "", ErrInvalidTransition},
		{"rejected is terminal", "rejected", TriggerApprove, "", ErrInvalidTransition},
		{"cancelled is terminal", "cancelled", TriggerAdvance, "", ErrInvalidTransition},
		{"unknown status", "in_review", TriggerApprove, "", ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Transition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transition() = %v, want %v", got, tt.want)
			}
		})
	}
}
