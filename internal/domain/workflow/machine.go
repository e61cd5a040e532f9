package workflow

// StateMachine holds one approval's status and moves it along the
// transitions its builder permits
type StateMachine interface {
	// State returns the approval's current status
	State() State

	// Fire moves the approval to the status the trigger leads to. A trigger
	// with no transition from the current status is an ErrInvalidTransition
	// and leaves the status unchanged.
	Fire(trigger Trigger) error
}
