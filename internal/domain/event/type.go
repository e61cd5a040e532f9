package event

// Type identifies the type of domain event
type Type string

const (
	TypeApprovalRequired  Type = "approval.required"
	TypeApprovalAdvanced  Type = "approval.advanced"
	TypeApprovalGranted   Type = "approval.granted"
	TypeApprovalRejected  Type = "approval.rejected"
	TypeApprovalCancelled Type = "approval.cancelled"
	TypeTaskAssigned      Type = "task.assigned"
)

// Payload keys carried by approval events
const (
	KeyApproverIDs        = "approver_ids"
	KeyCurrentApproverIDs = "current_approver_ids"
	KeyMaxLevel           = "max_level"
	KeyStepNumber         = "step_number"
	KeyUserID             = "user_id"
	KeyDecision           = "decision"
	KeyComments           = "comments"
	KeyCreatedBy          = "created_by"
	KeyScopeID            = "scope_id"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApprovalRequired,
		TypeApprovalAdvanced,
		TypeApprovalGranted,
		TypeApprovalRejected,
		TypeApprovalCancelled,
		TypeTaskAssigned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event closes an approval
func (t Type) IsTerminal() bool {
	return t == TypeApprovalGranted || t == TypeApprovalRejected || t == TypeApprovalCancelled
}
