package entity

import (
	"fmt"
	"strings"
)

// Status constants for Approval
const (
	ApprovalStatusPending   = "pending"
	ApprovalStatusApproved  = "approved"
	ApprovalStatusRejected  = "rejected"
	ApprovalStatusCancelled = "cancelled"
)

// Status constants for Step
const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
)

// Workflow modes accepted at creation
const (
	WorkflowModeSequential  = "sequential"
	WorkflowModeParallel    = "parallel"
	WorkflowModeConditional = "conditional"
)

// Decision actions accepted by the engine
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

var approvalStatuses = map[string]bool{
	ApprovalStatusPending:   true,
	ApprovalStatusApproved:  true,
	ApprovalStatusRejected:  true,
	ApprovalStatusCancelled: true,
}

var stepStatuses = map[string]bool{
	StepStatusPending:  true,
	StepStatusApproved: true,
	StepStatusRejected: true,
}

var workflowModes = map[string]bool{
	WorkflowModeSequential:  true,
	WorkflowModeParallel:    true,
	WorkflowModeConditional: true,
}

// ParseApprovalStatus normalizes s and rejects values outside the allowed set
func ParseApprovalStatus(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if !approvalStatuses[v] {
		return "", fmt.Errorf("unknown approval status %q", s)
	}
	return v, nil
}

// ParseStepStatus normalizes s and rejects values outside the allowed set
func ParseStepStatus(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if !stepStatuses[v] {
		return "", fmt.Errorf("unknown step status %q", s)
	}
	return v, nil
}

// IsValidWorkflowMode reports whether mode is one of the declared modes
func IsValidWorkflowMode(mode string) bool {
	return workflowModes[mode]
}

// IsTerminalApprovalStatus reports whether no more decisions are accepted
func IsTerminalApprovalStatus(status string) bool {
	switch status {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusCancelled:
		return true
	default:
		return false
	}
}

// StepStatusForAction maps a decision action onto the resulting step status
func StepStatusForAction(action string) (string, bool) {
	switch action {
	case ActionApprove:
		return StepStatusApproved, true
	case ActionReject:
		return StepStatusRejected, true
	default:
		return "", false
	}
}
