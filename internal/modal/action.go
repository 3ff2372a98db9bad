package modal

import (
	"errors"
	"time"
)

// ActionRequest is the immutable input of one approval workflow run.
type ActionRequest struct {
	CustomerID  string     `json:"customerId"`
	Action      ActionKind `json:"action"`
	Reason      string     `json:"reason"`
	RequestedBy string     `json:"requestedBy"`
	RequestedAt time.Time  `json:"requestedAt"`
}

func (r ActionRequest) Validate() error {
	if r.CustomerID == "" {
		return errors.New("customerId is required")
	}
	if r.Action != ActionSuspend && r.Action != ActionReinstate {
		return errors.New("action must be SUSPEND or REINSTATE")
	}
	if r.Reason == "" {
		return errors.New("reason is required")
	}
	if r.RequestedBy == "" {
		return errors.New("requestedBy is required")
	}
	return nil
}

type ApprovalDecision struct {
	Approved    bool      `json:"approved"`
	ReviewedBy  string    `json:"reviewedBy"`
	ReviewNotes string    `json:"reviewNotes,omitempty"`
	ReviewedAt  time.Time `json:"reviewedAt"`
}

// WorkflowState is the read-only snapshot served by the state query.
type WorkflowState struct {
	CustomerID  string         `json:"customerId"`
	Action      ActionKind     `json:"action"`
	Reason      string         `json:"reason"`
	RequestedBy string         `json:"requestedBy"`
	RequestedAt time.Time      `json:"requestedAt"`
	Status      WorkflowStatus `json:"status"`
	ReviewedBy  string         `json:"reviewedBy,omitempty"`
	ReviewNotes string         `json:"reviewNotes,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewedAt,omitempty"`
}

// ComputeStatus derives the workflow status from the decision state.
// Cancellation wins over any recorded decision; a timed-out wait only
// reports TIMED_OUT when neither a decision nor a cancellation arrived.
func ComputeStatus(decision *ApprovalDecision, cancelled, timedOut bool) WorkflowStatus {
	switch {
	case cancelled:
		return StatusCancelled
	case decision != nil && decision.Approved:
		return StatusApproved
	case decision != nil:
		return StatusRejected
	case timedOut:
		return StatusTimedOut
	default:
		return StatusPending
	}
}

// NewWorkflowState projects the request plus decision state into a snapshot.
func NewWorkflowState(req ActionRequest, decision *ApprovalDecision, cancelled, timedOut bool) WorkflowState {
	st := WorkflowState{
		CustomerID:  req.CustomerID,
		Action:      req.Action,
		Reason:      req.Reason,
		RequestedBy: req.RequestedBy,
		RequestedAt: req.RequestedAt,
		Status:      ComputeStatus(decision, cancelled, timedOut),
	}
	if decision != nil {
		st.ReviewedBy = decision.ReviewedBy
		st.ReviewNotes = decision.ReviewNotes
		reviewedAt := decision.ReviewedAt
		st.ReviewedAt = &reviewedAt
	}
	return st
}

type AuditEvent struct {
	At      time.Time      `json:"at"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
