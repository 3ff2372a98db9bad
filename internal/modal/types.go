package modal

type ActionKind string

const (
	ActionSuspend   ActionKind = "SUSPEND"
	ActionReinstate ActionKind = "REINSTATE"
)

type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "PENDING"
	StatusApproved  WorkflowStatus = "APPROVED"
	StatusRejected  WorkflowStatus = "REJECTED"
	StatusCancelled WorkflowStatus = "CANCELLED"
	StatusTimedOut  WorkflowStatus = "TIMED_OUT"
)
