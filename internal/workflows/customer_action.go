package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"customer-action-service/internal/modal"
)

const TaskQueue = "CUSTOMER_ACTION_TASK_QUEUE"

const (
	ApprovalSignal = "APPROVAL_DECISION_SIGNAL"
	CancelSignal   = "CANCEL_REQUEST_SIGNAL"
)

const (
	StateQuery = "state"
	AuditQuery = "audit_log"
)

// ApprovalTimeout bounds how long a request waits for a reviewer decision.
const ApprovalTimeout = 48 * time.Hour

type workflowState struct {
	Request   modal.ActionRequest     `json:"request"`
	Decision  *modal.ApprovalDecision `json:"decision,omitempty"`
	Cancelled bool                    `json:"cancelled"`
	TimedOut  bool                    `json:"timedOut"`
	Audit     []modal.AuditEvent      `json:"audit,omitempty"`
}

// CustomerAction runs one approval round for a suspend/reinstate request:
// notify the managers, wait up to ApprovalTimeout for a decision or a
// cancellation, apply the action if approved, and notify the requester of
// the outcome. Timeout and cancellation share a dedicated notification and
// skip the outcome one.
func CustomerAction(ctx workflow.Context, req modal.ActionRequest) (modal.WorkflowStatus, error) {
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)
	logger.Info("workflow started", "customerID", req.CustomerID, "action", req.Action)

	state := &workflowState{
		Request: req,
		Audit:   make([]modal.AuditEvent, 0),
	}

	appendAudit := func(kind, message string, data map[string]any) {
		state.Audit = append(state.Audit, modal.AuditEvent{
			At:      workflow.Now(ctx),
			Kind:    kind,
			Message: message,
			Data:    data,
		})
	}

	// Queries for the API to read current state without an extra DB.
	// Registered before anything can fail so a snapshot is always served.
	_ = workflow.SetQueryHandler(ctx, StateQuery, func() (modal.WorkflowState, error) {
		return modal.NewWorkflowState(state.Request, state.Decision, state.Cancelled, state.TimedOut), nil
	})

	_ = workflow.SetQueryHandler(ctx, AuditQuery, func() ([]modal.AuditEvent, error) {
		return state.Audit, nil
	})

	// The API validates before starting a run; this guards direct starts.
	if err := req.Validate(); err != nil {
		return "", temporal.NewNonRetryableApplicationError("invalid action request", "Validation", err)
	}

	// Retry policy for the notification activities. Transient failures stay
	// inside the retry budget; an exhausted budget fails the run.
	notifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	if err := workflow.ExecuteActivity(notifyCtx, "SendApprovalNotification", req, info.WorkflowExecution.ID).Get(ctx, nil); err != nil {
		logger.Error("approval notification failed", "error", err)
		return "", err
	}
	appendAudit("APPROVAL_REQUESTED", "approval notification sent to managers", map[string]any{
		"workflowId": info.WorkflowExecution.ID,
	})

	// Signal handlers run on the workflow's cooperative scheduler, so state
	// is only ever mutated from this single logical thread. Deliveries after
	// the race has resolved are received and dropped: they must never fail
	// the sender or re-open a settled request.
	resolved := false

	decisionCh := workflow.GetSignalChannel(ctx, ApprovalSignal)
	cancelCh := workflow.GetSignalChannel(ctx, CancelSignal)

	workflow.Go(ctx, func(gctx workflow.Context) {
		for {
			var d modal.ApprovalDecision
			decisionCh.Receive(gctx, &d)
			if resolved || state.Decision != nil {
				continue
			}
			state.Decision = &d
			appendAudit("DECISION_RECEIVED", "approval decision received", map[string]any{
				"approved":   d.Approved,
				"reviewedBy": d.ReviewedBy,
			})
		}
	})
	workflow.Go(ctx, func(gctx workflow.Context) {
		for {
			cancelCh.Receive(gctx, nil)
			if resolved || state.Cancelled {
				continue
			}
			state.Cancelled = true
			appendAudit("CANCELLED", "cancellation received from requester", nil)
		}
	})

	// Three-way race: decision signal vs cancel signal vs deadline,
	// whichever is delivered first. The condition re-evaluates after every
	// signal delivery; the timer is dropped once a signal resolves the
	// wait.
	signalled, err := workflow.AwaitWithTimeout(ctx, ApprovalTimeout, func() bool {
		return state.Decision != nil || state.Cancelled
	})
	if err != nil {
		return "", err
	}
	resolved = true
	if !signalled {
		state.TimedOut = true
		appendAudit("TIMED_OUT", "approval deadline elapsed", nil)
	}

	// Timed out or cancelled: dedicated notification, no apply, no outcome
	// notification on this path.
	if !signalled || state.Cancelled {
		status := modal.ComputeStatus(state.Decision, state.Cancelled, state.TimedOut)
		if err := workflow.ExecuteActivity(notifyCtx, "SendTimeoutNotification", req).Get(ctx, nil); err != nil {
			logger.Error("timeout notification failed", "error", err)
			return "", err
		}
		appendAudit("CLOSED", "request closed without review outcome", map[string]any{"status": status})
		logger.Info("workflow completed without review", "status", status)
		return status, nil
	}

	if state.Decision.Approved {
		// The mutating activity gets a longer budget for transactional work.
		applyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 5 * time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    1 * time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    time.Minute,
				MaximumAttempts:    5,
			},
		})
		if err := workflow.ExecuteActivity(applyCtx, "ApplyCustomerAction", req, *state.Decision, info.WorkflowExecution.ID).Get(ctx, nil); err != nil {
			logger.Error("apply action failed", "error", err)
			return "", err
		}
		appendAudit("ACTION_APPLIED", "customer action applied", map[string]any{"action": req.Action})
	}

	outcome := modal.StatusRejected
	if state.Decision.Approved {
		outcome = modal.StatusApproved
	}
	if err := workflow.ExecuteActivity(notifyCtx, "SendOutcomeNotification", req, outcome, state.Decision.ReviewNotes).Get(ctx, nil); err != nil {
		logger.Error("outcome notification failed", "error", err)
		return "", err
	}
	appendAudit("DONE", "outcome notification sent", map[string]any{"status": outcome})
	logger.Info("workflow completed", "status", outcome)
	return outcome, nil
}
