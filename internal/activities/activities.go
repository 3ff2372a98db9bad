package activities

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.temporal.io/sdk/temporal"

	"customer-action-service/internal/modal"
	"customer-action-service/internal/store"
)

// CustomerStore is the slice of the persistence layer the activities need.
type CustomerStore interface {
	ApplyAction(ctx context.Context, req modal.ActionRequest, decision modal.ApprovalDecision, idempotencyKey string) error
}

// Notifier delivers the human-facing notifications. Tests substitute a
// recorder; production wires a messaging client here.
type Notifier interface {
	NotifyApprovalNeeded(ctx context.Context, req modal.ActionRequest, workflowID string) error
	NotifyOutcome(ctx context.Context, req modal.ActionRequest, outcome modal.WorkflowStatus, reviewNotes string) error
	NotifyTimeout(ctx context.Context, req modal.ActionRequest) error
}

// LogNotifier writes notifications to the process log. Stand-in for a real
// email/chat integration.
type LogNotifier struct{}

func (LogNotifier) NotifyApprovalNeeded(_ context.Context, req modal.ActionRequest, workflowID string) error {
	log.Printf("NOTIFICATION → manager approval required for %s of customer %s, requested by %s (reason: %s, workflow: %s)",
		req.Action, req.CustomerID, req.RequestedBy, req.Reason, workflowID)
	return nil
}

func (LogNotifier) NotifyOutcome(_ context.Context, req modal.ActionRequest, outcome modal.WorkflowStatus, reviewNotes string) error {
	log.Printf("NOTIFICATION → %s: your %s request for customer %s was %s (notes: %s)",
		req.RequestedBy, req.Action, req.CustomerID, outcome, reviewNotes)
	return nil
}

func (LogNotifier) NotifyTimeout(_ context.Context, req modal.ActionRequest) error {
	log.Printf("NOTIFICATION → %s request for customer %s by %s expired or was cancelled before review",
		req.Action, req.CustomerID, req.RequestedBy)
	return nil
}

type Activities struct {
	store    CustomerStore
	notifier Notifier
}

func New(st CustomerStore, n Notifier) *Activities {
	return &Activities{store: st, notifier: n}
}

// SendApprovalNotification tells the managers a decision is needed. The
// workflow ID rides along so the notification can deep-link to the approval
// endpoint.
func (a *Activities) SendApprovalNotification(ctx context.Context, req modal.ActionRequest, workflowID string) error {
	return a.notifier.NotifyApprovalNeeded(ctx, req, workflowID)
}

// ApplyCustomerAction performs the approved mutation. Safe under substrate
// redelivery: the store commits the flag mutation and audit entry together,
// keyed by the workflow ID so a retried delivery cannot duplicate the audit
// record. A missing customer is a business-invariant violation and fails the
// workflow without retries.
func (a *Activities) ApplyCustomerAction(ctx context.Context, req modal.ActionRequest, decision modal.ApprovalDecision, workflowID string) error {
	err := a.store.ApplyAction(ctx, req, decision, workflowID)
	if errors.Is(err, store.ErrCustomerNotFound) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("customer %s not found", req.CustomerID),
			"CustomerNotFound",
			err,
		)
	}
	return err
}

func (a *Activities) SendOutcomeNotification(ctx context.Context, req modal.ActionRequest, outcome modal.WorkflowStatus, reviewNotes string) error {
	return a.notifier.NotifyOutcome(ctx, req, outcome, reviewNotes)
}

func (a *Activities) SendTimeoutNotification(ctx context.Context, req modal.ActionRequest) error {
	return a.notifier.NotifyTimeout(ctx, req)
}
