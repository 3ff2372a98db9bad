package workflows

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"customer-action-service/internal/activities"
	"customer-action-service/internal/modal"
	"customer-action-service/internal/store"
)

// recorderNotifier captures notification payloads instead of sending them.
type recorderNotifier struct {
	mu       sync.Mutex
	approval []string
	outcomes []modal.WorkflowStatus
	timeouts int
}

func (r *recorderNotifier) NotifyApprovalNeeded(_ context.Context, _ modal.ActionRequest, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approval = append(r.approval, workflowID)
	return nil
}

func (r *recorderNotifier) NotifyOutcome(_ context.Context, _ modal.ActionRequest, outcome modal.WorkflowStatus, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *recorderNotifier) NotifyTimeout(_ context.Context, _ modal.ActionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts++
	return nil
}

type appliedCall struct {
	req      modal.ActionRequest
	decision modal.ApprovalDecision
	key      string
}

// fakeStore records apply calls; err, when set, is returned unchanged.
type fakeStore struct {
	mu      sync.Mutex
	applied []appliedCall
	err     error
}

func (f *fakeStore) ApplyAction(_ context.Context, req modal.ActionRequest, decision modal.ApprovalDecision, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, appliedCall{req: req, decision: decision, key: key})
	return nil
}

func newTestEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *recorderNotifier, *fakeStore) {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	rec := &recorderNotifier{}
	fs := &fakeStore{}
	env.RegisterWorkflow(CustomerAction)
	env.RegisterActivity(activities.New(fs, rec))
	return env, rec, fs
}

func validRequest() modal.ActionRequest {
	return modal.ActionRequest{
		CustomerID:  "CUST-1",
		Action:      modal.ActionSuspend,
		Reason:      "fraud",
		RequestedBy: "ops-1",
		RequestedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func decisionBy(reviewer string, approved bool) modal.ApprovalDecision {
	return modal.ApprovalDecision{
		Approved:    approved,
		ReviewedBy:  reviewer,
		ReviewNotes: "looked into it",
		ReviewedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCustomerAction_Approved(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusApproved, result)

	// Exactly one notification of each relevant kind, in order.
	assert.Len(t, rec.approval, 1)
	assert.Equal(t, []modal.WorkflowStatus{modal.StatusApproved}, rec.outcomes)
	assert.Zero(t, rec.timeouts)

	// Mutation applied once with the recorded decision.
	require.Len(t, fs.applied, 1)
	assert.Equal(t, "CUST-1", fs.applied[0].req.CustomerID)
	assert.Equal(t, modal.ActionSuspend, fs.applied[0].req.Action)
	assert.Equal(t, "manager-1", fs.applied[0].decision.ReviewedBy)
	assert.True(t, fs.applied[0].decision.Approved)
}

func TestCustomerAction_Rejected(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", false))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusRejected, result)

	assert.Empty(t, fs.applied, "rejection must not mutate the customer")
	assert.Equal(t, []modal.WorkflowStatus{modal.StatusRejected}, rec.outcomes)
	assert.Zero(t, rec.timeouts)
}

func TestCustomerAction_Timeout(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	// No signals at all; the test environment skips ahead past the deadline.
	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusTimedOut, result)

	assert.Equal(t, 1, rec.timeouts)
	assert.Empty(t, rec.outcomes, "timeout path must not send an outcome notification")
	assert.Empty(t, fs.applied)
}

func TestCustomerAction_Cancelled(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(CancelSignal, nil)
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusCancelled, result)

	assert.Equal(t, 1, rec.timeouts)
	assert.Empty(t, rec.outcomes)
	assert.Empty(t, fs.applied)
}

func TestCustomerAction_CancelBeforeDecision(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	// Cancel delivered first: the wait resolves on it and the decision
	// right behind it is received without effect.
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(CancelSignal, nil)
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusCancelled, result)
	assert.Empty(t, fs.applied, "cancellation must block the mutation")
	assert.Empty(t, rec.outcomes)
	assert.Equal(t, 1, rec.timeouts)
}

func TestCustomerAction_CancelAfterDecision(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	// Decision delivered first: the wait resolves on it and the trailing
	// cancel is a no-op — the already-resolved run does not re-evaluate.
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
		env.SignalWorkflow(CancelSignal, nil)
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusApproved, result)
	require.Len(t, fs.applied, 1)
	assert.Equal(t, []modal.WorkflowStatus{modal.StatusApproved}, rec.outcomes)
	assert.Zero(t, rec.timeouts)
}

func TestCustomerAction_DecisionAtDeadline(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	// A decision delivered right at the 48h boundary loses to the timer:
	// the run stays on the timeout path and nothing is applied.
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
	}, ApprovalTimeout)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusTimedOut, result)
	assert.Empty(t, fs.applied)
	assert.Empty(t, rec.outcomes)
	assert.Equal(t, 1, rec.timeouts)
}

func TestCustomerAction_SecondDecisionIgnored(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-2", false))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result modal.WorkflowStatus
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, modal.StatusApproved, result)

	require.Len(t, fs.applied, 1)
	assert.Equal(t, "manager-1", fs.applied[0].decision.ReviewedBy)
	assert.Equal(t, []modal.WorkflowStatus{modal.StatusApproved}, rec.outcomes)
}

func TestCustomerAction_StateQuery(t *testing.T) {
	env, _, _ := newTestEnv(t)
	req := validRequest()

	env.RegisterDelayedCallback(func() {
		qr, err := env.QueryWorkflow(StateQuery)
		require.NoError(t, err)
		var st modal.WorkflowState
		require.NoError(t, qr.Get(&st))
		assert.Equal(t, modal.StatusPending, st.Status)
		// Full request snapshot is retained at the workflow boundary.
		assert.Equal(t, req.CustomerID, st.CustomerID)
		assert.Equal(t, req.Action, st.Action)
		assert.Equal(t, req.Reason, st.Reason)
		assert.Equal(t, req.RequestedBy, st.RequestedBy)
		assert.Empty(t, st.ReviewedBy)

		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, req)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	qr, err := env.QueryWorkflow(StateQuery)
	require.NoError(t, err)
	var st modal.WorkflowState
	require.NoError(t, qr.Get(&st))
	assert.Equal(t, modal.StatusApproved, st.Status)
	assert.Equal(t, "manager-1", st.ReviewedBy)
	assert.Equal(t, "looked into it", st.ReviewNotes)
	require.NotNil(t, st.ReviewedAt)
}

func TestCustomerAction_StateQueryCancelled(t *testing.T) {
	env, _, _ := newTestEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(CancelSignal, nil)
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())
	require.True(t, env.IsWorkflowCompleted())

	qr, err := env.QueryWorkflow(StateQuery)
	require.NoError(t, err)
	var st modal.WorkflowState
	require.NoError(t, qr.Get(&st))
	assert.Equal(t, modal.StatusCancelled, st.Status)
}

func TestCustomerAction_AuditTrail(t *testing.T) {
	env, _, _ := newTestEnv(t)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())
	require.True(t, env.IsWorkflowCompleted())

	qr, err := env.QueryWorkflow(AuditQuery)
	require.NoError(t, err)
	var events []modal.AuditEvent
	require.NoError(t, qr.Get(&events))

	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"APPROVAL_REQUESTED", "DECISION_RECEIVED", "ACTION_APPLIED", "DONE"}, kinds)
}

func TestCustomerAction_InvalidRequest(t *testing.T) {
	env, rec, fs := newTestEnv(t)

	env.ExecuteWorkflow(CustomerAction, modal.ActionRequest{})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Validation", appErr.Type())
	assert.True(t, appErr.NonRetryable())

	assert.Empty(t, rec.approval, "no side effects before validation")
	assert.Empty(t, fs.applied)
}

func TestCustomerAction_ApplyFailureIsFatal(t *testing.T) {
	env, rec, fs := newTestEnv(t)
	fs.err = store.ErrCustomerNotFound

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
	}, time.Hour)

	env.ExecuteWorkflow(CustomerAction, validRequest())

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CustomerNotFound", appErr.Type())

	assert.Empty(t, rec.outcomes, "no outcome notification after a fatal apply")
}

func TestCustomerAction_Deterministic(t *testing.T) {
	// Same inputs and signal timing must produce the same result on every
	// execution; replay safety depends on it.
	var results []modal.WorkflowStatus
	for i := 0; i < 3; i++ {
		env, _, _ := newTestEnv(t)
		env.RegisterDelayedCallback(func() {
			env.SignalWorkflow(ApprovalSignal, decisionBy("manager-1", true))
		}, time.Hour)
		env.ExecuteWorkflow(CustomerAction, validRequest())
		require.NoError(t, env.GetWorkflowError())
		var result modal.WorkflowStatus
		require.NoError(t, env.GetWorkflowResult(&result))
		results = append(results, result)
	}
	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0], results[i])
	}
}
