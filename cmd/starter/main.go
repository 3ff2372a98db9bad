package main

import (
	"context"
	"flag"
	"log"
	"time"

	"customer-action-service/internal/modal"
	"customer-action-service/internal/store"
	"customer-action-service/internal/workflows"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Demo/testing starter: seeds a customer row, submits an action request and
// optionally plays the reviewer so the run completes immediately. The real
// entry point is cmd/api.
func main() {
	var (
		temporalHost string
		dbPath       string
		customerID   string
		customerName string
		action       string
		reason       string
		requestedBy  string
		decide       string
		reviewer     string
	)
	flag.StringVar(&temporalHost, "temporal", "localhost:7233", "temporal frontend host:port")
	flag.StringVar(&dbPath, "db", "customer-actions.db", "sqlite database path (must match the worker)")
	flag.StringVar(&customerID, "customer", "CUST-123", "customer id")
	flag.StringVar(&customerName, "name", "Demo Customer", "customer name used when seeding")
	flag.StringVar(&action, "action", "SUSPEND", "action kind: SUSPEND or REINSTATE")
	flag.StringVar(&reason, "reason", "fraud investigation", "request reason")
	flag.StringVar(&requestedBy, "requested-by", "ops-agent", "requesting operator")
	flag.StringVar(&decide, "decide", "", "auto-decide after start: approve, reject or empty to leave pending")
	flag.StringVar(&reviewer, "reviewer", "demo-manager", "reviewer used with -decide")
	flag.Parse()

	// Seed the customer record so an approved action has something to mutate.
	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		log.Fatalf("unable to open store: %v", err)
	}
	if err := st.CreateCustomer(context.Background(), customerID, customerName); err != nil {
		log.Fatalf("unable to seed customer: %v", err)
	}
	st.Close()

	c, err := client.Dial(client.Options{HostPort: temporalHost})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	req := modal.ActionRequest{
		CustomerID:  customerID,
		Action:      modal.ActionKind(action),
		Reason:      reason,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	opts := client.StartWorkflowOptions{
		ID:                                       "customer-action-" + customerID + "-" + uuid.NewString(),
		TaskQueue:                                workflows.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	we, err := c.ExecuteWorkflow(ctx, opts, workflows.CustomerAction, req)
	if err != nil {
		log.Fatalf("unable to execute workflow: %v", err)
	}
	log.Printf("started workflow: WorkflowID=%s RunID=%s\n", we.GetID(), we.GetRunID())

	if decide == "" {
		log.Printf("request left pending; approve or cancel it via the api")
		return
	}

	decision := modal.ApprovalDecision{
		Approved:    decide == "approve",
		ReviewedBy:  reviewer,
		ReviewNotes: "decided by starter",
		ReviewedAt:  time.Now().UTC(),
	}
	if err := c.SignalWorkflow(ctx, we.GetID(), we.GetRunID(), workflows.ApprovalSignal, decision); err != nil {
		log.Fatalf("unable to signal workflow: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel2()

	var result modal.WorkflowStatus
	if err := we.Get(ctx2, &result); err != nil {
		log.Fatalf("unable to get workflow result: %v", err)
	}
	log.Printf("workflow result: %s\n", result)
}
