package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"customer-action-service/internal/modal"
	"customer-action-service/internal/workflows"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

type submitReq struct {
	CustomerID  string `json:"customerId"`
	Action      string `json:"action"`
	Reason      string `json:"reason"`
	RequestedBy string `json:"requestedBy"`
}

type submitResp struct {
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
}

type approveReq struct {
	Approved    bool   `json:"approved"`
	ReviewedBy  string `json:"reviewedBy"`
	ReviewNotes string `json:"reviewNotes"`
}

func main() {
	var (
		temporalHost string
		listenAddr   string
	)
	flag.StringVar(&temporalHost, "temporal", "localhost:7233", "temporal frontend host:port")
	flag.StringVar(&listenAddr, "listen", ":8090", "http listen address")
	flag.Parse()

	tc, err := client.Dial(client.Options{HostPort: temporalHost})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer tc.Close()

	log.Printf("api listening on %s", listenAddr)
	log.Fatal(http.ListenAndServe(listenAddr, newRouter(tc)))
}

func newRouter(tc client.Client) *chi.Mux {
	r := chi.NewRouter()

	// Submit a suspension or reinstatement request for manager approval.
	// The workflow ID carries a random suffix, so duplicate submissions for
	// the same customer run as independent approval rounds. Whether such
	// duplicates should be serialized instead is a policy call left to the
	// caller for now.
	r.Post("/customer-actions", func(w http.ResponseWriter, r *http.Request) {
		var body submitReq
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body: {\"customerId\":\"...\",\"action\":\"SUSPEND|REINSTATE\",\"reason\":\"...\",\"requestedBy\":\"...\"}", http.StatusBadRequest)
			return
		}

		req := modal.ActionRequest{
			CustomerID:  body.CustomerID,
			Action:      modal.ActionKind(body.Action),
			Reason:      body.Reason,
			RequestedBy: body.RequestedBy,
			RequestedAt: time.Now().UTC(),
		}
		if err := req.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		wid := "customer-action-" + req.CustomerID + "-" + uuid.NewString()

		opts := client.StartWorkflowOptions{
			ID:                                       wid,
			TaskQueue:                                workflows.TaskQueue,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
			WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		we, err := tc.ExecuteWorkflow(ctx, opts, workflows.CustomerAction, req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(submitResp{WorkflowID: we.GetID(), RunID: we.GetRunID()})
	})

	// Poll the current workflow state.
	r.Get("/customer-actions/{workflowId}/state", func(w http.ResponseWriter, r *http.Request) {
		workflowID := chi.URLParam(r, "workflowId")

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		qr, err := tc.QueryWorkflow(ctx, workflowID, "", workflows.StateQuery)
		if err != nil {
			writeTemporalError(w, workflowID, err)
			return
		}

		var st modal.WorkflowState
		if err := qr.Get(&st); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, st)
	})

	// Read the in-workflow audit trail.
	r.Get("/customer-actions/{workflowId}/audit", func(w http.ResponseWriter, r *http.Request) {
		workflowID := chi.URLParam(r, "workflowId")

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		qr, err := tc.QueryWorkflow(ctx, workflowID, "", workflows.AuditQuery)
		if err != nil {
			writeTemporalError(w, workflowID, err)
			return
		}

		var events []modal.AuditEvent
		if err := qr.Get(&events); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, events)
	})

	// Manager approves or rejects a pending request.
	r.Post("/customer-actions/{workflowId}/approve", func(w http.ResponseWriter, r *http.Request) {
		workflowID := chi.URLParam(r, "workflowId")

		var body approveReq
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ReviewedBy == "" {
			http.Error(w, "invalid body: {\"approved\":true,\"reviewedBy\":\"...\",\"reviewNotes\":\"...\"}", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if !requireRunning(ctx, w, tc, workflowID) {
			return
		}

		decision := modal.ApprovalDecision{
			Approved:    body.Approved,
			ReviewedBy:  body.ReviewedBy,
			ReviewNotes: body.ReviewNotes,
			ReviewedAt:  time.Now().UTC(),
		}

		if err := tc.SignalWorkflow(ctx, workflowID, "", workflows.ApprovalSignal, decision); err != nil {
			writeTemporalError(w, workflowID, err)
			return
		}

		writeJSON(w, map[string]any{"workflowId": workflowID, "approved": body.Approved})
	})

	// Requester cancels their own pending request.
	r.Delete("/customer-actions/{workflowId}", func(w http.ResponseWriter, r *http.Request) {
		workflowID := chi.URLParam(r, "workflowId")

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if !requireRunning(ctx, w, tc, workflowID) {
			return
		}

		if err := tc.SignalWorkflow(ctx, workflowID, "", workflows.CancelSignal, nil); err != nil {
			writeTemporalError(w, workflowID, err)
			return
		}

		writeJSON(w, map[string]any{"workflowId": workflowID, "cancelled": true})
	})

	return r
}

// requireRunning distinguishes unknown workflows (404) from completed ones
// (409) before a signal is sent. A signal to a finished run must never
// surface as a server error to the caller.
func requireRunning(ctx context.Context, w http.ResponseWriter, tc client.Client, workflowID string) bool {
	desc, err := tc.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		writeTemporalError(w, workflowID, err)
		return false
	}
	if desc.GetWorkflowExecutionInfo().GetStatus() != enums.WORKFLOW_EXECUTION_STATUS_RUNNING {
		http.Error(w, "workflow "+workflowID+" is no longer active", http.StatusConflict)
		return false
	}
	return true
}

func writeTemporalError(w http.ResponseWriter, workflowID string, err error) {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		http.Error(w, "workflow "+workflowID+" not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
