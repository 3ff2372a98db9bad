package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"customer-action-service/internal/modal"
)

// ErrCustomerNotFound is returned when an action targets an unknown customer.
var ErrCustomerNotFound = errors.New("customer not found")

type SQLite struct{ DB *sql.DB }

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{DB: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Init() error {
	stmts := []string{
		"PRAGMA foreign_keys = ON;",
		"CREATE TABLE IF NOT EXISTS customers (id TEXT PRIMARY KEY, name TEXT, is_suspended INTEGER NOT NULL DEFAULT 0, suspension_reason TEXT, suspended_at INTEGER, reinstated_at INTEGER, last_modified_by TEXT);",
		"CREATE TABLE IF NOT EXISTS audit_logs (id TEXT PRIMARY KEY, customer_id TEXT NOT NULL, action TEXT NOT NULL, performed_by TEXT NOT NULL, notes TEXT, idempotency_key TEXT NOT NULL, timestamp INTEGER NOT NULL);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_idempotency ON audit_logs(idempotency_key);",
	}
	for _, q := range stmts {
		if _, err := s.DB.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.DB.Close() }

func (s *SQLite) CreateCustomer(ctx context.Context, id, name string) error {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO customers(id,name) VALUES(?,?) ON CONFLICT(id) DO NOTHING", id, name)
	return err
}

func (s *SQLite) GetCustomer(ctx context.Context, id string) (modal.Customer, error) {
	var (
		c            modal.Customer
		suspended    int
		reason       sql.NullString
		suspendedAt  sql.NullInt64
		reinstatedAt sql.NullInt64
		modifiedBy   sql.NullString
	)
	err := s.DB.QueryRowContext(ctx,
		"SELECT id,name,is_suspended,suspension_reason,suspended_at,reinstated_at,last_modified_by FROM customers WHERE id=?", id).
		Scan(&c.ID, &c.Name, &suspended, &reason, &suspendedAt, &reinstatedAt, &modifiedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return modal.Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return modal.Customer{}, err
	}
	c.IsSuspended = suspended != 0
	c.SuspensionReason = reason.String
	c.LastModifiedBy = modifiedBy.String
	if suspendedAt.Valid {
		t := time.Unix(suspendedAt.Int64, 0).UTC()
		c.SuspendedAt = &t
	}
	if reinstatedAt.Valid {
		t := time.Unix(reinstatedAt.Int64, 0).UTC()
		c.ReinstatedAt = &t
	}
	return c, nil
}

// ApplyAction commits the suspend/reinstate mutation and its audit entry in
// one transaction. The idempotency key makes redelivery of the same logical
// call a no-op on the audit trail; the flag mutation itself is naturally
// idempotent for identical inputs.
func (s *SQLite) ApplyAction(ctx context.Context, req modal.ActionRequest, decision modal.ApprovalDecision, idempotencyKey string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM customers WHERE id=?", req.CustomerID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrCustomerNotFound, req.CustomerID)
	}

	now := time.Now().UTC().Unix()
	switch req.Action {
	case modal.ActionSuspend:
		_, err = tx.ExecContext(ctx,
			"UPDATE customers SET is_suspended=1, suspension_reason=?, suspended_at=?, reinstated_at=NULL, last_modified_by=? WHERE id=?",
			req.Reason, now, decision.ReviewedBy, req.CustomerID)
	case modal.ActionReinstate:
		_, err = tx.ExecContext(ctx,
			"UPDATE customers SET is_suspended=0, suspension_reason=NULL, reinstated_at=?, last_modified_by=? WHERE id=?",
			now, decision.ReviewedBy, req.CustomerID)
	default:
		return fmt.Errorf("unsupported action kind: %s", req.Action)
	}
	if err != nil {
		return err
	}

	notes := fmt.Sprintf("Request by %s: %s. Review notes: %s", req.RequestedBy, req.Reason, decision.ReviewNotes)
	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO audit_logs(id,customer_id,action,performed_by,notes,idempotency_key,timestamp) VALUES(?,?,?,?,?,?,?)",
		uuid.NewString(), req.CustomerID, string(req.Action)+"_APPLIED", decision.ReviewedBy, notes, idempotencyKey, now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) ListAuditEntries(ctx context.Context, customerID string) ([]modal.AuditEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id,customer_id,action,performed_by,notes,idempotency_key,timestamp FROM audit_logs WHERE customer_id=? ORDER BY timestamp", customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []modal.AuditEntry{}
	for rows.Next() {
		var (
			e     modal.AuditEntry
			notes sql.NullString
			ts    int64
		)
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Action, &e.PerformedBy, &notes, &e.IdempotencyKey, &ts); err != nil {
			return nil, err
		}
		e.Notes = notes.String
		e.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
