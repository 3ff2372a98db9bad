package modal

import "time"

// Customer mirrors the customers table owned by the persistence layer.
type Customer struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	IsSuspended      bool       `json:"isSuspended"`
	SuspensionReason string     `json:"suspensionReason,omitempty"`
	SuspendedAt      *time.Time `json:"suspendedAt,omitempty"`
	ReinstatedAt     *time.Time `json:"reinstatedAt,omitempty"`
	LastModifiedBy   string     `json:"lastModifiedBy,omitempty"`
}

type AuditEntry struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customerId"`
	Action         string    `json:"action"`
	PerformedBy    string    `json:"performedBy"`
	Notes          string    `json:"notes,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Timestamp      time.Time `json:"timestamp"`
}
