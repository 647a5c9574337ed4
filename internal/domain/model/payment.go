package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // session created; awaiting verification
	PaymentStatusSucceeded PaymentStatus = "succeeded" // verified and reconciled
	PaymentStatusFailed    PaymentStatus = "failed"    // verification failed or provider reported failure
)

// Payment records one checkout attempt. It is bookkeeping around the core:
// reconciliation idempotency rests on the ledger, not on this row. The row
// feeds the stale-pending verify worker and provider resolution on verify.
type Payment struct {
	ID          string // UUID
	AccountID   string
	PlanID      string
	Provider    ProviderType
	LogicalID   string // provider-issued session/checkout id
	Amount      int64  // minor units
	Currency    string
	Status      PaymentStatus
	RedirectURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
}
