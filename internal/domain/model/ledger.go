package model

import "time"

type LedgerKind string

const (
	LedgerCreditAdd             LedgerKind = "credit_add"
	LedgerSubscriptionActivated LedgerKind = "subscription_activated"
	LedgerSubscriptionRenewal   LedgerKind = "subscription_renewal"
	LedgerSubscriptionExpired   LedgerKind = "subscription_expired"
)

// LedgerEntry is the append-only audit and idempotency record of one credited
// payment event. (AccountID, SourceLogicalID) is unique: it is the guard that
// prevents double-crediting when the verify path races a callback delivery.
type LedgerEntry struct {
	ID              string // ULID, sortable by creation time
	AccountID       string
	Kind            LedgerKind
	CreditDelta     int64
	SourceLogicalID string // canonical provider-issued session/checkout id
	Metadata        map[string]string
	CreatedAt       time.Time
}
