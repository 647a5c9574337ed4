package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Account holds the billable state of a user account. The account subsystem
// owns the record; this core is the only writer of the credit and
// subscription fields, and only through the reconciliation engine.
type Account struct {
	ID    string // UUID
	Email string

	CreditBalance       int64 // permanent credits from one-time purchases
	SubscriptionCredits int64 // monthly credits, replaced wholesale on renewal

	SubscriptionStatus  SubscriptionStatus
	SubscriptionPlanID  string
	SubscriptionStartAt *time.Time
	SubscriptionEndAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveSubscription reports whether the account holds an unexpired active
// subscription at the given instant.
func (a *Account) HasActiveSubscription(now time.Time) bool {
	if a.SubscriptionStatus != SubscriptionStatusActive {
		return false
	}
	return a.SubscriptionEndAt != nil && a.SubscriptionEndAt.After(now)
}
