package model

type ProviderType string

const (
	ProviderStripe       ProviderType = "stripe"
	ProviderLemonSqueezy ProviderType = "lemonsqueezy"
	ProviderMock         ProviderType = "mock"
)

// SessionIDPlaceholder is the unresolved template token some providers accept
// in success URLs. It must never be treated as a real session identifier.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutParams is the provider-neutral input for session creation.
type CheckoutParams struct {
	AccountID    string
	AccountEmail string
	PlanID       string
	Locale       string
	SuccessURL   string // may contain SessionIDPlaceholder
	CancelURL    string
}

// CheckoutSession is the ephemeral result of a session-creation call. The
// logical id plus the owning provider is sufficient to verify the payment
// later; nothing else about the session is relied upon.
type CheckoutSession struct {
	LogicalID   string
	RedirectURL string
	Provider    ProviderType
	Metadata    map[string]string
}

// VerificationResult is the read-only outcome of verifying one payment.
// It is the sole input to reconciliation on the synchronous path.
type VerificationResult struct {
	Succeeded        bool
	LogicalID        string
	AccountID        string // empty when the provider did not round-trip it
	PlanID           string
	CreditGrant      int64
	BillingType      BillingType
	AmountMinorUnits int64
	Currency         string
	FailureReason    string
}

type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout.completed"
	EventSubscriptionRenewed   EventType = "subscription.renewed"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventPaymentFailed         EventType = "payment.failed"
)

// CallbackEvent is an inbound asynchronous notification, normalized into the
// closed event set above. Providers return nil for payloads they do not
// recognize or cannot authenticate.
type CallbackEvent struct {
	EventID    string
	Type       EventType
	Provider   ProviderType
	LogicalID  string
	AccountID  string
	PlanID     string
	RawPayload []byte
}

// PaymentEvent is the single normalized input of the reconciliation engine;
// both the verify path and the callback path converge on it.
type PaymentEvent struct {
	Type            EventType
	Provider        ProviderType
	AccountID       string
	PlanID          string
	SourceLogicalID string
	CreditGrant     int64
	BillingType     BillingType
}
