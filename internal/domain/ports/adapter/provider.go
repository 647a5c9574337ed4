package adapter

import (
	"context"

	"saas-payments/internal/domain/model"
)

// PaymentProvider is the hex port every payment backend implements. Backend
// selection is a closed set of model.ProviderType variants, not inheritance.
type PaymentProvider interface {
	Name() model.ProviderType

	// CreateCheckoutSession opens a provider-side checkout and returns its
	// logical id plus the redirect URL. Implementations must reject unknown
	// plan ids and must embed enough metadata (account id, plan id, credit
	// grant, billing type, provider name) in the session that verification
	// needs no side database lookup. No local state is mutated.
	CreateCheckoutSession(ctx context.Context, params model.CheckoutParams) (*model.CheckoutSession, error)

	// VerifyPayment fetches the payment status for a logical id. It is
	// idempotent and never mutates account or ledger state.
	VerifyPayment(ctx context.Context, logicalID string) (*model.VerificationResult, error)

	// HandleCallback authenticates a raw webhook payload against the
	// provider's signing scheme and normalizes it into the closed event set.
	// Payloads that fail authentication or are not recognized yield
	// (nil, nil) so the boundary can acknowledge without acting.
	HandleCallback(ctx context.Context, payload []byte, signature string) (*model.CallbackEvent, error)

	// ListSupportedPlans returns the subset of the plan table this backend
	// can actually sell (e.g. plans with an external product mapping).
	ListSupportedPlans() []*model.Plan

	// IsConfigured is a pure function of configuration: false whenever
	// required secrets or plan-to-external-product mappings are absent.
	IsConfigured() bool
}

// ProviderStatus is one row of the enabled-provider listing.
type ProviderStatus struct {
	Type       model.ProviderType
	Configured bool
}

// ProviderResolver selects and caches configured backend instances.
type ProviderResolver interface {
	// Resolve returns the backend for the requested type, or the configured
	// default when requested is empty. Unconfigured backends fall back to
	// the simulated provider (one level, never cyclic).
	Resolve(requested model.ProviderType) (PaymentProvider, error)
	ListAvailable() []ProviderStatus
	ClearCache()
}
