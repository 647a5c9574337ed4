// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
	"saas-payments/internal/domain/ports/repository"
	"saas-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type CreateCheckoutInput struct {
	AccountID    string
	AccountEmail string
	PlanID       string
	Provider     model.ProviderType // optional explicit backend
	Locale       string
	SuccessURL   string
	CancelURL    string
}

// VerifyOutcome is the boundary-facing result of an active verification.
type VerifyOutcome struct {
	Succeeded        bool
	AlreadyProcessed bool
	FailureReason    string
	Result           *model.VerificationResult
	Reconciled       *ReconcileOutcome
}

// PaymentUseCase is the orchestration layer: it resolves a backend through
// the provider registry and delegates, owning no payment logic of its own
// beyond plan validation and the convergence of both completion paths on the
// reconciliation engine.
type PaymentUseCase interface {
	CreateCheckout(ctx context.Context, in CreateCheckoutInput) (*model.CheckoutSession, error)
	// Verify actively checks a session with its backend and, on success,
	// reconciles it. The caller must own the paid account.
	Verify(ctx context.Context, callerAccountID, logicalID string, providerHint model.ProviderType) (*VerifyOutcome, error)
	// HandleCallback authenticates and normalizes an asynchronous provider
	// notification, then reconciles actionable events. A nil outcome with a
	// nil error means the payload was acknowledged without action.
	HandleCallback(ctx context.Context, providerType model.ProviderType, payload []byte, signature string) (*ReconcileOutcome, error)
	ListPlans(ctx context.Context, providerHint model.ProviderType) ([]*model.Plan, error)
	ListProviders(ctx context.Context) []adapter.ProviderStatus
}

type paymentUC struct {
	resolver    adapter.ProviderResolver
	plans       *model.PlanRegistry
	payments    repository.PaymentRepository
	reconciler  ReconcileUseCase
	callTimeout time.Duration
	log         *zerolog.Logger
}

func NewPaymentUseCase(
	resolver adapter.ProviderResolver,
	plans *model.PlanRegistry,
	payments repository.PaymentRepository,
	reconciler ReconcileUseCase,
	callTimeout time.Duration,
	logger *zerolog.Logger,
) *paymentUC {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &paymentUC{
		resolver:    resolver,
		plans:       plans,
		payments:    payments,
		reconciler:  reconciler,
		callTimeout: callTimeout,
		log:         logger,
	}
}

func (u *paymentUC) CreateCheckout(ctx context.Context, in CreateCheckoutInput) (*model.CheckoutSession, error) {
	if in.AccountID == "" || in.SuccessURL == "" || in.CancelURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	// Validate the plan here, independent of backend-side validation.
	plan, err := u.plans.FindByID(in.PlanID)
	if err != nil {
		return nil, err
	}

	provider, err := u.resolver.Resolve(in.Provider)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	session, err := provider.CreateCheckoutSession(cctx, model.CheckoutParams{
		AccountID:    in.AccountID,
		AccountEmail: in.AccountEmail,
		PlanID:       plan.ID,
		Locale:       in.Locale,
		SuccessURL:   in.SuccessURL,
		CancelURL:    in.CancelURL,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrUpstreamFailure
		}
		return nil, err
	}

	now := time.Now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		AccountID:   in.AccountID,
		PlanID:      plan.ID,
		Provider:    provider.Name(),
		LogicalID:   session.LogicalID,
		Amount:      plan.PriceMinorUnits,
		Currency:    "usd",
		Status:      model.PaymentStatusPending,
		RedirectURL: session.RedirectURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}

	metrics.IncPayment(string(provider.Name()), "initiated")
	u.log.Info().
		Str("account_id", in.AccountID).
		Str("plan_id", plan.ID).
		Str("provider", string(provider.Name())).
		Str("session_id", session.LogicalID).
		Msg("checkout session created")
	return session, nil
}

func (u *paymentUC) Verify(ctx context.Context, callerAccountID, logicalID string, providerHint model.ProviderType) (*VerifyOutcome, error) {
	if callerAccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := validateSourceID(logicalID); err != nil {
		return nil, err
	}

	record, err := u.payments.FindByLogicalID(ctx, nil, logicalID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// A storage failure is not "no record": without the row, provider
		// resolution and ownership attribution would silently degrade.
		return nil, err
	}
	providerType := providerHint
	if providerType == "" && record != nil {
		providerType = record.Provider
	}
	provider, err := u.resolver.Resolve(providerType)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	res, err := provider.VerifyPayment(cctx, logicalID)
	if err != nil {
		// A timed-out or failed upstream call is retryable; it is never a
		// negative payment outcome.
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrUpstreamFailure
		}
		metrics.IncVerify(string(provider.Name()), "error")
		return nil, err
	}

	accountID := res.AccountID
	if accountID == "" && record != nil {
		accountID = record.AccountID
	}
	if accountID == "" {
		// Neither the provider nor a stored payment row attributes this
		// session to an account; it cannot be claimed by whoever verifies it.
		metrics.IncVerify(string(provider.Name()), "unattributable")
		return nil, domain.ErrInvalidArgument
	}
	if accountID != callerAccountID {
		metrics.IncVerify(string(provider.Name()), "ownership_mismatch")
		return nil, domain.ErrOwnershipMismatch
	}

	if !res.Succeeded {
		if record != nil {
			_ = u.payments.UpdateStatus(ctx, nil, record.ID, model.PaymentStatusFailed, nil)
		}
		metrics.IncVerify(string(provider.Name()), "failed")
		return &VerifyOutcome{Succeeded: false, FailureReason: res.FailureReason, Result: res}, nil
	}

	planID := res.PlanID
	if planID == "" && record != nil {
		planID = record.PlanID
	}
	outcome, err := u.reconciler.Apply(ctx, &model.PaymentEvent{
		Type:            model.EventCheckoutCompleted,
		Provider:        provider.Name(),
		AccountID:       accountID,
		PlanID:          planID,
		SourceLogicalID: res.LogicalID,
		CreditGrant:     res.CreditGrant,
		BillingType:     res.BillingType,
	})
	if err != nil {
		return nil, err
	}

	if record != nil && record.Status != model.PaymentStatusSucceeded {
		now := time.Now()
		_ = u.payments.UpdateStatus(ctx, nil, record.ID, model.PaymentStatusSucceeded, &now)
	}
	if outcome.Applied {
		metrics.AddPaymentRevenue(res.Currency, res.AmountMinorUnits)
		metrics.IncPayment(string(provider.Name()), "succeeded")
	}
	metrics.IncVerify(string(provider.Name()), "succeeded")
	return &VerifyOutcome{
		Succeeded:        true,
		AlreadyProcessed: outcome.AlreadyProcessed,
		Result:           res,
		Reconciled:       outcome,
	}, nil
}

func (u *paymentUC) HandleCallback(ctx context.Context, providerType model.ProviderType, payload []byte, signature string) (*ReconcileOutcome, error) {
	provider, err := u.resolver.Resolve(providerType)
	if err != nil {
		return nil, err
	}

	ev, err := provider.HandleCallback(ctx, payload, signature)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		metrics.IncWebhookEvent(string(provider.Name()), "ignored")
		return nil, nil
	}
	metrics.IncWebhookEvent(string(provider.Name()), string(ev.Type))

	pe, err := u.normalize(ctx, ev)
	if err != nil {
		u.log.Warn().
			Str("provider", string(provider.Name())).
			Str("event_id", ev.EventID).
			Err(err).
			Msg("callback event dropped: cannot attribute")
		return nil, nil
	}

	outcome, err := u.reconciler.Apply(ctx, pe)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySubscribed) {
			// Business rejection: acknowledged, never retried by the provider.
			u.log.Warn().
				Str("event_id", ev.EventID).
				Str("account_id", pe.AccountID).
				Msg("callback rejected by business rule")
			return nil, nil
		}
		return nil, err
	}

	if ev.Type == model.EventCheckoutCompleted && outcome.Applied {
		if record, ferr := u.payments.FindByLogicalID(ctx, nil, ev.LogicalID); ferr == nil && record != nil {
			now := time.Now()
			_ = u.payments.UpdateStatus(ctx, nil, record.ID, model.PaymentStatusSucceeded, &now)
		}
		metrics.IncPayment(string(provider.Name()), "succeeded")
	}
	return outcome, nil
}

// normalize fills the gaps a provider event may carry: account attribution
// via the stored payment row, grant/billing via the plan table.
func (u *paymentUC) normalize(ctx context.Context, ev *model.CallbackEvent) (*model.PaymentEvent, error) {
	pe := &model.PaymentEvent{
		Type:            ev.Type,
		Provider:        ev.Provider,
		AccountID:       ev.AccountID,
		PlanID:          ev.PlanID,
		SourceLogicalID: ev.LogicalID,
	}
	if pe.AccountID == "" || pe.PlanID == "" {
		if record, err := u.payments.FindByLogicalID(ctx, nil, ev.LogicalID); err == nil && record != nil {
			if pe.AccountID == "" {
				pe.AccountID = record.AccountID
			}
			if pe.PlanID == "" {
				pe.PlanID = record.PlanID
			}
		}
	}
	if pe.AccountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if pe.PlanID != "" {
		if plan, err := u.plans.FindByID(pe.PlanID); err == nil {
			pe.CreditGrant = plan.CreditGrant
			pe.BillingType = plan.BillingType
		}
	}
	return pe, nil
}

func (u *paymentUC) ListPlans(ctx context.Context, providerHint model.ProviderType) ([]*model.Plan, error) {
	provider, err := u.resolver.Resolve(providerHint)
	if err != nil {
		return nil, err
	}
	return provider.ListSupportedPlans(), nil
}

func (u *paymentUC) ListProviders(_ context.Context) []adapter.ProviderStatus {
	return u.resolver.ListAvailable()
}
