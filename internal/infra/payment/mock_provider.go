package payment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
)

const (
	mockSessionPrefix = "mock_session_"

	// demoPlanID backs the fixed verification outcome of the simulated
	// provider, which keeps no ledger of the sessions it issued.
	demoPlanID = "credits_100"
)

var _ adapter.PaymentProvider = (*MockProvider)(nil)

// MockProvider is the no-cost simulated backend for development and tests.
// It never leaves the process and is always configured. Verification
// reproduces fixed demo values instead of the session's real parameters; the
// commercial backends must not copy that shortcut.
type MockProvider struct {
	plans *model.PlanRegistry
}

func NewMockProvider(plans *model.PlanRegistry) *MockProvider {
	return &MockProvider{plans: plans}
}

func (m *MockProvider) Name() model.ProviderType { return model.ProviderMock }

func (m *MockProvider) IsConfigured() bool { return true }

func (m *MockProvider) ListSupportedPlans() []*model.Plan { return m.plans.List() }

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params model.CheckoutParams) (*model.CheckoutSession, error) {
	plan, err := m.plans.FindByID(params.PlanID)
	if err != nil {
		return nil, err
	}

	logicalID := mockSessionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	redirect := params.SuccessURL
	if strings.Contains(redirect, model.SessionIDPlaceholder) {
		redirect = strings.ReplaceAll(redirect, model.SessionIDPlaceholder, logicalID)
	}

	return &model.CheckoutSession{
		LogicalID:   logicalID,
		RedirectURL: redirect,
		Provider:    model.ProviderMock,
		Metadata: map[string]string{
			"account_id":   params.AccountID,
			"plan_id":      plan.ID,
			"billing_type": string(plan.BillingType),
		},
	}, nil
}

func (m *MockProvider) VerifyPayment(ctx context.Context, logicalID string) (*model.VerificationResult, error) {
	if !strings.HasPrefix(logicalID, mockSessionPrefix) {
		return nil, domain.ErrInvalidArgument
	}

	plan, err := m.plans.FindByID(demoPlanID)
	if err != nil {
		// Demo plan not in the table; fall back to the first configured plan.
		all := m.plans.List()
		if len(all) == 0 {
			return nil, domain.ErrUnknownPlan
		}
		plan = all[0]
	}

	return &model.VerificationResult{
		Succeeded:        true,
		LogicalID:        logicalID,
		PlanID:           plan.ID,
		CreditGrant:      plan.CreditGrant,
		BillingType:      plan.BillingType,
		AmountMinorUnits: plan.PriceMinorUnits,
		Currency:         "usd",
	}, nil
}

type mockCallbackPayload struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`
	PlanID    string `json:"plan_id"`
}

// HandleCallback accepts JSON payloads with a "mock." event prefix. There is
// no signing scheme for the simulated backend; payloads that do not look like
// mock events are ignored rather than rejected.
func (m *MockProvider) HandleCallback(ctx context.Context, payload []byte, signature string) (*model.CallbackEvent, error) {
	var p mockCallbackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil
	}
	if !strings.HasPrefix(p.Event, "mock.") || p.SessionID == "" {
		return nil, nil
	}

	var typ model.EventType
	switch strings.TrimPrefix(p.Event, "mock.") {
	case "checkout_completed":
		typ = model.EventCheckoutCompleted
	case "subscription_renewed":
		typ = model.EventSubscriptionRenewed
	case "subscription_cancelled":
		typ = model.EventSubscriptionCancelled
	case "payment_failed":
		typ = model.EventPaymentFailed
	default:
		return nil, nil
	}

	return &model.CallbackEvent{
		EventID:    p.SessionID + ":" + p.Event,
		Type:       typ,
		Provider:   model.ProviderMock,
		LogicalID:  p.SessionID,
		AccountID:  p.AccountID,
		PlanID:     p.PlanID,
		RawPayload: payload,
	}, nil
}
