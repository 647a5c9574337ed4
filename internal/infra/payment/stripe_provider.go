package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go"
	stripeclient "github.com/stripe/stripe-go/client"
	"github.com/stripe/stripe-go/webhook"

	"saas-payments/internal/config"
	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
)

// stripeAPI abstracts the Stripe SDK operations this provider needs, so unit
// tests can substitute a fake without network access.
type stripeAPI interface {
	NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ConstructEvent(payload []byte, sigHeader string, secret string) (stripe.Event, error)
}

type stripeSDK struct{ api *stripeclient.API }

func (s stripeSDK) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return s.api.CheckoutSessions.New(params)
}

func (s stripeSDK) GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return s.api.CheckoutSessions.Get(id, params)
}

func (s stripeSDK) ConstructEvent(payload []byte, sigHeader string, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, secret)
}

var _ adapter.PaymentProvider = (*StripeProvider)(nil)

// StripeProvider adapts the commercial card processor. Session creation is
// synchronous; the logical id is the Stripe-issued session id. Callback
// authentication is the keyed signature over the raw request body that the
// SDK's webhook package verifies.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	planIDs       map[string]string // UPPERCASED plan id -> stripe plan id (recurring only)
	plans         *model.PlanRegistry
	api           stripeAPI
}

func NewStripeProvider(cfg config.StripeConfig, plans *model.PlanRegistry) *StripeProvider {
	p := &StripeProvider{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		planIDs:       cfg.PlanIDs,
		plans:         plans,
	}
	if cfg.SecretKey != "" {
		p.api = stripeSDK{api: stripeclient.New(cfg.SecretKey, nil)}
	}
	return p
}

func (g *StripeProvider) Name() model.ProviderType { return model.ProviderStripe }

func (g *StripeProvider) IsConfigured() bool {
	if g.secretKey == "" || g.webhookSecret == "" {
		return false
	}
	for _, p := range g.plans.List() {
		if p.BillingType == model.BillingRecurring {
			if _, ok := g.planIDs[strings.ToUpper(p.ID)]; !ok {
				return false
			}
		}
	}
	return true
}

func (g *StripeProvider) ListSupportedPlans() []*model.Plan {
	var out []*model.Plan
	for _, p := range g.plans.List() {
		if p.BillingType == model.BillingRecurring {
			if _, ok := g.planIDs[strings.ToUpper(p.ID)]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func (g *StripeProvider) CreateCheckoutSession(ctx context.Context, params model.CheckoutParams) (*model.CheckoutSession, error) {
	plan, err := g.plans.FindByID(params.PlanID)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		"account_id":   params.AccountID,
		"plan_id":      plan.ID,
		"credit_grant": strconv.FormatInt(plan.CreditGrant, 10),
		"billing_type": string(plan.BillingType),
		"provider":     string(model.ProviderStripe),
	}

	sp := &stripe.CheckoutSessionParams{
		SuccessURL:         stripe.String(params.SuccessURL),
		CancelURL:          stripe.String(params.CancelURL),
		CustomerEmail:      stripe.String(params.AccountEmail),
		ClientReferenceID:  stripe.String(params.AccountID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	sp.Context = ctx
	for k, v := range meta {
		sp.AddMetadata(k, v)
	}

	switch plan.BillingType {
	case model.BillingOneTime:
		sp.Mode = stripe.String("payment")
		sp.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Name:     stripe.String(plan.Name),
			Amount:   stripe.Int64(plan.PriceMinorUnits),
			Currency: stripe.String("usd"),
			Quantity: stripe.Int64(1),
		}}
	case model.BillingRecurring:
		stripePlanID, ok := g.planIDs[strings.ToUpper(plan.ID)]
		if !ok {
			return nil, fmt.Errorf("plan %s has no stripe plan mapping: %w", plan.ID, domain.ErrProviderNotConfigured)
		}
		sp.Mode = stripe.String("subscription")
		sp.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Items: []*stripe.CheckoutSessionSubscriptionDataItemsParams{{Plan: stripe.String(stripePlanID)}},
		}
		for k, v := range meta {
			sp.SubscriptionData.AddMetadata(k, v)
		}
	}

	s, err := g.api.NewSession(sp)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %v: %w", err, domain.ErrUpstreamFailure)
	}

	return &model.CheckoutSession{
		LogicalID:   s.ID,
		RedirectURL: "https://checkout.stripe.com/pay/" + s.ID,
		Provider:    model.ProviderStripe,
		Metadata:    meta,
	}, nil
}

func (g *StripeProvider) VerifyPayment(ctx context.Context, logicalID string) (*model.VerificationResult, error) {
	if logicalID == "" {
		return nil, domain.ErrInvalidArgument
	}

	gp := &stripe.CheckoutSessionParams{}
	gp.Context = ctx
	gp.AddExpand("payment_intent")
	gp.AddExpand("subscription")

	s, err := g.api.GetSession(logicalID, gp)
	if err != nil {
		return nil, fmt.Errorf("stripe session fetch: %v: %w", err, domain.ErrUpstreamFailure)
	}

	res := &model.VerificationResult{LogicalID: s.ID}
	res.AccountID = s.Metadata["account_id"]
	res.PlanID = s.Metadata["plan_id"]
	res.CreditGrant, _ = strconv.ParseInt(s.Metadata["credit_grant"], 10, 64)
	res.BillingType = model.BillingType(s.Metadata["billing_type"])
	if res.PlanID != "" && res.CreditGrant == 0 {
		if plan, perr := g.plans.FindByID(res.PlanID); perr == nil {
			res.CreditGrant = plan.CreditGrant
			res.BillingType = plan.BillingType
		}
	}

	switch {
	case s.Subscription != nil:
		st := s.Subscription.Status
		res.Succeeded = st == stripe.SubscriptionStatusActive || st == stripe.SubscriptionStatusTrialing
		if s.Subscription.Plan != nil {
			res.AmountMinorUnits = s.Subscription.Plan.Amount
			res.Currency = string(s.Subscription.Plan.Currency)
		}
		if !res.Succeeded {
			res.FailureReason = "subscription status " + string(st)
		}
	case s.PaymentIntent != nil:
		res.Succeeded = s.PaymentIntent.Status == stripe.PaymentIntentStatusSucceeded
		res.AmountMinorUnits = s.PaymentIntent.Amount
		res.Currency = string(s.PaymentIntent.Currency)
		if !res.Succeeded {
			res.FailureReason = "payment intent status " + string(s.PaymentIntent.Status)
		}
	default:
		res.FailureReason = "session has no payment attached"
	}
	return res, nil
}

// HandleCallback verifies the Stripe-Signature header over the raw body, then
// normalizes the event. Events whose account/plan cannot be attributed from
// metadata are ignored rather than guessed.
func (g *StripeProvider) HandleCallback(ctx context.Context, payload []byte, signature string) (*model.CallbackEvent, error) {
	ev, err := g.api.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, nil
	}

	switch ev.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, nil
		}
		return &model.CallbackEvent{
			EventID:    ev.ID,
			Type:       model.EventCheckoutCompleted,
			Provider:   model.ProviderStripe,
			LogicalID:  cs.ID,
			AccountID:  cs.Metadata["account_id"],
			PlanID:     cs.Metadata["plan_id"],
			RawPayload: payload,
		}, nil

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv struct {
			ID            string `json:"id"`
			BillingReason string `json:"billing_reason"`
			Lines         struct {
				Data []struct {
					Metadata map[string]string `json:"metadata"`
				} `json:"data"`
			} `json:"lines"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, nil
		}
		var meta map[string]string
		if len(inv.Lines.Data) > 0 {
			meta = inv.Lines.Data[0].Metadata
		}
		if meta["account_id"] == "" {
			// Cannot attribute the invoice to an account; ignore.
			return nil, nil
		}
		typ := model.EventSubscriptionRenewed
		if ev.Type == "invoice.payment_failed" {
			typ = model.EventPaymentFailed
		} else if inv.BillingReason == "subscription_create" {
			// First invoice of a subscription; the checkout.session.completed
			// event already credits the activation.
			return nil, nil
		}
		return &model.CallbackEvent{
			EventID:    ev.ID,
			Type:       typ,
			Provider:   model.ProviderStripe,
			LogicalID:  inv.ID,
			AccountID:  meta["account_id"],
			PlanID:     meta["plan_id"],
			RawPayload: payload,
		}, nil

	case "customer.subscription.deleted":
		var sub struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, nil
		}
		if sub.Metadata["account_id"] == "" {
			return nil, nil
		}
		return &model.CallbackEvent{
			EventID:    ev.ID,
			Type:       model.EventSubscriptionCancelled,
			Provider:   model.ProviderStripe,
			LogicalID:  sub.ID,
			AccountID:  sub.Metadata["account_id"],
			PlanID:     sub.Metadata["plan_id"],
			RawPayload: payload,
		}, nil
	}
	return nil, nil
}
