package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"saas-payments/internal/config"
	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*LemonSqueezyProvider)(nil)

// LemonSqueezyProvider adapts the SaaS-billing processor. Configuration is
// plan-keyed: every sellable plan needs a pre-provisioned variant id, looked
// up by UPPERCASED plan id. The provider's custom-data channel is known to
// silently drop structured fields, so every checkout also carries a
// self-issued request token that the provider echoes back; token parsing is
// the fallback attribution path.
type LemonSqueezyProvider struct {
	apiKey        string
	storeID       string
	signingSecret string
	baseURL       string
	variantIDs    map[string]string // UPPERCASED plan id -> variant id
	plans         *model.PlanRegistry
	client        *http.Client
	now           func() time.Time
}

func NewLemonSqueezyProvider(cfg config.LemonSqueezyConfig, plans *model.PlanRegistry) *LemonSqueezyProvider {
	return &LemonSqueezyProvider{
		apiKey:        cfg.APIKey,
		storeID:       cfg.StoreID,
		signingSecret: cfg.SigningSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		variantIDs:    cfg.VariantIDs,
		plans:         plans,
		client:        &http.Client{},
		now:           time.Now,
	}
}

func (g *LemonSqueezyProvider) Name() model.ProviderType { return model.ProviderLemonSqueezy }

func (g *LemonSqueezyProvider) IsConfigured() bool {
	return g.apiKey != "" && g.storeID != "" && g.signingSecret != "" && len(g.variantIDs) > 0
}

func (g *LemonSqueezyProvider) ListSupportedPlans() []*model.Plan {
	var out []*model.Plan
	for _, p := range g.plans.List() {
		if _, ok := g.variantIDs[strings.ToUpper(p.ID)]; ok {
			out = append(out, p)
		}
	}
	return out
}

type lsCheckoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (g *LemonSqueezyProvider) CreateCheckoutSession(ctx context.Context, params model.CheckoutParams) (*model.CheckoutSession, error) {
	plan, err := g.plans.FindByID(params.PlanID)
	if err != nil {
		return nil, err
	}
	variantID, ok := g.variantIDs[strings.ToUpper(plan.ID)]
	if !ok {
		return nil, fmt.Errorf("plan %s has no variant mapping: %w", plan.ID, domain.ErrProviderNotConfigured)
	}

	token := EncodeRequestToken(params.AccountID, plan.ID, g.now())
	body := map[string]any{
		"data": map[string]any{
			"type": "checkouts",
			"attributes": map[string]any{
				"checkout_data": map[string]any{
					"email": params.AccountEmail,
					"custom": map[string]any{
						"account_id":    params.AccountID,
						"plan_id":       plan.ID,
						"credit_grant":  fmt.Sprintf("%d", plan.CreditGrant),
						"billing_type":  string(plan.BillingType),
						"provider":      string(model.ProviderLemonSqueezy),
						"request_token": token,
					},
				},
				"product_options": map[string]any{
					"redirect_url": params.SuccessURL,
				},
			},
			"relationships": map[string]any{
				"store":   map[string]any{"data": map[string]any{"type": "stores", "id": g.storeID}},
				"variant": map[string]any{"data": map[string]any{"type": "variants", "id": variantID}},
			},
		},
	}

	var resp lsCheckoutResponse
	if err := g.do(ctx, http.MethodPost, "/v1/checkouts", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("lemonsqueezy: %s: %w", resp.Errors[0].Detail, domain.ErrUpstreamFailure)
	}
	if resp.Data.ID == "" || resp.Data.Attributes.URL == "" {
		return nil, fmt.Errorf("lemonsqueezy: empty checkout response: %w", domain.ErrUpstreamFailure)
	}

	return &model.CheckoutSession{
		LogicalID:   resp.Data.ID,
		RedirectURL: resp.Data.Attributes.URL,
		Provider:    model.ProviderLemonSqueezy,
		Metadata:    map[string]string{"request_token": token, "variant_id": variantID},
	}, nil
}

type lsOrderResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status       string            `json:"status"` // pending|paid|failed|refunded
			Total        int64             `json:"total"`
			Currency     string            `json:"currency"`
			CustomData   map[string]string `json:"custom_data"`
			RequestToken string            `json:"request_token"`
		} `json:"attributes"`
	} `json:"data"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (g *LemonSqueezyProvider) VerifyPayment(ctx context.Context, logicalID string) (*model.VerificationResult, error) {
	if logicalID == "" {
		return nil, domain.ErrInvalidArgument
	}

	var resp lsOrderResponse
	if err := g.do(ctx, http.MethodGet, "/v1/checkouts/"+logicalID+"/order", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("lemonsqueezy: %s: %w", resp.Errors[0].Detail, domain.ErrUpstreamFailure)
	}

	attrs := resp.Data.Attributes
	res := &model.VerificationResult{
		Succeeded:        attrs.Status == "paid",
		LogicalID:        logicalID,
		AmountMinorUnits: attrs.Total,
		Currency:         attrs.Currency,
	}
	if !res.Succeeded {
		res.FailureReason = "order status " + attrs.Status
	}

	g.attribute(res, attrs.CustomData, attrs.RequestToken)
	return res, nil
}

// attribute fills account/plan fields from structured custom data, falling
// back to the echoed request token when the structured channel dropped it.
func (g *LemonSqueezyProvider) attribute(res *model.VerificationResult, custom map[string]string, token string) {
	if custom != nil {
		res.AccountID = custom["account_id"]
		res.PlanID = custom["plan_id"]
		if token == "" {
			token = custom["request_token"]
		}
	}
	if (res.AccountID == "" || res.PlanID == "") && token != "" {
		if accountID, planID, err := ParseRequestToken(token); err == nil {
			if res.AccountID == "" {
				res.AccountID = accountID
			}
			if res.PlanID == "" {
				res.PlanID = planID
			}
		}
	}
	if res.PlanID != "" {
		if plan, err := g.plans.FindByID(res.PlanID); err == nil {
			res.CreditGrant = plan.CreditGrant
			res.BillingType = plan.BillingType
		}
	}
}

type lsWebhookPayload struct {
	Meta struct {
		EventName  string            `json:"event_name"`
		CustomData map[string]string `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutID   string `json:"checkout_id"`
			Identifier   string `json:"identifier"`
			RequestToken string `json:"request_token"`
		} `json:"attributes"`
	} `json:"data"`
}

// HandleCallback authenticates the raw body with the keyed signature from the
// X-Signature header (hex HMAC-SHA256) before trusting any field.
func (g *LemonSqueezyProvider) HandleCallback(ctx context.Context, payload []byte, signature string) (*model.CallbackEvent, error) {
	if !g.validSignature(payload, signature) {
		return nil, nil
	}

	var p lsWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil
	}

	var typ model.EventType
	switch p.Meta.EventName {
	case "order_created":
		typ = model.EventCheckoutCompleted
	case "subscription_payment_success":
		typ = model.EventSubscriptionRenewed
	case "subscription_cancelled", "subscription_expired":
		typ = model.EventSubscriptionCancelled
	case "subscription_payment_failed":
		typ = model.EventPaymentFailed
	default:
		return nil, nil
	}

	logicalID := p.Data.Attributes.CheckoutID
	if logicalID == "" {
		logicalID = p.Data.Attributes.Identifier
	}
	if logicalID == "" {
		logicalID = p.Data.ID
	}

	ev := &model.CallbackEvent{
		EventID:    p.Meta.EventName + ":" + p.Data.ID,
		Type:       typ,
		Provider:   model.ProviderLemonSqueezy,
		LogicalID:  logicalID,
		RawPayload: payload,
	}
	if p.Meta.CustomData != nil {
		ev.AccountID = p.Meta.CustomData["account_id"]
		ev.PlanID = p.Meta.CustomData["plan_id"]
	}
	if ev.AccountID == "" || ev.PlanID == "" {
		token := p.Data.Attributes.RequestToken
		if token == "" && p.Meta.CustomData != nil {
			token = p.Meta.CustomData["request_token"]
		}
		if token != "" {
			if accountID, planID, err := ParseRequestToken(token); err == nil {
				if ev.AccountID == "" {
					ev.AccountID = accountID
				}
				if ev.PlanID == "" {
					ev.PlanID = planID
				}
			}
		}
	}
	return ev, nil
}

func (g *LemonSqueezyProvider) validSignature(payload []byte, signature string) bool {
	if g.signingSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.signingSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func (g *LemonSqueezyProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("lemonsqueezy request failed: %v: %w", err, domain.ErrUpstreamFailure)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", domain.ErrUpstreamFailure)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("lemonsqueezy status %d: %w", resp.StatusCode, domain.ErrUpstreamFailure)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %v, body: %s: %w", err, string(raw), domain.ErrUpstreamFailure)
	}
	return nil
}
