package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type checkoutRequest struct {
	PlanID     string `json:"plan_id"`
	Provider   string `json:"provider,omitempty"`
	Locale     string `json:"locale,omitempty"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	Provider    string `json:"provider"`
}

func (s *Server) checkoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		session, err := s.paymentUC.CreateCheckout(r.Context(), usecase.CreateCheckoutInput{
			AccountID:    claims.AccountID,
			AccountEmail: claims.Email,
			PlanID:       req.PlanID,
			Provider:     model.ProviderType(req.Provider),
			Locale:       req.Locale,
			SuccessURL:   req.SuccessURL,
			CancelURL:    req.CancelURL,
		})
		if err != nil {
			s.writeDomainError(w, r, err, "checkout failed")
			return
		}

		writeJSON(w, http.StatusCreated, checkoutResponse{
			SessionID:   session.LogicalID,
			RedirectURL: session.RedirectURL,
			Provider:    string(session.Provider),
		})
	}
}

type verifyResponse struct {
	Succeeded        bool   `json:"succeeded"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	PlanID           string `json:"plan_id,omitempty"`
	CreditDelta      int64  `json:"credit_delta,omitempty"`
}

func (s *Server) verifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		providerHint := model.ProviderType(r.URL.Query().Get("provider"))

		out, err := s.paymentUC.Verify(r.Context(), claims.AccountID, sessionID, providerHint)
		if err != nil {
			s.writeDomainError(w, r, err, "verification failed")
			return
		}

		resp := verifyResponse{
			Succeeded:        out.Succeeded,
			AlreadyProcessed: out.AlreadyProcessed,
			FailureReason:    out.FailureReason,
		}
		if out.Result != nil {
			resp.PlanID = out.Result.PlanID
		}
		if out.Reconciled != nil {
			resp.CreditDelta = out.Reconciled.CreditDelta
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// webhookHandler acknowledges every authenticated-or-ignorable payload with
// 200 so providers stop retrying; only transport problems and processing
// failures earn an error status that triggers a redelivery.
func (s *Server) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerType := model.ProviderType(chi.URLParam(r, "provider"))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "cannot read body")
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			signature = r.Header.Get("X-Signature")
		}

		_, err = s.paymentUC.HandleCallback(r.Context(), providerType, body, signature)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrProviderNotEnabled), errors.Is(err, domain.ErrProviderNotConfigured):
				writeError(w, http.StatusNotFound, "unknown provider")
			case errors.Is(err, domain.ErrInvalidSignature):
				// Still 200: an attacker probing signatures learns nothing,
				// and a legitimate provider with rotated keys should not
				// retry forever. The rejection is logged upstream.
				writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			default:
				writeError(w, http.StatusInternalServerError, "processing failed")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

type planResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	CreditGrant     int64  `json:"credit_grant"`
	BillingType     string `json:"billing_type"`
}

func (s *Server) listPlansHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerHint := model.ProviderType(r.URL.Query().Get("provider"))
		plans, err := s.paymentUC.ListPlans(r.Context(), providerHint)
		if err != nil {
			s.writeDomainError(w, r, err, "cannot list plans")
			return
		}

		out := make([]planResponse, 0, len(plans))
		for _, p := range plans {
			out = append(out, planResponse{
				ID:              p.ID,
				Name:            p.Name,
				Description:     p.Description,
				PriceMinorUnits: p.PriceMinorUnits,
				CreditGrant:     p.CreditGrant,
				BillingType:     string(p.BillingType),
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"plans": out})
	}
}

type providerResponse struct {
	Type       string `json:"type"`
	Configured bool   `json:"configured"`
}

func (s *Server) listProvidersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := s.paymentUC.ListProviders(r.Context())
		out := make([]providerResponse, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, providerResponse{Type: string(st.Type), Configured: st.Configured})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"providers": out})
	}
}

// writeDomainError maps sentinel domain errors onto HTTP statuses. Anything
// unmapped is a 500 with a generic message; details stay in the log.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnknownPlan):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrOwnershipMismatch):
		writeError(w, http.StatusForbidden, "session belongs to another account")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, "account already has an active subscription")
	case errors.Is(err, domain.ErrProviderNotEnabled), errors.Is(err, domain.ErrProviderNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "payment provider unavailable")
	case errors.Is(err, domain.ErrUpstreamFailure):
		writeError(w, http.StatusBadGateway, "payment provider did not respond")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg(logMsg)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
