package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"saas-payments/internal/usecase"
)

type Server struct {
	paymentUC usecase.PaymentUseCase
	auth      *AuthManager
	log       *zerolog.Logger
}

func NewServer(paymentUC usecase.PaymentUseCase, auth *AuthManager, logger *zerolog.Logger) *Server {
	return &Server{
		paymentUC: paymentUC,
		auth:      auth,
		log:       logger,
	}
}

// Router builds the public HTTP surface. Webhooks are unauthenticated at the
// transport level; each provider adapter verifies its own signature.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/plans", s.listPlansHandler())
		r.Get("/providers", s.listProvidersHandler())
		r.Post("/webhooks/{provider}", s.webhookHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/checkout", s.checkoutHandler())
			r.Get("/verify", s.verifyHandler())
		})
	})

	return r
}

type ctxKey int

const claimsKey ctxKey = iota

// requireAuth rejects requests without a valid session token and stores the
// parsed claims on the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *AccountClaims {
	c, _ := ctx.Value(claimsKey).(*AccountClaims)
	return c
}
