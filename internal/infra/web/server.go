package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"callcenter-billing/internal/infra/logging"
	"callcenter-billing/internal/usecase"
)

// Server exposes the orchestrator operations plus the gateway webhook
// endpoint. Everything else (CRUD screens, session auth, telephony) lives
// outside this service.
type Server struct {
	payUC  usecase.PaymentUseCase
	subUC  usecase.SubscriptionUseCase
	hookUC usecase.WebhookUseCase
	auth   *AuthManager
	log    *zerolog.Logger

	srv *http.Server
}

func NewServer(
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	hookUC usecase.WebhookUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{payUC: payUC, subUC: subUC, hookUC: hookUC, auth: auth, log: logger}
}

// Router builds the chi router for the service.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", s.createOrderHandler)
		r.Post("/orders/{orderID}/capture", s.captureOrderHandler)

		r.Post("/subscriptions", s.createSubscriptionHandler)
		r.Get("/subscriptions/{subscriptionID}", s.getSubscriptionHandler)
		r.Delete("/subscriptions/{subscriptionID}", s.cancelSubscriptionHandler)

		r.Post("/webhooks/paypal", s.webhookHandler)

		// Plan provisioning is an admin operation.
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/plans", s.createBillingPlanHandler)
		})
	})

	return r
}

// traceMiddleware tags every request context with a trace id so downstream
// log lines correlate. An inbound X-Request-Id is honored, otherwise one is
// generated, and either way it is echoed back to the caller.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Request-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
