/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/padipay/wallet-service/internal/metrics"
)

// RouterConfig carries the secrets and limits the router wires into middleware.
type RouterConfig struct {
	JWTSecret                 string
	InternalAPIKey            string
	WebhookRateLimitPerMinute int
	VerifyRateLimitPerMinute  int
}

// WalletRoutes creates and returns the router for the wallet service.
func WalletRoutes(h *WalletHandlers, limiter RateLimiter, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler())

	// Gateway webhooks authenticate by signature, not by JWT.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter, "webhook", cfg.WebhookRateLimitPerMinute))
		r.Post("/wallet/webhook/{gateway}", h.WebhookHandler)
	})

	// User-facing endpoints require a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(cfg.JWTSecret))

		r.Post("/wallet/fund", h.FundWalletHandler)
		r.Get("/wallet/balance", h.GetBalanceHandler)
		r.Get("/wallet/transactions", h.ListTransactionsHandler)
		r.Post("/wallet/virtual-account", h.ReserveVirtualAccountHandler)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(limiter, "verify", cfg.VerifyRateLimitPerMinute))
			r.Get("/wallet/verify/{reference}", h.VerifyPaymentHandler)
		})
	})

	// Service-to-service reconciliation endpoints.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(cfg.InternalAPIKey))

		r.Get("/internal/reconciliation/audit/{userID}", h.AuditUserHandler)
		r.Post("/internal/reconciliation/run", h.ReconcileHandler)
		r.Post("/internal/reconciliation/retry-credits", h.RetryCreditsHandler)
	})

	return r
}
