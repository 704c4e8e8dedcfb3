/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/careernest/payment-service/internal/obs"
)

// PaymentRoutes creates and returns a new router for the payment service.
func PaymentRoutes(h *PaymentHandlers, jwtSecret, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(obs.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", obs.Handler())

	// Public catalog listing; no authentication required.
	r.Get("/services", h.ListServicesHandler)

	// Group routes that require user authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/services/purchase", h.PurchaseServiceHandler)
		r.Post("/services/verify-payment/{referenceID}", h.VerifyPaymentHandler)
		r.Get("/services/mine", h.ListMyEntitlementsHandler)
	})

	// Group routes for trusted service-to-service calls.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Get("/internal/entitlements/check", h.CheckEntitlementHandler)
		r.Post("/internal/entitlements/{entitlementID}/consume", h.ConsumeEntitlementHandler)
		r.Post("/internal/disbursements", h.DisburseHandler)
		r.Get("/internal/balance/{scope}", h.AccountBalanceHandler)
		r.Get("/internal/accountholder/{scope}/{msisdn}", h.ValidateAccountHolderHandler)
	})

	return r
}
