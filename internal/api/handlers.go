/**
 * @description
 * This file contains the HTTP handlers for the payment-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careernest/payment-service/internal/app"
	"github.com/careernest/payment-service/internal/domain"
	"github.com/careernest/payment-service/internal/store"
)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service *app.Service
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.Service) *PaymentHandlers {
	return &PaymentHandlers{service: service}
}

// ListServicesHandler returns the purchasable service catalog. An optional
// `currency` query parameter quotes prices in a supported MoMo market currency.
func (h *PaymentHandlers) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")

	services, err := h.service.ListServices(r.Context(), currency)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedCurrency) {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported currency %q", currency))
			return
		}
		log.Printf("level=error component=api endpoint=list_services err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list services")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

// PurchaseServiceHandler initiates a MoMo request-to-pay for a catalog service.
func (h *PaymentHandlers) PurchaseServiceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=purchase outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.ServiceID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}

	result, err := h.service.PurchaseService(r.Context(), userID, req)
	if err != nil {
		var rateLimited *app.RateLimitedError
		switch {
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many purchase attempts. Please try again shortly.")
		case errors.Is(err, app.ErrInvalidPhoneNumber):
			h.writeError(w, http.StatusBadRequest, "Invalid phone number")
		case errors.Is(err, store.ErrServiceNotFound):
			h.writeError(w, http.StatusNotFound, "Service not found")
		case errors.Is(err, app.ErrServiceInactive):
			h.writeError(w, http.StatusConflict, "Service is not available for purchase")
		case errors.Is(err, store.ErrDuplicateExternalID):
			h.writeError(w, http.StatusConflict, "Duplicate payment reference; please retry")
		default:
			log.Printf("level=error component=api endpoint=purchase user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusBadGateway, "Unable to initiate payment")
		}
		return
	}

	log.Printf("level=info component=api endpoint=purchase outcome=accepted user_id=%s transaction_id=%s", userID, result.TransactionID)
	h.writeJSON(w, http.StatusAccepted, result)
}

// VerifyPaymentHandler reconciles a payment attempt by its gateway reference id
// and reports the resulting status.
func (h *PaymentHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	referenceID := chi.URLParam(r, "referenceID")
	if _, err := uuid.Parse(referenceID); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid reference id")
		return
	}

	verification, err := h.service.VerifyPayment(r.Context(), referenceID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment not found")
			return
		}
		log.Printf("level=error component=api endpoint=verify_payment user_id=%s reference_id=%s err=%v", userID, referenceID, err)
		h.writeError(w, http.StatusBadGateway, "Unable to verify payment")
		return
	}

	h.writeJSON(w, http.StatusOK, verification)
}

// ListMyEntitlementsHandler returns every entitlement the caller has held.
func (h *PaymentHandlers) ListMyEntitlementsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	entitlements, err := h.service.ListUserEntitlements(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_entitlements user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list entitlements")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"entitlements": entitlements})
}

// CheckEntitlementHandler is the internal endpoint other services call before
// delivering a paid feature. Responds with the live entitlement or 404.
func (h *PaymentHandlers) CheckEntitlementHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user_id")
		return
	}
	serviceType := r.URL.Query().Get("service_type")
	if serviceType == "" {
		h.writeError(w, http.StatusBadRequest, "service_type is required")
		return
	}

	entitlement, err := h.service.HasActiveEntitlement(r.Context(), userID, serviceType)
	if err != nil {
		if errors.Is(err, store.ErrEntitlementNotFound) {
			h.writeError(w, http.StatusNotFound, "No active entitlement")
			return
		}
		log.Printf("level=error component=api endpoint=check_entitlement user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to check entitlement")
		return
	}

	h.writeJSON(w, http.StatusOK, entitlement)
}

// ConsumeEntitlementHandler records one use of an entitlement. Internal only.
func (h *PaymentHandlers) ConsumeEntitlementHandler(w http.ResponseWriter, r *http.Request) {
	entitlementID, err := uuid.Parse(chi.URLParam(r, "entitlementID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid entitlement id")
		return
	}

	entitlement, err := h.service.ConsumeEntitlement(r.Context(), entitlementID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEntitlementNotFound):
			h.writeError(w, http.StatusNotFound, "Entitlement not found")
		case errors.Is(err, store.ErrEntitlementExpired):
			h.writeError(w, http.StatusGone, "Entitlement has expired")
		case errors.Is(err, store.ErrEntitlementExhausted):
			h.writeError(w, http.StatusConflict, "Entitlement usage exhausted")
		case errors.Is(err, store.ErrEntitlementNotActive):
			h.writeError(w, http.StatusConflict, "Entitlement is not active")
		default:
			log.Printf("level=error component=api endpoint=consume_entitlement entitlement_id=%s err=%v", entitlementID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to consume entitlement")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, entitlement)
}

// DisburseHandler initiates a payout to a user's wallet. Internal only.
func (h *PaymentHandlers) DisburseHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DisbursementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.service.Disburse(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPhoneNumber):
			h.writeError(w, http.StatusBadRequest, "Invalid phone number")
		case errors.Is(err, app.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, "Invalid amount")
		default:
			log.Printf("level=error component=api endpoint=disburse user_id=%s err=%v", req.UserID, err)
			h.writeError(w, http.StatusBadGateway, "Unable to initiate disbursement")
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, result)
}

// AccountBalanceHandler returns the gateway balance for a scope. Internal only.
func (h *PaymentHandlers) AccountBalanceHandler(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	balance, err := h.service.GetAccountBalance(r.Context(), scope)
	if err != nil {
		if errors.Is(err, app.ErrUnknownScope) {
			h.writeError(w, http.StatusBadRequest, "Unknown scope")
			return
		}
		log.Printf("level=error component=api endpoint=account_balance scope=%s err=%v", scope, err)
		h.writeError(w, http.StatusBadGateway, "Unable to fetch account balance")
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

// ValidateAccountHolderHandler reports whether an MSISDN holds an active
// wallet. Internal only.
func (h *PaymentHandlers) ValidateAccountHolderHandler(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	msisdn := chi.URLParam(r, "msisdn")

	active, err := h.service.ValidateAccountHolder(r.Context(), scope, msisdn)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownScope):
			h.writeError(w, http.StatusBadRequest, "Unknown scope")
		case errors.Is(err, app.ErrInvalidPhoneNumber):
			h.writeError(w, http.StatusBadRequest, "Invalid phone number")
		default:
			log.Printf("level=error component=api endpoint=validate_account_holder scope=%s err=%v", scope, err)
			h.writeError(w, http.StatusBadGateway, "Unable to validate account holder")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
