/**
 * @description
 * This file contains the core business logic for the payment-service. The `Service`
 * struct orchestrates all payment operations, coordinating between the database
 * repository, the MTN MoMo gateway client, and the message broker.
 *
 * Key features:
 * - Implements the main use cases: service purchases, payment verification and
 *   operator disbursements.
 * - Ensures ledger integrity by writing the transaction and its entitlement
 *   before any money movement is requested from the gateway.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/momoclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careernest/payment-service/internal/domain"
	"github.com/careernest/payment-service/internal/ids"
	"github.com/careernest/payment-service/internal/obs"
	"github.com/careernest/payment-service/internal/store"
	"github.com/careernest/payment-service/pkg/momoclient"
	"github.com/careernest/payment-service/pkg/rabbitmq"
)

var (
	ErrInvalidPhoneNumber  = errors.New("invalid phone number")
	ErrServiceInactive     = errors.New("service is not available for purchase")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownScope        = errors.New("unknown gateway scope")
	ErrPurchaseRateLimited = errors.New("purchase rate limit exceeded")
)

// RateLimitedError carries the retry hint alongside ErrPurchaseRateLimited.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("purchase rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

func (e *RateLimitedError) Unwrap() error { return ErrPurchaseRateLimited }

// Gateway abstracts the MoMo client so the service can be tested with stubs.
type Gateway interface {
	RequestToPay(ctx context.Context, payment domain.MoMoPayment) (string, error)
	Transfer(ctx context.Context, payment domain.MoMoPayment) (string, error)
	GetCollectionStatus(ctx context.Context, referenceID string) (*domain.GatewayTransactionStatus, error)
	GetDisbursementStatus(ctx context.Context, referenceID string) (*domain.GatewayTransactionStatus, error)
	GetAccountBalance(ctx context.Context, scope momoclient.Scope) (*domain.AccountBalance, error)
	ValidateAccountHolder(ctx context.Context, scope momoclient.Scope, msisdn string) (bool, error)
}

// RateLimiter throttles purchase attempts per user. A nil limiter disables
// throttling.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for payments.
type Service struct {
	repo          store.Repository
	gateway       Gateway
	eventProducer rabbitmq.Publisher
	rateLimiter   RateLimiter

	purchaseRateLimitPerMinute int

	// newExternalID generates the per-purchase idempotency key.
	newExternalID func() string
}

// NewService creates a new payment service instance.
func NewService(repo store.Repository, gateway Gateway, producer rabbitmq.Publisher, limiter RateLimiter, purchaseRateLimitPerMinute int) *Service {
	return &Service{
		repo:                       repo,
		gateway:                    gateway,
		eventProducer:              producer,
		rateLimiter:                limiter,
		purchaseRateLimitPerMinute: purchaseRateLimitPerMinute,
		newExternalID:              ids.NewExternalID,
	}
}

// catalogSeed defines the purchasable services. Prices are ZAR cents.
var catalogSeed = []domain.CatalogService{
	{
		Name:        "AI CV Generator",
		Description: "Generate a professional CV tailored to your target role.",
		Price:       5000,
		Currency:    domain.CurrencyZAR,
		ServiceType: domain.ServiceTypeCVGeneration,
		IsActive:    true,
	},
	{
		Name:        "AI Cover Letter Generator",
		Description: "Generate a personalized cover letter for a specific job posting.",
		Price:       5000,
		Currency:    domain.CurrencyZAR,
		ServiceType: domain.ServiceTypeCoverLetter,
		IsActive:    true,
	},
	{
		Name:        "Personalized Job Alerts",
		Description: "Daily job alerts matched to your profile for thirty days.",
		Price:       10000,
		Currency:    domain.CurrencyZAR,
		ServiceType: domain.ServiceTypeJobAlerts,
		IsActive:    true,
	},
}

// InitializeCatalog seeds the service catalog. Safe to run on every startup;
// existing entries are refreshed in place.
func (s *Service) InitializeCatalog(ctx context.Context) error {
	for _, seed := range catalogSeed {
		svc := seed
		svc.ID = uuid.New()
		if err := s.repo.UpsertCatalogService(ctx, &svc); err != nil {
			return fmt.Errorf("failed to seed service %s: %w", seed.ServiceType, err)
		}
	}
	return nil
}

// ListServices returns the purchasable catalog. When a currency code is given,
// prices are quoted in that currency using the fixed exchange table.
func (s *Service) ListServices(ctx context.Context, currency string) ([]domain.CatalogService, error) {
	services, err := s.repo.ListActiveCatalogServices(ctx)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || code == domain.CurrencyZAR {
		return services, nil
	}

	localized := make([]domain.CatalogService, 0, len(services))
	for _, svc := range services {
		converted, err := domain.ConvertFromZAR(svc.Price, code)
		if err != nil {
			return nil, err
		}
		svc.Price = converted
		svc.Currency = code
		localized = append(localized, svc)
	}
	return localized, nil
}

// PurchaseService charges a user for a catalog service via request-to-pay and
// records the pending entitlement. The ledger rows are written before the
// gateway is called so a gateway timeout can never orphan a charge.
func (s *Service) PurchaseService(ctx context.Context, userID uuid.UUID, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	msisdn, err := normalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	if s.rateLimiter != nil && s.purchaseRateLimitPerMinute > 0 {
		count, retryAfter, limitErr := s.rateLimiter.ConsumeRateLimit(ctx, "purchase", userID.String(), s.purchaseRateLimitPerMinute, time.Minute)
		if limitErr != nil {
			log.Printf("level=warn component=payment_service msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, limitErr)
		} else if count > s.purchaseRateLimitPerMinute {
			return nil, &RateLimitedError{RetryAfterSeconds: retryAfter}
		}
	}

	svc, err := s.repo.FindCatalogServiceByID(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, ErrServiceInactive
	}

	externalID := s.newExternalID()
	txRecord := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		ExternalID:   externalID,
		Type:         domain.TransactionTypeCollection,
		Purpose:      domain.PurposeForService(svc.ServiceType),
		Amount:       svc.Price,
		Currency:     svc.Currency,
		Status:       domain.StatusPending,
		PayerPartyID: &msisdn,
		Description:  svc.Name,
	}
	if err := s.repo.CreateTransaction(ctx, txRecord); err != nil {
		return nil, fmt.Errorf("failed to create transaction record: %w", err)
	}

	maxUsage, validity := domain.EntitlementTermsForType(svc.ServiceType)
	entitlement := &domain.ServiceEntitlement{
		ID:            uuid.New(),
		UserID:        userID,
		ServiceID:     svc.ID,
		TransactionID: txRecord.ID,
		ServiceType:   svc.ServiceType,
		Status:        domain.EntitlementPending,
		UsageCount:    0,
		MaxUsage:      maxUsage,
		ExpiresAt:     time.Now().Add(validity),
	}
	if err := s.repo.CreateEntitlement(ctx, entitlement); err != nil {
		if failErr := s.repo.MarkTransactionDispatchFailed(ctx, txRecord.ID, "entitlement creation failed"); failErr != nil {
			log.Printf("level=error component=payment_service msg=\"failed to terminate transaction after entitlement failure\" transaction_id=%s err=%v", txRecord.ID, failErr)
		}
		return nil, fmt.Errorf("failed to create entitlement record: %w", err)
	}

	payment := domain.MoMoPayment{
		Amount:       domain.FormatAmount(svc.Price),
		Currency:     svc.Currency,
		ExternalID:   externalID,
		Payer:        &domain.MoMoParty{PartyIDType: domain.PartyIDTypeMSISDN, PartyID: msisdn},
		PayerMessage: fmt.Sprintf("CareerNest: %s", svc.Name),
		PayeeNote:    txRecord.Purpose.String(),
	}
	referenceID, err := s.gateway.RequestToPay(ctx, payment)
	if err != nil {
		s.failDispatch(ctx, txRecord, fmt.Sprintf("gateway dispatch failed: %v", err))
		return nil, fmt.Errorf("momo request-to-pay failed: %w", err)
	}

	txRecord.MomoReferenceID = &referenceID
	if err := s.repo.AttachGatewayReference(ctx, txRecord.ID, referenceID); err != nil {
		// The charge is live at the gateway; without the reference id the
		// reconciliation sweep cannot resolve it.
		log.Printf("level=error component=payment_service msg=\"failed to attach gateway reference\" transaction_id=%s reference_id=%s err=%v", txRecord.ID, referenceID, err)
	}

	obs.ObservePaymentInitiated(txRecord.Type, txRecord.Purpose.String())
	s.publishPaymentEvent(ctx, rabbitmq.RoutingKeyPaymentInitiated, txRecord, referenceID)

	log.Printf("level=info component=payment_service msg=\"payment initiated\" transaction_id=%s external_id=%s reference_id=%s amount=%d", txRecord.ID, externalID, referenceID, svc.Price)
	return &domain.PurchaseResult{
		TransactionID: txRecord.ID,
		ReferenceID:   referenceID,
		ExternalID:    externalID,
		Status:        domain.StatusPending,
		Message:       "Payment initiated. Approve the request on your phone.",
	}, nil
}

// Disburse pushes money out to a user's wallet, e.g. for a refund.
func (s *Service) Disburse(ctx context.Context, req domain.DisbursementRequest) (*domain.PurchaseResult, error) {
	msisdn, err := normalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil || amount <= 0 {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.CurrencyZAR
	}

	externalID := s.newExternalID()
	txRecord := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       req.UserID,
		ExternalID:   externalID,
		Type:         domain.TransactionTypeDisbursement,
		Purpose:      domain.Purpose{Kind: domain.PurposeOther, Tag: "disbursement"},
		Amount:       amount,
		Currency:     currency,
		Status:       domain.StatusPending,
		PayeePartyID: &msisdn,
		Description:  req.Reason,
	}
	if err := s.repo.CreateTransaction(ctx, txRecord); err != nil {
		return nil, fmt.Errorf("failed to create transaction record: %w", err)
	}

	payment := domain.MoMoPayment{
		Amount:     domain.FormatAmount(amount),
		Currency:   currency,
		ExternalID: externalID,
		Payee:      &domain.MoMoParty{PartyIDType: domain.PartyIDTypeMSISDN, PartyID: msisdn},
		PayeeNote:  req.Reason,
	}
	referenceID, err := s.gateway.Transfer(ctx, payment)
	if err != nil {
		s.failDispatch(ctx, txRecord, fmt.Sprintf("gateway dispatch failed: %v", err))
		return nil, fmt.Errorf("momo transfer failed: %w", err)
	}

	txRecord.MomoReferenceID = &referenceID
	if err := s.repo.AttachGatewayReference(ctx, txRecord.ID, referenceID); err != nil {
		log.Printf("level=error component=payment_service msg=\"failed to attach gateway reference\" transaction_id=%s reference_id=%s err=%v", txRecord.ID, referenceID, err)
	}

	obs.ObservePaymentInitiated(txRecord.Type, txRecord.Purpose.String())
	s.publishPaymentEvent(ctx, rabbitmq.RoutingKeyPaymentInitiated, txRecord, referenceID)

	return &domain.PurchaseResult{
		TransactionID: txRecord.ID,
		ReferenceID:   referenceID,
		ExternalID:    externalID,
		Status:        domain.StatusPending,
		Message:       "Disbursement initiated.",
	}, nil
}

// VerifyPayment reconciles a payment attempt on demand and reports its state.
func (s *Service) VerifyPayment(ctx context.Context, referenceID string) (*domain.PaymentVerification, error) {
	txRecord, err := s.repo.FindTransactionByReferenceID(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	status := txRecord.Status
	if !domain.IsTerminalStatus(status) {
		status, err = s.ReconcileTransaction(ctx, txRecord)
		if err != nil {
			return nil, err
		}
	}

	return &domain.PaymentVerification{
		TransactionID: txRecord.ID,
		ReferenceID:   referenceID,
		Status:        status,
		Message:       verificationMessage(status),
	}, nil
}

// ReconcileTransaction polls the gateway for a pending transaction and applies
// the outcome to the ledger and entitlement. Returns the resulting ledger
// status; a still-pending payment is not an error.
func (s *Service) ReconcileTransaction(ctx context.Context, txRecord *domain.Transaction) (string, error) {
	if domain.IsTerminalStatus(txRecord.Status) {
		return txRecord.Status, nil
	}
	if txRecord.MomoReferenceID == nil {
		return "", fmt.Errorf("transaction %s has no gateway reference id", txRecord.ID)
	}
	referenceID := *txRecord.MomoReferenceID

	var gatewayStatus *domain.GatewayTransactionStatus
	var err error
	if txRecord.Type == domain.TransactionTypeDisbursement {
		gatewayStatus, err = s.gateway.GetDisbursementStatus(ctx, referenceID)
	} else {
		gatewayStatus, err = s.gateway.GetCollectionStatus(ctx, referenceID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch gateway status: %w", err)
	}

	newStatus, ok := domain.LedgerStatusForGateway(gatewayStatus.Status)
	if !ok {
		log.Printf("level=warn component=payment_service msg=\"unrecognized gateway status\" reference_id=%s status=%q", referenceID, gatewayStatus.Status)
		return domain.StatusPending, nil
	}
	if newStatus == domain.StatusPending {
		return domain.StatusPending, nil
	}

	var reason, financialTransactionID *string
	if gatewayStatus.Reason != "" {
		reason = &gatewayStatus.Reason
	}
	if gatewayStatus.FinancialTransactionID != "" {
		financialTransactionID = &gatewayStatus.FinancialTransactionID
	}

	if err := s.repo.UpdateTransactionStatus(ctx, referenceID, newStatus, reason, financialTransactionID); err != nil {
		if errors.Is(err, store.ErrTransactionFinalized) {
			// Another reconciler won the race; report what the ledger holds.
			current, findErr := s.repo.FindTransactionByReferenceID(ctx, referenceID)
			if findErr != nil {
				return "", findErr
			}
			return current.Status, nil
		}
		return "", fmt.Errorf("failed to update transaction status: %w", err)
	}

	txRecord.Status = newStatus
	txRecord.FailureReason = reason
	txRecord.FinancialTransactionID = financialTransactionID

	if txRecord.Purpose.IsServicePurchase() {
		s.settleEntitlement(ctx, txRecord, newStatus)
	}

	obs.ObservePaymentReconciled(newStatus)
	routingKey := rabbitmq.RoutingKeyPaymentFailed
	if newStatus == domain.StatusSuccessful {
		routingKey = rabbitmq.RoutingKeyPaymentSuccessful
	}
	s.publishPaymentEvent(ctx, routingKey, txRecord, referenceID)

	log.Printf("level=info component=payment_service msg=\"payment reconciled\" transaction_id=%s reference_id=%s status=%s", txRecord.ID, referenceID, newStatus)
	return newStatus, nil
}

// settleEntitlement promotes or fails the entitlement funded by a transaction
// that just reached a terminal status.
func (s *Service) settleEntitlement(ctx context.Context, txRecord *domain.Transaction, newStatus string) {
	if newStatus == domain.StatusSuccessful {
		ok, err := s.repo.ActivateEntitlementByTransactionID(ctx, txRecord.ID)
		if err != nil {
			log.Printf("level=error component=payment_service msg=\"failed to activate entitlement\" transaction_id=%s err=%v", txRecord.ID, err)
			return
		}
		if !ok {
			log.Printf("level=error component=payment_service msg=\"successful payment has no pending entitlement\" transaction_id=%s", txRecord.ID)
		}
		return
	}

	ok, err := s.repo.FailEntitlementByTransactionID(ctx, txRecord.ID)
	if err != nil {
		log.Printf("level=error component=payment_service msg=\"failed to fail entitlement\" transaction_id=%s err=%v", txRecord.ID, err)
		return
	}
	if !ok {
		log.Printf("level=warn component=payment_service msg=\"failed payment has no pending entitlement\" transaction_id=%s", txRecord.ID)
	}
}

// failDispatch terminates a ledger row whose gateway submission never yielded a
// reference id, along with its pending entitlement.
func (s *Service) failDispatch(ctx context.Context, txRecord *domain.Transaction, reason string) {
	if err := s.repo.MarkTransactionDispatchFailed(ctx, txRecord.ID, reason); err != nil {
		log.Printf("level=error component=payment_service msg=\"failed to mark transaction dispatch failure\" transaction_id=%s err=%v", txRecord.ID, err)
	}
	if txRecord.Purpose.IsServicePurchase() {
		if _, err := s.repo.FailEntitlementByTransactionID(ctx, txRecord.ID); err != nil {
			log.Printf("level=error component=payment_service msg=\"failed to fail entitlement after dispatch failure\" transaction_id=%s err=%v", txRecord.ID, err)
		}
	}
	txRecord.Status = domain.StatusFailed
	s.publishPaymentEvent(ctx, rabbitmq.RoutingKeyPaymentFailed, txRecord, "")
}

// HasActiveEntitlement returns the user's live entitlement for a service type.
func (s *Service) HasActiveEntitlement(ctx context.Context, userID uuid.UUID, serviceType string) (*domain.ServiceEntitlement, error) {
	return s.repo.FindActiveEntitlement(ctx, userID, serviceType)
}

// ConsumeEntitlement records one use of an entitlement.
func (s *Service) ConsumeEntitlement(ctx context.Context, entitlementID uuid.UUID) (*domain.ServiceEntitlement, error) {
	return s.repo.ConsumeEntitlement(ctx, entitlementID)
}

// ListUserEntitlements returns every entitlement a user has held.
func (s *Service) ListUserEntitlements(ctx context.Context, userID uuid.UUID) ([]domain.ServiceEntitlement, error) {
	return s.repo.ListEntitlementsByUserID(ctx, userID)
}

// GetAccountBalance fetches the gateway balance for a scope by name.
func (s *Service) GetAccountBalance(ctx context.Context, scopeName string) (*domain.AccountBalance, error) {
	scope, err := parseScope(scopeName)
	if err != nil {
		return nil, err
	}
	return s.gateway.GetAccountBalance(ctx, scope)
}

// ValidateAccountHolder checks whether an MSISDN holds an active wallet.
func (s *Service) ValidateAccountHolder(ctx context.Context, scopeName, phoneNumber string) (bool, error) {
	scope, err := parseScope(scopeName)
	if err != nil {
		return false, err
	}
	msisdn, err := normalizeMSISDN(phoneNumber)
	if err != nil {
		return false, err
	}
	return s.gateway.ValidateAccountHolder(ctx, scope, msisdn)
}

func (s *Service) publishPaymentEvent(ctx context.Context, routingKey string, txRecord *domain.Transaction, referenceID string) {
	if s.eventProducer == nil {
		return
	}
	event := domain.PaymentEvent{
		TransactionID: txRecord.ID,
		UserID:        txRecord.UserID,
		ReferenceID:   referenceID,
		Purpose:       txRecord.Purpose.String(),
		Status:        txRecord.Status,
		Amount:        txRecord.Amount,
		Currency:      txRecord.Currency,
		Timestamp:     time.Now(),
	}
	if err := s.eventProducer.PublishPaymentEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=payment_service msg=\"failed to publish payment event\" routing_key=%s transaction_id=%s err=%v", routingKey, txRecord.ID, err)
	}
}

func parseScope(scopeName string) (momoclient.Scope, error) {
	switch strings.ToLower(strings.TrimSpace(scopeName)) {
	case "collection", "collections":
		return momoclient.ScopeCollections, nil
	case "disbursement", "disbursements":
		return momoclient.ScopeDisbursements, nil
	}
	return "", ErrUnknownScope
}

// normalizeMSISDN strips a leading plus sign and validates that the remainder
// is 8 to 15 digits.
func normalizeMSISDN(raw string) (string, error) {
	msisdn := strings.TrimSpace(raw)
	msisdn = strings.TrimPrefix(msisdn, "+")
	if len(msisdn) < 8 || len(msisdn) > 15 {
		return "", ErrInvalidPhoneNumber
	}
	for _, r := range msisdn {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhoneNumber
		}
	}
	return msisdn, nil
}

func verificationMessage(status string) string {
	switch status {
	case domain.StatusSuccessful:
		return "Payment successful. Your service is now active."
	case domain.StatusFailed:
		return "Payment failed."
	case domain.StatusCancelled:
		return "Payment was cancelled."
	default:
		return "Payment is still pending. Approve the request on your phone."
	}
}
