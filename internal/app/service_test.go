package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careernest/payment-service/internal/domain"
	"github.com/careernest/payment-service/internal/store"
	"github.com/careernest/payment-service/pkg/momoclient"
)

// repoStub is an in-memory Repository that records the order of mutating calls.
type repoStub struct {
	services     map[uuid.UUID]*domain.CatalogService
	transactions map[uuid.UUID]*domain.Transaction
	entitlements map[uuid.UUID]*domain.ServiceEntitlement

	calls []string

	createTransactionErr error
	createEntitlementErr error
}

func newRepoStub() *repoStub {
	return &repoStub{
		services:     make(map[uuid.UUID]*domain.CatalogService),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		entitlements: make(map[uuid.UUID]*domain.ServiceEntitlement),
	}
}

func (r *repoStub) addService(serviceType string, price int64, active bool) *domain.CatalogService {
	svc := &domain.CatalogService{
		ID:          uuid.New(),
		Name:        serviceType,
		Price:       price,
		Currency:    domain.CurrencyZAR,
		ServiceType: serviceType,
		IsActive:    active,
	}
	r.services[svc.ID] = svc
	return svc
}

func (r *repoStub) UpsertCatalogService(ctx context.Context, svc *domain.CatalogService) error {
	r.calls = append(r.calls, "UpsertCatalogService")
	r.services[svc.ID] = svc
	return nil
}

func (r *repoStub) ListActiveCatalogServices(ctx context.Context) ([]domain.CatalogService, error) {
	var out []domain.CatalogService
	for _, svc := range r.services {
		if svc.IsActive {
			out = append(out, *svc)
		}
	}
	return out, nil
}

func (r *repoStub) FindCatalogServiceByID(ctx context.Context, serviceID uuid.UUID) (*domain.CatalogService, error) {
	svc, ok := r.services[serviceID]
	if !ok {
		return nil, store.ErrServiceNotFound
	}
	return svc, nil
}

func (r *repoStub) FindCatalogServiceByType(ctx context.Context, serviceType string) (*domain.CatalogService, error) {
	for _, svc := range r.services {
		if svc.ServiceType == serviceType {
			return svc, nil
		}
	}
	return nil, store.ErrServiceNotFound
}

func (r *repoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.calls = append(r.calls, "CreateTransaction")
	if r.createTransactionErr != nil {
		return r.createTransactionErr
	}
	for _, existing := range r.transactions {
		if existing.ExternalID == tx.ExternalID {
			return store.ErrDuplicateExternalID
		}
	}
	copied := *tx
	r.transactions[tx.ID] = &copied
	return nil
}

func (r *repoStub) FindTransactionByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error) {
	for _, tx := range r.transactions {
		if tx.ExternalID == externalID {
			return tx, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *repoStub) FindTransactionByReferenceID(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	for _, tx := range r.transactions {
		if tx.MomoReferenceID != nil && *tx.MomoReferenceID == referenceID {
			return tx, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *repoStub) AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, referenceID string) error {
	r.calls = append(r.calls, "AttachGatewayReference")
	tx, ok := r.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	tx.MomoReferenceID = &referenceID
	return nil
}

func (r *repoStub) UpdateTransactionStatus(ctx context.Context, referenceID, newStatus string, reason, financialTransactionID *string) error {
	r.calls = append(r.calls, "UpdateTransactionStatus:"+newStatus)
	tx, err := r.FindTransactionByReferenceID(ctx, referenceID)
	if err != nil {
		return err
	}
	if domain.IsTerminalStatus(tx.Status) {
		if tx.Status == newStatus {
			return nil
		}
		return store.ErrTransactionFinalized
	}
	tx.Status = newStatus
	tx.FailureReason = reason
	tx.FinancialTransactionID = financialTransactionID
	return nil
}

func (r *repoStub) MarkTransactionDispatchFailed(ctx context.Context, transactionID uuid.UUID, reason string) error {
	r.calls = append(r.calls, "MarkTransactionDispatchFailed")
	tx, ok := r.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	tx.Status = domain.StatusFailed
	tx.FailureReason = &reason
	return nil
}

func (r *repoStub) FindPendingTransactionsOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range r.transactions {
		if tx.Status == domain.StatusPending && tx.MomoReferenceID != nil {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (r *repoStub) CreateEntitlement(ctx context.Context, ent *domain.ServiceEntitlement) error {
	r.calls = append(r.calls, "CreateEntitlement")
	if r.createEntitlementErr != nil {
		return r.createEntitlementErr
	}
	copied := *ent
	r.entitlements[ent.ID] = &copied
	return nil
}

func (r *repoStub) ActivateEntitlementByTransactionID(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	r.calls = append(r.calls, "ActivateEntitlementByTransactionID")
	for _, ent := range r.entitlements {
		if ent.TransactionID == transactionID && ent.Status == domain.EntitlementPending {
			ent.Status = domain.EntitlementCompleted
			return true, nil
		}
	}
	return false, nil
}

func (r *repoStub) FailEntitlementByTransactionID(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	r.calls = append(r.calls, "FailEntitlementByTransactionID")
	for _, ent := range r.entitlements {
		if ent.TransactionID == transactionID && ent.Status == domain.EntitlementPending {
			ent.Status = domain.EntitlementFailed
			return true, nil
		}
	}
	return false, nil
}

func (r *repoStub) FindActiveEntitlement(ctx context.Context, userID uuid.UUID, serviceType string) (*domain.ServiceEntitlement, error) {
	for _, ent := range r.entitlements {
		if ent.UserID == userID && ent.ServiceType == serviceType && ent.IsActive(time.Now()) {
			return ent, nil
		}
	}
	return nil, store.ErrEntitlementNotFound
}

func (r *repoStub) ConsumeEntitlement(ctx context.Context, entitlementID uuid.UUID) (*domain.ServiceEntitlement, error) {
	ent, ok := r.entitlements[entitlementID]
	if !ok {
		return nil, store.ErrEntitlementNotFound
	}
	if ent.Status != domain.EntitlementCompleted {
		return nil, store.ErrEntitlementNotActive
	}
	if !ent.ExpiresAt.After(time.Now()) {
		return nil, store.ErrEntitlementExpired
	}
	if ent.UsageCount >= ent.MaxUsage {
		return nil, store.ErrEntitlementExhausted
	}
	ent.UsageCount++
	return ent, nil
}

func (r *repoStub) ListEntitlementsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.ServiceEntitlement, error) {
	var out []domain.ServiceEntitlement
	for _, ent := range r.entitlements {
		if ent.UserID == userID {
			out = append(out, *ent)
		}
	}
	return out, nil
}

// gatewayStub fakes the MoMo client.
type gatewayStub struct {
	requestToPayErr error
	transferErr     error
	status          *domain.GatewayTransactionStatus
	statusErr       error

	requestToPayCalls int
	lastPayment       domain.MoMoPayment
	referenceID       string
}

func (g *gatewayStub) RequestToPay(ctx context.Context, payment domain.MoMoPayment) (string, error) {
	g.requestToPayCalls++
	g.lastPayment = payment
	if g.requestToPayErr != nil {
		return "", g.requestToPayErr
	}
	if g.referenceID == "" {
		g.referenceID = uuid.New().String()
	}
	return g.referenceID, nil
}

func (g *gatewayStub) Transfer(ctx context.Context, payment domain.MoMoPayment) (string, error) {
	g.lastPayment = payment
	if g.transferErr != nil {
		return "", g.transferErr
	}
	if g.referenceID == "" {
		g.referenceID = uuid.New().String()
	}
	return g.referenceID, nil
}

func (g *gatewayStub) GetCollectionStatus(ctx context.Context, referenceID string) (*domain.GatewayTransactionStatus, error) {
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return g.status, nil
}

func (g *gatewayStub) GetDisbursementStatus(ctx context.Context, referenceID string) (*domain.GatewayTransactionStatus, error) {
	return g.GetCollectionStatus(ctx, referenceID)
}

func (g *gatewayStub) GetAccountBalance(ctx context.Context, scope momoclient.Scope) (*domain.AccountBalance, error) {
	return &domain.AccountBalance{AvailableBalance: "100.00", Currency: "ZAR"}, nil
}

func (g *gatewayStub) ValidateAccountHolder(ctx context.Context, scope momoclient.Scope, msisdn string) (bool, error) {
	return true, nil
}

// publisherStub records published payment events.
type publisherStub struct {
	routingKeys []string
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *publisherStub) PublishPaymentEvent(ctx context.Context, routingKey string, event domain.PaymentEvent) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *publisherStub) Close() {}

// limiterStub returns a fixed count.
type limiterStub struct {
	count      int
	retryAfter int
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return l.count, l.retryAfter, nil
}

func newTestService(repo *repoStub, gateway *gatewayStub) (*Service, *publisherStub) {
	publisher := &publisherStub{}
	svc := NewService(repo, gateway, publisher, nil, 0)
	return svc, publisher
}

func TestPurchaseService_HappyPath(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	svc, publisher := newTestService(repo, gateway)

	userID := uuid.New()
	result, err := svc.PurchaseService(context.Background(), userID, domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "+27831234567",
	})
	if err != nil {
		t.Fatalf("PurchaseService returned error: %v", err)
	}

	if result.Status != domain.StatusPending {
		t.Fatalf("expected pending result, got %q", result.Status)
	}
	if result.ReferenceID != gateway.referenceID {
		t.Fatalf("expected gateway reference id in result")
	}

	// Ledger rows must exist before the gateway is called.
	wantOrder := []string{"CreateTransaction", "CreateEntitlement", "AttachGatewayReference"}
	if len(repo.calls) != len(wantOrder) {
		t.Fatalf("unexpected call sequence %v", repo.calls)
	}
	for i, want := range wantOrder {
		if repo.calls[i] != want {
			t.Fatalf("call %d = %q, want %q (sequence %v)", i, repo.calls[i], want, repo.calls)
		}
	}

	if gateway.lastPayment.Amount != "50.00" {
		t.Fatalf("expected wire amount 50.00, got %q", gateway.lastPayment.Amount)
	}
	if gateway.lastPayment.Payer == nil || gateway.lastPayment.Payer.PartyID != "27831234567" {
		t.Fatalf("expected normalized payer msisdn, got %+v", gateway.lastPayment.Payer)
	}

	tx := repo.transactions[result.TransactionID]
	if tx == nil || tx.MomoReferenceID == nil || *tx.MomoReferenceID != gateway.referenceID {
		t.Fatal("expected gateway reference attached to the ledger row")
	}

	var ent *domain.ServiceEntitlement
	for _, e := range repo.entitlements {
		ent = e
	}
	if ent == nil {
		t.Fatal("expected a pending entitlement")
	}
	if ent.Status != domain.EntitlementPending {
		t.Fatalf("expected pending entitlement, got %q", ent.Status)
	}
	if ent.MaxUsage != 1 {
		t.Fatalf("expected one-shot entitlement, got max usage %d", ent.MaxUsage)
	}

	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "payment.initiated" {
		t.Fatalf("expected payment.initiated event, got %v", publisher.routingKeys)
	}
}

func TestPurchaseService_JobAlertsTerms(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeJobAlerts, 10000, true)
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)

	_, err := svc.PurchaseService(context.Background(), uuid.New(), domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if err != nil {
		t.Fatalf("PurchaseService returned error: %v", err)
	}

	for _, ent := range repo.entitlements {
		if ent.MaxUsage != 30 {
			t.Fatalf("expected 30 uses for job alerts, got %d", ent.MaxUsage)
		}
		window := time.Until(ent.ExpiresAt)
		if window < 29*24*time.Hour || window > 31*24*time.Hour {
			t.Fatalf("expected a thirty-day validity window, got %s", window)
		}
	}
}

func TestPurchaseService_DispatchFailureTerminatesLedger(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{requestToPayErr: errors.New("gateway unreachable")}
	svc, publisher := newTestService(repo, gateway)

	_, err := svc.PurchaseService(context.Background(), uuid.New(), domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if err == nil {
		t.Fatal("expected dispatch failure to surface")
	}

	var tx *domain.Transaction
	for _, candidate := range repo.transactions {
		tx = candidate
	}
	if tx == nil || tx.Status != domain.StatusFailed {
		t.Fatalf("expected transaction marked failed, got %+v", tx)
	}

	for _, ent := range repo.entitlements {
		if ent.Status != domain.EntitlementFailed {
			t.Fatalf("expected entitlement failed after dispatch failure, got %q", ent.Status)
		}
	}

	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "payment.failed" {
		t.Fatalf("expected payment.failed event, got %v", publisher.routingKeys)
	}
}

func TestPurchaseService_DuplicateExternalIDFailsBeforeGateway(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)
	svc.newExternalID = func() string { return "fixed-external-id" }

	userID := uuid.New()
	if _, err := svc.PurchaseService(context.Background(), userID, domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	}); err != nil {
		t.Fatalf("first purchase returned error: %v", err)
	}

	_, err := svc.PurchaseService(context.Background(), userID, domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if !errors.Is(err, store.ErrDuplicateExternalID) {
		t.Fatalf("expected duplicate external id error, got %v", err)
	}

	if gateway.requestToPayCalls != 1 {
		t.Fatalf("duplicate must never reach the gateway, got %d calls", gateway.requestToPayCalls)
	}
}

func TestPurchaseService_InvalidPhoneNumber(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)

	for _, phone := range []string{"", "12345", "+27-83-123", "abcdefgh"} {
		_, err := svc.PurchaseService(context.Background(), uuid.New(), domain.PurchaseRequest{
			ServiceID:   catalogSvc.ID,
			PhoneNumber: phone,
		})
		if !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Fatalf("phone %q: expected ErrInvalidPhoneNumber, got %v", phone, err)
		}
	}
	if len(repo.calls) != 0 {
		t.Fatalf("invalid phone must not touch the ledger, got %v", repo.calls)
	}
}

func TestPurchaseService_InactiveService(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, false)
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)

	_, err := svc.PurchaseService(context.Background(), uuid.New(), domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if !errors.Is(err, ErrServiceInactive) {
		t.Fatalf("expected ErrServiceInactive, got %v", err)
	}
}

func TestPurchaseService_RateLimited(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	publisher := &publisherStub{}
	limiter := &limiterStub{count: 11, retryAfter: 42}
	svc := NewService(repo, gateway, publisher, limiter, 10)

	_, err := svc.PurchaseService(context.Background(), uuid.New(), domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if !errors.Is(err, ErrPurchaseRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	var rateLimited *RateLimitedError
	if !errors.As(err, &rateLimited) || rateLimited.RetryAfterSeconds != 42 {
		t.Fatalf("expected retry-after of 42, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("rate limited purchase must not touch the ledger, got %v", repo.calls)
	}
}

func TestVerifyPayment_SuccessActivatesEntitlement(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	svc, publisher := newTestService(repo, gateway)

	userID := uuid.New()
	result, err := svc.PurchaseService(context.Background(), userID, domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if err != nil {
		t.Fatalf("PurchaseService returned error: %v", err)
	}

	gateway.status = &domain.GatewayTransactionStatus{
		Status:                 domain.GatewayStatusSuccessful,
		FinancialTransactionID: "fin-1",
	}

	verification, err := svc.VerifyPayment(context.Background(), result.ReferenceID)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if verification.Status != domain.StatusSuccessful {
		t.Fatalf("expected successful verification, got %q", verification.Status)
	}

	tx := repo.transactions[result.TransactionID]
	if tx.Status != domain.StatusSuccessful {
		t.Fatalf("expected ledger status successful, got %q", tx.Status)
	}
	if tx.FinancialTransactionID == nil || *tx.FinancialTransactionID != "fin-1" {
		t.Fatal("expected financial transaction id recorded")
	}

	ent, err := repo.FindActiveEntitlement(context.Background(), userID, domain.ServiceTypeCVGeneration)
	if err != nil {
		t.Fatalf("expected an active entitlement after success: %v", err)
	}
	if ent.Status != domain.EntitlementCompleted {
		t.Fatalf("expected completed entitlement, got %q", ent.Status)
	}

	last := publisher.routingKeys[len(publisher.routingKeys)-1]
	if last != "payment.successful" {
		t.Fatalf("expected payment.successful event, got %v", publisher.routingKeys)
	}
}

func TestVerifyPayment_FailureFailsEntitlement(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)

	userID := uuid.New()
	result, err := svc.PurchaseService(context.Background(), userID, domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if err != nil {
		t.Fatalf("PurchaseService returned error: %v", err)
	}

	reason := "payer rejected"
	gateway.status = &domain.GatewayTransactionStatus{
		Status: domain.GatewayStatusFailed,
		Reason: reason,
	}

	verification, err := svc.VerifyPayment(context.Background(), result.ReferenceID)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if verification.Status != domain.StatusFailed {
		t.Fatalf("expected failed verification, got %q", verification.Status)
	}

	for _, ent := range repo.entitlements {
		if ent.Status != domain.EntitlementFailed {
			t.Fatalf("expected failed entitlement, got %q", ent.Status)
		}
	}

	if _, err := repo.FindActiveEntitlement(context.Background(), userID, domain.ServiceTypeCVGeneration); !errors.Is(err, store.ErrEntitlementNotFound) {
		t.Fatalf("expected no active entitlement after failure, got %v", err)
	}
}

func TestVerifyPayment_PendingLeavesLedgerUntouched(t *testing.T) {
	repo := newRepoStub()
	catalogSvc := repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)

	result, err := svc.PurchaseService(context.Background(), uuid.New(), domain.PurchaseRequest{
		ServiceID:   catalogSvc.ID,
		PhoneNumber: "27831234567",
	})
	if err != nil {
		t.Fatalf("PurchaseService returned error: %v", err)
	}

	gateway.status = &domain.GatewayTransactionStatus{Status: domain.GatewayStatusPending}

	verification, err := svc.VerifyPayment(context.Background(), result.ReferenceID)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if verification.Status != domain.StatusPending {
		t.Fatalf("expected pending verification, got %q", verification.Status)
	}

	tx := repo.transactions[result.TransactionID]
	if tx.Status != domain.StatusPending {
		t.Fatalf("pending gateway status must not move the ledger, got %q", tx.Status)
	}
}

func TestVerifyPayment_TerminalStatusSkipsGateway(t *testing.T) {
	repo := newRepoStub()
	refID := uuid.New().String()
	txID := uuid.New()
	repo.transactions[txID] = &domain.Transaction{
		ID:              txID,
		UserID:          uuid.New(),
		ExternalID:      "ext-1",
		MomoReferenceID: &refID,
		Type:            domain.TransactionTypeCollection,
		Purpose:         domain.PurposeForService(domain.ServiceTypeCVGeneration),
		Status:          domain.StatusSuccessful,
	}
	gateway := &gatewayStub{statusErr: errors.New("gateway must not be called")}
	svc, _ := newTestService(repo, gateway)

	verification, err := svc.VerifyPayment(context.Background(), refID)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if verification.Status != domain.StatusSuccessful {
		t.Fatalf("expected recorded terminal status, got %q", verification.Status)
	}
}

func TestDisburse(t *testing.T) {
	repo := newRepoStub()
	gateway := &gatewayStub{}
	svc, _ := newTestService(repo, gateway)

	result, err := svc.Disburse(context.Background(), domain.DisbursementRequest{
		UserID:      uuid.New(),
		PhoneNumber: "27831234567",
		Amount:      "25.50",
		Currency:    "zar",
		Reason:      "refund",
	})
	if err != nil {
		t.Fatalf("Disburse returned error: %v", err)
	}

	tx := repo.transactions[result.TransactionID]
	if tx.Type != domain.TransactionTypeDisbursement {
		t.Fatalf("expected disbursement type, got %q", tx.Type)
	}
	if tx.Amount != 2550 {
		t.Fatalf("expected 2550 cents, got %d", tx.Amount)
	}
	if gateway.lastPayment.Payee == nil || gateway.lastPayment.Payee.PartyID != "27831234567" {
		t.Fatalf("expected payee set on transfer, got %+v", gateway.lastPayment.Payee)
	}
	if len(repo.entitlements) != 0 {
		t.Fatal("disbursements must not create entitlements")
	}
}

func TestDisburse_InvalidAmount(t *testing.T) {
	repo := newRepoStub()
	svc, _ := newTestService(repo, &gatewayStub{})

	for _, amount := range []string{"", "0.00", "-5.00", "abc"} {
		_, err := svc.Disburse(context.Background(), domain.DisbursementRequest{
			UserID:      uuid.New(),
			PhoneNumber: "27831234567",
			Amount:      amount,
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %q: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestListServices_LocalizesPrices(t *testing.T) {
	repo := newRepoStub()
	repo.addService(domain.ServiceTypeCVGeneration, 5000, true)
	svc, _ := newTestService(repo, &gatewayStub{})

	services, err := svc.ListServices(context.Background(), "NGN")
	if err != nil {
		t.Fatalf("ListServices returned error: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected one service, got %d", len(services))
	}
	if services[0].Currency != "NGN" || services[0].Price != 220000 {
		t.Fatalf("expected localized NGN quote, got %d %s", services[0].Price, services[0].Currency)
	}

	_, err = svc.ListServices(context.Background(), "EUR")
	if !errors.Is(err, domain.ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

func TestGetAccountBalance_UnknownScope(t *testing.T) {
	svc, _ := newTestService(newRepoStub(), &gatewayStub{})

	if _, err := svc.GetAccountBalance(context.Background(), "savings"); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
	if _, err := svc.GetAccountBalance(context.Background(), "collection"); err != nil {
		t.Fatalf("expected collection scope accepted, got %v", err)
	}
	if _, err := svc.GetAccountBalance(context.Background(), "disbursements"); err != nil {
		t.Fatalf("expected disbursements alias accepted, got %v", err)
	}
}
