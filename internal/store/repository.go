/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the payment-service. Defining an
 * interface decouples the business logic from the PostgreSQL implementation and
 * makes the service testable with in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/careernest/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Service catalog methods
	UpsertCatalogService(ctx context.Context, svc *domain.CatalogService) error
	ListActiveCatalogServices(ctx context.Context) ([]domain.CatalogService, error)
	FindCatalogServiceByID(ctx context.Context, serviceID uuid.UUID) (*domain.CatalogService, error)
	FindCatalogServiceByType(ctx context.Context, serviceType string) (*domain.CatalogService, error)

	// Transaction ledger methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error)
	FindTransactionByReferenceID(ctx context.Context, referenceID string) (*domain.Transaction, error)
	// AttachGatewayReference records the gateway reference id returned by a
	// successful dispatch.
	AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, referenceID string) error
	// UpdateTransactionStatus is the only mutator after creation; it rejects
	// transitions out of a terminal status.
	UpdateTransactionStatus(ctx context.Context, referenceID, newStatus string, reason, financialTransactionID *string) error
	// MarkTransactionDispatchFailed terminates a transaction whose gateway
	// submission never produced a reference id.
	MarkTransactionDispatchFailed(ctx context.Context, transactionID uuid.UUID, reason string) error
	FindPendingTransactionsOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error)

	// Entitlement methods
	CreateEntitlement(ctx context.Context, ent *domain.ServiceEntitlement) error
	ActivateEntitlementByTransactionID(ctx context.Context, transactionID uuid.UUID) (bool, error)
	FailEntitlementByTransactionID(ctx context.Context, transactionID uuid.UUID) (bool, error)
	FindActiveEntitlement(ctx context.Context, userID uuid.UUID, serviceType string) (*domain.ServiceEntitlement, error)
	ConsumeEntitlement(ctx context.Context, entitlementID uuid.UUID) (*domain.ServiceEntitlement, error)
	ListEntitlementsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.ServiceEntitlement, error)
}
