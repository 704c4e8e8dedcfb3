/**
 * @description
 * This file defines the core domain models for the payment-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and gateway payloads
 *   ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` in the smallest currency unit (cents), which
 *   avoids floating-point inaccuracies with financial data. Amounts only become
 *   decimal strings (e.g. "50.00") at the gateway wire boundary.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types.
const (
	TransactionTypeCollection   = "collection"
	TransactionTypeDisbursement = "disbursement"
)

// Ledger statuses. A transaction is created "pending" and moves exactly once to
// one of the terminal statuses; it never moves backward and is never deleted.
const (
	StatusPending    = "pending"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// IsTerminalStatus reports whether a ledger status permits no further transition.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusSuccessful, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Transaction represents one payment attempt in the ledger. This struct maps
// directly to the `transactions` table in the database.
type Transaction struct {
	ID                     uuid.UUID              `json:"id"`
	UserID                 uuid.UUID              `json:"user_id"`
	ExternalID             string                 `json:"external_id"` // caller-generated idempotency key, unique
	MomoReferenceID        *string                `json:"momo_reference_id,omitempty"`
	Type                   string                 `json:"type"` // 'collection' or 'disbursement'
	Purpose                Purpose                `json:"purpose"`
	Amount                 int64                  `json:"amount"` // in cents
	Currency               string                 `json:"currency"`
	Status                 string                 `json:"status"`
	PayerPartyID           *string                `json:"payer_party_id,omitempty"`
	PayeePartyID           *string                `json:"payee_party_id,omitempty"`
	Description            string                 `json:"description"`
	FailureReason          *string                `json:"failure_reason,omitempty"`
	FinancialTransactionID *string                `json:"financial_transaction_id,omitempty"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// PurchaseRequest is the DTO for incoming service purchase API requests.
type PurchaseRequest struct {
	ServiceID   uuid.UUID `json:"service_id"`
	PhoneNumber string    `json:"phone_number"`
}

// PurchaseResult is returned to the caller immediately after a payment has been
// accepted by the gateway. The reference id doubles as the poll handle for
// payment verification.
type PurchaseResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ReferenceID   string    `json:"reference_id"`
	ExternalID    string    `json:"external_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

// PaymentVerification reports the reconciled state of a payment attempt.
type PaymentVerification struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ReferenceID   string    `json:"reference_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

// DisbursementRequest is the DTO for operator-initiated payouts (e.g. refunds).
type DisbursementRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	Amount      string    `json:"amount"` // decimal string, e.g. "50.00"
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason"`
}
