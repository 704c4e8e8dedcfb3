package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEvent is the message payload published when a payment attempt changes
// state. Consumed by the notification side of the platform.
type PaymentEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	ReferenceID   string    `json:"reference_id"`
	Purpose       string    `json:"purpose"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"` // in cents
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}
