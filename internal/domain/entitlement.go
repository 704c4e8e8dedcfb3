/**
 * @description
 * Domain models for the purchasable service catalog and the per-user service
 * entitlements that a successful payment unlocks.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement statuses. An entitlement is created "pending" alongside its
// transaction, becomes "completed" only when that transaction is "successful",
// and becomes "failed" when the transaction terminates unsuccessfully.
const (
	EntitlementPending   = "pending"
	EntitlementCompleted = "completed"
	EntitlementFailed    = "failed"
)

// Catalog service types.
const (
	ServiceTypeCVGeneration = "cv_generation"
	ServiceTypeCoverLetter  = "cover_letter"
	ServiceTypeJobAlerts    = "job_alerts"
)

// CatalogService is a static definition of a purchasable service. Seeded once
// at startup and read-only thereafter.
type CatalogService struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"` // in cents
	Currency    string    `json:"currency"`
	ServiceType string    `json:"service_type"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ServiceEntitlement binds a user to a purchased service with a usage ceiling
// and an expiry. Callers must check both status and expiry: a completed
// entitlement past its expiry is inert.
type ServiceEntitlement struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ServiceType   string    `json:"service_type"`
	Status        string    `json:"status"`
	UsageCount    int       `json:"usage_count"`
	MaxUsage      int       `json:"max_usage"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsActive reports whether the entitlement currently authorizes use of its
// service. Expiry dominates status.
func (e *ServiceEntitlement) IsActive(now time.Time) bool {
	return e.Status == EntitlementCompleted && e.ExpiresAt.After(now)
}

// EntitlementTermsForType returns the usage ceiling and validity window for a
// service type. One-shot services (CV, cover letter) get a single use within
// seven days; job alerts run for a thirty-day period with one dispatch per day.
func EntitlementTermsForType(serviceType string) (maxUsage int, validity time.Duration) {
	if serviceType == ServiceTypeJobAlerts {
		return 30, 30 * 24 * time.Hour
	}
	return 1, 7 * 24 * time.Hour
}
