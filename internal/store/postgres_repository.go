/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL queries against the `ai_services`, `transactions` and
 * `user_service_entitlements` tables.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careernest/payment-service/internal/domain"
)

var (
	ErrServiceNotFound      = errors.New("service not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateExternalID  = errors.New("duplicate external id")
	ErrTransactionFinalized = errors.New("transaction already in a terminal status")
	ErrEntitlementNotFound  = errors.New("entitlement not found")
	ErrEntitlementExhausted = errors.New("entitlement usage exhausted")
	ErrEntitlementExpired   = errors.New("entitlement expired")
	ErrEntitlementNotActive = errors.New("entitlement is not completed")
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertCatalogService inserts a catalog entry, or refreshes name/description/
// price if an entry with the same service type already exists. Used by the
// startup seeding step only.
func (r *PostgresRepository) UpsertCatalogService(ctx context.Context, svc *domain.CatalogService) error {
	query := `
		INSERT INTO ai_services (id, name, description, price, currency, service_type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (service_type) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		svc.ID, svc.Name, svc.Description, svc.Price, svc.Currency, svc.ServiceType, svc.IsActive,
	).Scan(&svc.ID, &svc.CreatedAt)
}

// ListActiveCatalogServices returns all purchasable services.
func (r *PostgresRepository) ListActiveCatalogServices(ctx context.Context) ([]domain.CatalogService, error) {
	query := `
		SELECT id, name, description, price, currency, service_type, is_active, created_at
		FROM ai_services
		WHERE is_active = TRUE
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []domain.CatalogService
	for rows.Next() {
		var svc domain.CatalogService
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.Currency, &svc.ServiceType, &svc.IsActive, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// FindCatalogServiceByID retrieves one catalog entry by its id.
func (r *PostgresRepository) FindCatalogServiceByID(ctx context.Context, serviceID uuid.UUID) (*domain.CatalogService, error) {
	query := `
		SELECT id, name, description, price, currency, service_type, is_active, created_at
		FROM ai_services
		WHERE id = $1
	`
	var svc domain.CatalogService
	err := r.db.QueryRow(ctx, query, serviceID).Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.Currency, &svc.ServiceType, &svc.IsActive, &svc.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// FindCatalogServiceByType retrieves one catalog entry by its service type.
func (r *PostgresRepository) FindCatalogServiceByType(ctx context.Context, serviceType string) (*domain.CatalogService, error) {
	query := `
		SELECT id, name, description, price, currency, service_type, is_active, created_at
		FROM ai_services
		WHERE service_type = $1
	`
	var svc domain.CatalogService
	err := r.db.QueryRow(ctx, query, serviceType).Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.Currency, &svc.ServiceType, &svc.IsActive, &svc.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// CreateTransaction inserts a new ledger row. The external_id column carries a
// unique constraint; a duplicate insert fails with ErrDuplicateExternalID so
// a client retry can never charge twice.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions
			(id, user_id, external_id, momo_reference_id, type, purpose, amount, currency, status,
			 payer_party_id, payee_party_id, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		tx.ID, tx.UserID, tx.ExternalID, tx.MomoReferenceID, tx.Type, tx.Purpose.String(),
		tx.Amount, tx.Currency, tx.Status, tx.PayerPartyID, tx.PayeePartyID, tx.Description, metadata,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateExternalID
		}
		return err
	}
	return nil
}

// FindTransactionByExternalID looks up a ledger row by its idempotency key.
func (r *PostgresRepository) FindTransactionByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "external_id = $1", externalID)
}

// FindTransactionByReferenceID looks up a ledger row by the gateway reference id.
func (r *PostgresRepository) FindTransactionByReferenceID(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "momo_reference_id = $1", referenceID)
}

// AttachGatewayReference stores the reference id returned by the gateway on the
// pending ledger row. Written once, immediately after dispatch.
func (r *PostgresRepository) AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, referenceID string) error {
	query := `
		UPDATE transactions
		SET momo_reference_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, transactionID, referenceID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

const transactionColumns = `
	id, user_id, external_id, momo_reference_id, type, purpose, amount, currency, status,
	payer_party_id, payee_party_id, description, failure_reason, financial_transaction_id,
	metadata, created_at, updated_at
`

func (r *PostgresRepository) findTransaction(ctx context.Context, where string, arg interface{}) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE `+where, arg)
	tx, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var purpose string
	var metadata []byte
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.ExternalID, &tx.MomoReferenceID, &tx.Type, &purpose,
		&tx.Amount, &tx.Currency, &tx.Status, &tx.PayerPartyID, &tx.PayeePartyID,
		&tx.Description, &tx.FailureReason, &tx.FinancialTransactionID,
		&metadata, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Purpose = domain.ParsePurpose(purpose)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

// UpdateTransactionStatus moves a pending transaction into a new status keyed
// by its gateway reference id. Terminal rows reject further transitions; a
// repeated update to the same terminal status is treated as a no-op so
// reconciliation stays idempotent.
func (r *PostgresRepository) UpdateTransactionStatus(ctx context.Context, referenceID, newStatus string, reason, financialTransactionID *string) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    failure_reason = COALESCE($3, failure_reason),
		    financial_transaction_id = COALESCE($4, financial_transaction_id),
		    updated_at = NOW()
		WHERE momo_reference_id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, referenceID, newStatus, reason, financialTransactionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	existing, err := r.FindTransactionByReferenceID(ctx, referenceID)
	if err != nil {
		return err
	}
	if existing.Status == newStatus {
		return nil
	}
	return ErrTransactionFinalized
}

// MarkTransactionDispatchFailed terminates a row whose request-to-pay or
// transfer call never reached the gateway. Keyed by internal id because no
// reference id exists yet.
func (r *PostgresRepository) MarkTransactionDispatchFailed(ctx context.Context, transactionID uuid.UUID, reason string) error {
	query := `
		UPDATE transactions
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, transactionID, reason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionFinalized
	}
	return nil
}

// FindPendingTransactionsOlderThan returns pending ledger rows created before
// the cutoff, oldest first, that already hold a gateway reference id. Feeds
// the reconciliation sweep.
func (r *PostgresRepository) FindPendingTransactionsOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending' AND momo_reference_id IS NOT NULL AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// CreateEntitlement inserts a pending entitlement alongside its transaction.
func (r *PostgresRepository) CreateEntitlement(ctx context.Context, ent *domain.ServiceEntitlement) error {
	query := `
		INSERT INTO user_service_entitlements
			(id, user_id, service_id, transaction_id, status, usage_count, max_usage, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		ent.ID, ent.UserID, ent.ServiceID, ent.TransactionID, ent.Status,
		ent.UsageCount, ent.MaxUsage, ent.ExpiresAt,
	).Scan(&ent.CreatedAt, &ent.UpdatedAt)
}

// ActivateEntitlementByTransactionID promotes the pending entitlement funded by
// the given transaction to completed. Returns false when no pending entitlement
// matched, which callers report as an inconsistency.
func (r *PostgresRepository) ActivateEntitlementByTransactionID(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	query := `
		UPDATE user_service_entitlements
		SET status = 'completed', updated_at = NOW()
		WHERE transaction_id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, transactionID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// FailEntitlementByTransactionID marks the pending entitlement funded by a
// terminally failed transaction as failed, so no orphaned pending rows remain.
func (r *PostgresRepository) FailEntitlementByTransactionID(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	query := `
		UPDATE user_service_entitlements
		SET status = 'failed', updated_at = NOW()
		WHERE transaction_id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, transactionID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

const entitlementColumns = `
	e.id, e.user_id, e.service_id, e.transaction_id, s.service_type, e.status,
	e.usage_count, e.max_usage, e.expires_at, e.created_at, e.updated_at
`

// FindActiveEntitlement returns the completed, unexpired entitlement a user
// holds for a service type, or ErrEntitlementNotFound. Expiry dominates
// status: completed rows past expires_at never match.
func (r *PostgresRepository) FindActiveEntitlement(ctx context.Context, userID uuid.UUID, serviceType string) (*domain.ServiceEntitlement, error) {
	query := `
		SELECT ` + entitlementColumns + `
		FROM user_service_entitlements e
		JOIN ai_services s ON s.id = e.service_id
		WHERE e.user_id = $1
		  AND s.service_type = $2
		  AND e.status = 'completed'
		  AND e.expires_at > NOW()
		ORDER BY e.expires_at DESC
		LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, userID, serviceType)
	ent, err := scanEntitlement(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEntitlementNotFound
		}
		return nil, err
	}
	return ent, nil
}

func scanEntitlement(row pgx.Row) (*domain.ServiceEntitlement, error) {
	var ent domain.ServiceEntitlement
	err := row.Scan(
		&ent.ID, &ent.UserID, &ent.ServiceID, &ent.TransactionID, &ent.ServiceType,
		&ent.Status, &ent.UsageCount, &ent.MaxUsage, &ent.ExpiresAt, &ent.CreatedAt, &ent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// ConsumeEntitlement increments usage_count in a single guarded statement so
// concurrent consumers cannot push usage past max_usage. When the guard fails
// the row is re-read to report the precise reason.
func (r *PostgresRepository) ConsumeEntitlement(ctx context.Context, entitlementID uuid.UUID) (*domain.ServiceEntitlement, error) {
	query := `
		UPDATE user_service_entitlements e
		SET usage_count = e.usage_count + 1, updated_at = NOW()
		FROM ai_services s
		WHERE e.id = $1
		  AND s.id = e.service_id
		  AND e.status = 'completed'
		  AND e.expires_at > NOW()
		  AND e.usage_count < e.max_usage
		RETURNING ` + entitlementColumns + `
	`
	row := r.db.QueryRow(ctx, query, entitlementID)
	ent, err := scanEntitlement(row)
	if err == nil {
		return ent, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	// Guard failed; classify why.
	var status string
	var usageCount, maxUsage int
	var expiresAt time.Time
	checkQuery := `
		SELECT status, usage_count, max_usage, expires_at
		FROM user_service_entitlements
		WHERE id = $1
	`
	err = r.db.QueryRow(ctx, checkQuery, entitlementID).Scan(&status, &usageCount, &maxUsage, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEntitlementNotFound
		}
		return nil, err
	}
	switch {
	case status != domain.EntitlementCompleted:
		return nil, ErrEntitlementNotActive
	case !expiresAt.After(time.Now()):
		return nil, ErrEntitlementExpired
	default:
		return nil, ErrEntitlementExhausted
	}
}

// ListEntitlementsByUserID returns all entitlements a user has held, newest first.
func (r *PostgresRepository) ListEntitlementsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.ServiceEntitlement, error) {
	query := `
		SELECT ` + entitlementColumns + `
		FROM user_service_entitlements e
		JOIN ai_services s ON s.id = e.service_id
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entitlements []domain.ServiceEntitlement
	for rows.Next() {
		ent, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		entitlements = append(entitlements, *ent)
	}
	return entitlements, rows.Err()
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}
