/**
 * @description
 * Scheduled job implementations for the payment-service. The reconciliation
 * sweep resolves pending payments whose callbacks never arrived by polling the
 * gateway for each one.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/careernest/payment-service/internal/domain"
	"github.com/careernest/payment-service/internal/obs"
)

// ReconcilerStore defines the database operations needed by the jobs.
type ReconcilerStore interface {
	FindPendingTransactionsOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error)
}

// Reconciler resolves a single pending transaction against the gateway.
type Reconciler interface {
	ReconcileTransaction(ctx context.Context, txRecord *domain.Transaction) (string, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	store      ReconcilerStore
	reconciler Reconciler
	logger     *slog.Logger

	pendingAge time.Duration
	batchSize  int
}

// NewJobs creates a new Jobs runner.
func NewJobs(store ReconcilerStore, reconciler Reconciler, logger *slog.Logger, pendingAge time.Duration, batchSize int) *Jobs {
	return &Jobs{
		store:      store,
		reconciler: reconciler,
		logger:     logger,
		pendingAge: pendingAge,
		batchSize:  batchSize,
	}
}

// ReconcilePendingPayments is the job that polls the gateway for pending
// payments older than the configured age and settles any that reached a
// terminal status. One failed poll does not stop the sweep.
func (j *Jobs) ReconcilePendingPayments() {
	j.logger.Info("starting payment reconciliation sweep")
	ctx := context.Background()
	obs.ObserveReconcileSweep()

	cutoff := time.Now().Add(-j.pendingAge)
	transactions, err := j.store.FindPendingTransactionsOlderThan(ctx, cutoff, j.batchSize)
	if err != nil {
		j.logger.Error("failed to list pending transactions", "error", err)
		return
	}

	if len(transactions) == 0 {
		j.logger.Info("no pending payments to reconcile")
		return
	}

	j.logger.Info("found pending payments to reconcile", "count", len(transactions))

	resolved := 0
	for i := range transactions {
		txRecord := &transactions[i]
		status, err := j.reconciler.ReconcileTransaction(ctx, txRecord)
		if err != nil {
			j.logger.Error("failed to reconcile payment", "transaction_id", txRecord.ID, "error", err)
			continue
		}
		if domain.IsTerminalStatus(status) {
			resolved++
			j.logger.Info("payment resolved", "transaction_id", txRecord.ID, "status", status)
		}
	}

	j.logger.Info("payment reconciliation sweep finished", "processed", len(transactions), "resolved", resolved)
}
