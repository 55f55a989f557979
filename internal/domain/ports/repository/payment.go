package repository

import (
	"context"
	"time"

	"callcenter-billing/internal/domain/model"
)

// PaymentRepository is the ledger-store port for payments.
//
// Three writers (synchronous capture, webhook reconciler, stale-payment
// worker) race on the same rows, so every status transition goes through
// UpdateStatusIfPending: an atomic conditional update that only fires while
// the row is still non-terminal. Callers treat a false return as "someone
// else already finalized this payment" and skip their side effects.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByExternalOrderID is tenant-scoped; the tenant filter prevents
	// cross-tenant capture of someone else's record.
	FindByExternalOrderID(ctx context.Context, tx Tx, externalOrderID, tenantID string) (*model.Payment, error)
	// FindByExternalOrderIDAnyTenant serves the webhook path, which only
	// knows the gateway order id.
	FindByExternalOrderIDAnyTenant(ctx context.Context, tx Tx, externalOrderID string) (*model.Payment, error)
	// UpdateStatusIfPending transitions the payment to status only when it is
	// still pending; reports whether a row was updated.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paidAt, failedAt *time.Time) (bool, error)
	// ListPendingOlderThan feeds the reconciliation worker.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
