package repository

import (
	"context"
	"time"

	"callcenter-billing/internal/domain/model"
)

// SubscriptionRepository is the ledger-store port for tenant subscriptions.
// One row per tenant: Upsert overwrites the existing row when the tenant
// already has one. The conditional transition methods return whether a row
// changed, mirroring PaymentRepository.UpdateStatusIfPending, so the
// synchronous path and the webhook reconciler commute.
type SubscriptionRepository interface {
	// Upsert inserts the subscription or, if the tenant already has a row,
	// overwrites its status/period/external-id fields in place.
	Upsert(ctx context.Context, tx Tx, s *model.TenantSubscription) error
	FindByTenant(ctx context.Context, tx Tx, tenantID string) (*model.TenantSubscription, error)
	FindByExternalID(ctx context.Context, tx Tx, externalSubscriptionID string) (*model.TenantSubscription, error)
	// ActivateByExternalID moves a non-canceled subscription to active and
	// adopts the given billing-period bounds.
	ActivateByExternalID(ctx context.Context, tx Tx, externalSubscriptionID string, periodStart, periodEnd time.Time) (bool, error)
	// MarkPastDueByExternalID moves an active subscription to past_due.
	MarkPastDueByExternalID(ctx context.Context, tx Tx, externalSubscriptionID string) (bool, error)
	// CancelByExternalID moves a non-canceled subscription to canceled.
	CancelByExternalID(ctx context.Context, tx Tx, externalSubscriptionID string, canceledAt time.Time) (bool, error)
}
