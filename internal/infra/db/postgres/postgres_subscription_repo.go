package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/model"
	"callcenter-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionCols = `id, tenant_id, external_subscription_id, plan_id, tier, status, current_period_start, current_period_end, canceled_at, created_at, updated_at`

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

// Upsert keys on tenant_id: one subscription row per tenant, updated in
// place on re-subscription. History lives in audit logs outside this core.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.TenantSubscription) error {
	const q = `
INSERT INTO tenant_subscriptions (
  id, tenant_id, external_subscription_id, plan_id, tier, status, current_period_start, current_period_end, canceled_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (tenant_id) DO UPDATE SET
  external_subscription_id=$3, plan_id=$4, tier=$5, status=$6, current_period_start=$7, current_period_end=$8, canceled_at=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.TenantID, s.ExternalSubscriptionID, s.PlanID, s.Tier, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CanceledAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByTenant(ctx context.Context, tx repository.Tx, tenantID string) (*model.TenantSubscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM tenant_subscriptions WHERE tenant_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", tenantID)
}

func (r *subscriptionRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string) (*model.TenantSubscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM tenant_subscriptions WHERE external_subscription_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", externalSubscriptionID)
}

// ActivateByExternalID adopts gateway-reported period bounds and moves the
// row to active unless it was already canceled. Canceled is terminal.
func (r *subscriptionRepo) ActivateByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string, periodStart, periodEnd time.Time) (bool, error) {
	const q = `
UPDATE tenant_subscriptions
   SET status = 'active',
       current_period_start = $2,
       current_period_end = $3,
       updated_at = NOW()
 WHERE external_subscription_id = $1
   AND status <> 'canceled';`
	return r.execCond(ctx, tx, q, externalSubscriptionID, periodStart, periodEnd)
}

// MarkPastDueByExternalID records a recurring-payment failure; only an
// active subscription can fall past due.
func (r *subscriptionRepo) MarkPastDueByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string) (bool, error) {
	const q = `
UPDATE tenant_subscriptions
   SET status = 'past_due',
       updated_at = NOW()
 WHERE external_subscription_id = $1
   AND status = 'active';`
	return r.execCond(ctx, tx, q, externalSubscriptionID)
}

func (r *subscriptionRepo) CancelByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string, canceledAt time.Time) (bool, error) {
	const q = `
UPDATE tenant_subscriptions
   SET status = 'canceled',
       canceled_at = $2,
       updated_at = NOW()
 WHERE external_subscription_id = $1
   AND status <> 'canceled';`
	return r.execCond(ctx, tx, q, externalSubscriptionID, canceledAt)
}

func (r *subscriptionRepo) execCond(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (bool, error) {
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.TenantSubscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}

	s := &model.TenantSubscription{}
	if err := row.Scan(&s.ID, &s.TenantID, &s.ExternalSubscriptionID, &s.PlanID, &s.Tier, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
