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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentCols = `id, tenant_id, invoice_id, amount, currency, method, external_order_id, status, description, created_at, updated_at, paid_at, failed_at`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, tenant_id, invoice_id, amount, currency, method, external_order_id, status, description, created_at, updated_at, paid_at, failed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  tenant_id=$2, invoice_id=$3, amount=$4, currency=$5, method=$6, external_order_id=$7, status=$8, description=$9, updated_at=$11, paid_at=$12, failed_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.TenantID, p.InvoiceID, p.Amount, p.Currency, p.Method, p.ExternalOrderID, p.Status, p.Description, p.CreatedAt, p.UpdatedAt, p.PaidAt, p.FailedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// external_order_id is unique per gateway; a duplicate means the
			// order id is being reused across unrelated payments.
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", id)
}

func (r *paymentRepo) FindByExternalOrderID(ctx context.Context, tx repository.Tx, externalOrderID, tenantID string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE external_order_id=$1 AND tenant_id=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", externalOrderID, tenantID)
}

func (r *paymentRepo) FindByExternalOrderIDAnyTenant(ctx context.Context, tx repository.Tx, externalOrderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE external_order_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", externalOrderID)
}

// UpdateStatusIfPending atomically finalizes a payment only while it is still
// pending. The status guard is what makes the synchronous capture path and
// the webhook reconciler commute: whichever writer runs second affects zero
// rows and skips its side effects.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt, failedAt *time.Time,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       paid_at = COALESCE($3, paid_at),
       failed_at = COALESCE($4, failed_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), paidAt, failedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p := new(model.Payment)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceID, &p.Amount, &p.Currency, &p.Method, &p.ExternalOrderID, &p.Status, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.FailedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.TenantID, &p.InvoiceID, &p.Amount, &p.Currency, &p.Method, &p.ExternalOrderID, &p.Status, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.FailedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
