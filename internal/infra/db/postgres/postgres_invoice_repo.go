package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/model"
	"callcenter-billing/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	q := `SELECT id, tenant_id, status, amount_due, amount_paid, currency, created_at, updated_at FROM invoices WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}

	inv := &model.Invoice{}
	if err := row.Scan(&inv.ID, &inv.TenantID, &inv.Status, &inv.AmountDue, &inv.AmountPaid, &inv.Currency, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return inv, nil
}

// MarkPaid settles an open invoice. The status guard makes the cascade
// idempotent: a second successful capture of the same payment affects zero
// rows and never double-credits.
func (r *invoiceRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, amountPaid int64) (bool, error) {
	const q = `
UPDATE invoices
   SET status = 'paid',
       amount_paid = $2,
       amount_due = 0,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'open';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, amountPaid)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}
