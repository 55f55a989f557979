package repository

import (
	"context"

	"callcenter-billing/internal/domain/model"
)

// InvoiceRepository is the ledger-store port for invoices. The orchestrator
// only ever reads an invoice and, on payment success, flips it to paid.
type InvoiceRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Invoice, error)
	// MarkPaid settles an open invoice: status=paid, amount_paid=amountPaid,
	// amount_due=0. Only fires while the invoice is still open, so a racing
	// second capture can never double-credit; reports whether a row changed.
	MarkPaid(ctx context.Context, tx Tx, id string, amountPaid int64) (bool, error)
}
