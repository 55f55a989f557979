package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls.
// The concrete type is infra-defined (pgx.Tx for Postgres). Repositories
// MUST accept a nil Tx and fall back to the non-transactional path.
type Tx interface{}

// NoTX is passed where a call intentionally runs outside any transaction.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via tx. Keeping the handle opaque means
// use-case interfaces never leak storage types; repository implementations
// detect a live tx (e.g. to add FOR UPDATE) on their side.
//
// Usage:
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		p, err := payments.FindByExternalOrderID(ctx, tx, orderID, tenantID)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
