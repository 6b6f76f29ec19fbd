package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction, passing
// the underlying transaction handle via `tx`.
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres). Repository
// methods accept it as their Tx argument and MUST accept nil (pool, no transaction).
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
// if _, err := payments.InsertIgnore(ctx, tx, p); err != nil { return err }
// _, err := enrollments.MarkPaid(ctx, tx, ref)
// return err
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
