package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories must accept nil and fall back to the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction. Every
// repository call made with the passed tx joins it; a returned error rolls
// everything back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
