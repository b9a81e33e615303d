package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/retry"
)

const maxSerializationAttempts = 10

// ExecuteInTx runs fn in a new transaction at the given isolation level. The
// transaction commits when fn returns nil and rolls back otherwise.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) (err error) {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}

	defer func() {
		if err == nil {
			return
		}
		// Rollback always, so sql.DB releases the connection.
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Wrapf(err, "rollback also failed: %v", rollbackErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ExecuteRetryableTx is ExecuteInTx, rerun while the transaction fails with a
// serialization failure, a deadlock, or an error isRetriable accepts. fn may
// therefore be invoked more than once.
func ExecuteRetryableTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, isRetriable func(error) bool, fn func(tx *sqlx.Tx) error) error {
	_, err := retry.Retry(
		func() error {
			return ExecuteInTx(ctx, db, isolation, fn)
		},
		retry.Context(ctx),
		retry.RetriableWhen(func(err error) bool {
			return IsSerializationFailure(err) || (isRetriable != nil && isRetriable(err))
		}),
		retry.Limit(maxSerializationAttempts),
	)
	return err
}
