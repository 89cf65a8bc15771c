package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/sorobai/backend/repositories"
)

// RunInTransaction runs fn inside one transaction and returns its result.
// The transaction commits when fn succeeds and rolls back when fn fails or
// panics. The context handed to fn carries the transaction, so repositories
// called with it join the transaction.
func RunInTransaction[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (result T, err error) {
	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	result, err = fn(repositories.ContextWithTransaction(ctx, tx))
	if err != nil {
		return result, err
	}

	commitErr := tx.Commit()
	done = true
	if commitErr != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return result, nil
}
