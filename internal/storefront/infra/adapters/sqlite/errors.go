package sqlite

import (
	"context"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

// storageError wraps a driver error as a TransactionFailure. Lock contention
// that outlived busy_timeout is reported as retryable.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return entity.NewTransactionFailure(op, err, isRetryable(err))
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
