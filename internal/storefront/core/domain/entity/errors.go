package entity

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrTransactionFailure = errors.New("transaction failure")
	ErrIdempotencyInUse   = errors.New("idempotency key in use")
)

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a product id that does not exist in the catalog.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError names the product whose aggregate requested
// quantity exceeds what is available.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s", name)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// TransactionFailure wraps a storage fault. Retryable is set when the whole
// operation can safely be attempted again (deadlock, serialization failure,
// lost connection).
type TransactionFailure struct {
	Op        string
	Err       error
	Retryable bool
}

func NewTransactionFailure(op string, err error, retryable bool) *TransactionFailure {
	return &TransactionFailure{Op: op, Err: err, Retryable: retryable}
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransactionFailure) Unwrap() error { return e.Err }

func (e *TransactionFailure) Is(target error) bool { return target == ErrTransactionFailure }

// IsDomainError reports whether err is one of the client-facing order errors
// that must pass through storage layers untouched.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrTransactionFailure)
}

// IsRetryable reports whether err is a TransactionFailure marked retryable.
func IsRetryable(err error) bool {
	var tf *TransactionFailure
	return errors.As(err, &tf) && tf.Retryable
}
