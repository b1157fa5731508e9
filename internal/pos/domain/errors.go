package domain

import (
	"errors"
	"fmt"
)

// ErrStockConflict signals that a guarded stock update matched no row: the
// decrement would have driven stock_quantity below zero. Callers translate
// it into an InsufficientStockError with the quantities attached.
var ErrStockConflict = errors.New("stock update would go negative")

// ErrDuplicateIdempotencyKey signals a unique violation on the idempotency
// table; the checkout that lost the race re-reads the winner's order.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

type InsufficientStockError struct {
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}
