package inventory

import (
	"errors"
	"fmt"
)

var (
	// -- Validation --
	ErrInvalidReason  = errors.New("invalid inventory reason")
	ErrZeroChange     = errors.New("change amount must not be zero")
	ErrMissingProduct = errors.New("product id is required")

	// -- Stock state --
	ErrNegativeStock  = errors.New("stock would become negative")
	ErrStockNotFound  = errors.New("stock record not found")
	ErrLedgerDiverged = errors.New("ledger replay does not match current stock")
)

// NegativeStockError carries the numbers behind a rejected entry.
type NegativeStockError struct {
	Key     StockKey
	Current int
	Change  int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("%s: %s has %d, change %d", ErrNegativeStock, e.Key, e.Current, e.Change)
}

func (e *NegativeStockError) Unwrap() error { return ErrNegativeStock }
