package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotMatched        = errors.New("parties must follow each other to call")
	ErrBlocked           = errors.New("calls are blocked between these parties")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// InsufficientFundsError reports how far a payer balance falls short.
// errors.Is(err, ErrInsufficientFunds) matches it.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s", e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}
