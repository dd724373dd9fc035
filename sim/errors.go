package sim

import "errors"

var (
	ErrSlippageRejected  = errors.New("price outside slippage")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidVolume     = errors.New("invalid volume")
	ErrInvalidStep       = errors.New("clock step must be positive")
	ErrDependencyCycle   = errors.New("component dependency cycle")
	ErrUnknownTrader     = errors.New("unknown trader")
	ErrMissingPriceField = errors.New("quote has no price field")
	ErrNotActivated      = errors.New("engine not activated")
	ErrNotReset          = errors.New("engine not reset")
)
