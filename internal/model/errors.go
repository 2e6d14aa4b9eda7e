package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed requests. More specific
	// validation errors wrap it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuantity is returned when quantity is not positive.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)

	// ErrInvalidAction is returned when action is neither buy nor sell.
	ErrInvalidAction = fmt.Errorf("%w: action must be buy or sell", ErrInvalidInput)

	// ErrSymbolUnavailable is returned when the feed has no usable path
	// for a symbol.
	ErrSymbolUnavailable = errors.New("symbol unavailable")

	// ErrInsufficientFunds is returned when a buy costs more than the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrPersistence wraps any store read or write failure, timeouts included.
	ErrPersistence = errors.New("persistence error")

	// ErrSourceUnavailable is returned by quote sources that cannot serve
	// a symbol.
	ErrSourceUnavailable = errors.New("quote source unavailable")

	// ErrNotFound is returned by stores for missing keys.
	ErrNotFound = errors.New("not found")
)

// Error kinds exposed to callers.
const (
	KindInvalidInput       = "invalid_input"
	KindInvalidQuantity    = "invalid_quantity"
	KindInvalidAction      = "invalid_action"
	KindSymbolUnavailable  = "symbol_unavailable"
	KindInsufficientFunds  = "insufficient_funds"
	KindInsufficientShares = "insufficient_shares"
	KindPersistence        = "persistence_error"
	KindSourceUnavailable  = "source_unavailable"
	KindNotFound           = "not_found"
	KindInternal           = "internal"
)

// KindOf maps an error onto its machine-readable kind. The most specific
// sentinel wins, so check order matters.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrInvalidAction):
		return KindInvalidAction
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrSymbolUnavailable):
		return KindSymbolUnavailable
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInsufficientShares):
		return KindInsufficientShares
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
