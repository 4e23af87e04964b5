package broker

import (
	"context"

	"github.com/shopspring/decimal"
)

// Broker executes the daily directives. The engine only ever goes all-in
// on one symbol or fully flat, so the surface is deliberately small.
type Broker interface {
	// BuyAllCash converts the full cash balance into symbol. A no-op when
	// a position in symbol is already open; any other position is closed
	// first.
	BuyAllCash(ctx context.Context, symbol string) error

	// SellAll closes the open position, if any, back to cash.
	SellAll(ctx context.Context) error

	// Equity returns the current account value in quote currency.
	Equity(ctx context.Context) (decimal.Decimal, error)
}

// Quoter supplies a spot price for fills.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}
