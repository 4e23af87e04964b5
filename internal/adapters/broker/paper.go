package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// PaperBroker simulates fills against quoted spot prices. State lives in
// memory only; restarts reset the account to its initial balance.
type PaperBroker struct {
	mu     sync.Mutex
	quoter Quoter
	cash   decimal.Decimal

	// open position; qty zero means flat
	symbol string
	qty    decimal.Decimal
}

// NewPaperBroker creates new paper broker
func NewPaperBroker(quoter Quoter, initialBalance float64) *PaperBroker {
	return &PaperBroker{
		quoter: quoter,
		cash:   models.NewDecimal(initialBalance),
		qty:    decimal.Zero,
	}
}

// BuyAllCash converts the cash balance into symbol at the quoted price
func (b *PaperBroker) BuyAllCash(ctx context.Context, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.qty.IsPositive() && b.symbol == symbol {
		logger.Info("position already open, skipping buy",
			zap.String("asset", symbol),
		)
		return nil
	}

	if b.qty.IsPositive() {
		if err := b.closeLocked(ctx); err != nil {
			return fmt.Errorf("failed to close %s before buying %s: %w", b.symbol, symbol, err)
		}
	}

	if !b.cash.IsPositive() {
		return fmt.Errorf("no cash available to buy %s", symbol)
	}

	price, err := b.quoter.Quote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to quote %s: %w", symbol, err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("non-positive quote for %s", symbol)
	}

	b.qty = b.cash.Div(price)
	b.symbol = symbol
	b.cash = decimal.Zero

	logger.Info("paper buy filled",
		zap.String("asset", symbol),
		zap.String("qty", b.qty.String()),
		zap.String("price", price.String()),
	)

	return nil
}

// SellAll closes the open position back to cash
func (b *PaperBroker) SellAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.qty.IsPositive() {
		logger.Debug("no open position to sell")
		return nil
	}

	return b.closeLocked(ctx)
}

// Equity returns cash plus the marked value of the open position
func (b *PaperBroker) Equity(ctx context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.qty.IsPositive() {
		return b.cash, nil
	}

	price, err := b.quoter.Quote(ctx, b.symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to quote %s: %w", b.symbol, err)
	}

	return b.cash.Add(b.qty.Mul(price)), nil
}

// closeLocked sells the open position at the quoted price. Caller holds b.mu.
func (b *PaperBroker) closeLocked(ctx context.Context) error {
	price, err := b.quoter.Quote(ctx, b.symbol)
	if err != nil {
		return fmt.Errorf("failed to quote %s: %w", b.symbol, err)
	}

	proceeds := b.qty.Mul(price)
	b.cash = b.cash.Add(proceeds)

	logger.Info("paper sell filled",
		zap.String("asset", b.symbol),
		zap.String("qty", b.qty.String()),
		zap.String("price", price.String()),
		zap.String("proceeds", proceeds.String()),
	)

	b.symbol = ""
	b.qty = decimal.Zero

	return nil
}
