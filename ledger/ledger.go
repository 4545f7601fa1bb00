// Package ledger applies buy and sell operations to a single portfolio.
// The transition functions here are pure state logic: they validate, mutate
// the in-memory records and produce the transaction to append, leaving all
// persistence to the service in service.go.
package ledger

import (
	"errors"
	"time"

	"fantasy-league/models"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoSuchHolding      = errors.New("no holding for symbol")
)

// ApplyBuy debits cash and upserts the holding for symbol at the quoted
// price. When holding is nil a new position is opened at averagePrice =
// price; otherwise the average cost is re-weighted across old and new
// shares. The returned holding is the one to persist; the transaction is
// the BUY record to append.
func ApplyBuy(p *models.Portfolio, holding *models.Holding, symbol string, quantity int, price float64) (*models.Holding, models.Transaction, error) {
	if quantity <= 0 {
		return nil, models.Transaction{}, ErrInvalidQuantity
	}
	if price <= 0 {
		return nil, models.Transaction{}, ErrInvalidPrice
	}

	total := price * float64(quantity)
	if p.CashBalance < total {
		return nil, models.Transaction{}, ErrInsufficientFunds
	}
	p.CashBalance -= total

	if holding == nil {
		holding = &models.Holding{
			PortfolioID:  p.ID,
			Symbol:       symbol,
			Quantity:     quantity,
			AveragePrice: price,
		}
	} else {
		oldQty := float64(holding.Quantity)
		newQty := oldQty + float64(quantity)
		holding.AveragePrice = (holding.AveragePrice*oldQty + total) / newQty
		holding.Quantity += quantity
	}

	txn := models.Transaction{
		PortfolioID: p.ID,
		Symbol:      symbol,
		Type:        models.TradeBuy,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: total,
		Timestamp:   time.Now(),
	}
	return holding, txn, nil
}

// ApplySell credits cash and shrinks the holding. Average price is left
// untouched on a partial sell; only quantity changes. closed reports that the
// position was fully exhausted and the holding row must be deleted rather
// than persisted at zero quantity.
func ApplySell(p *models.Portfolio, holding *models.Holding, quantity int, price float64) (closed bool, txn models.Transaction, err error) {
	if quantity <= 0 {
		return false, models.Transaction{}, ErrInvalidQuantity
	}
	if price <= 0 {
		return false, models.Transaction{}, ErrInvalidPrice
	}
	if holding == nil {
		return false, models.Transaction{}, ErrNoSuchHolding
	}
	if holding.Quantity < quantity {
		return false, models.Transaction{}, ErrInsufficientShares
	}

	total := price * float64(quantity)
	p.CashBalance += total
	holding.Quantity -= quantity
	closed = holding.Quantity == 0

	txn = models.Transaction{
		PortfolioID: p.ID,
		Symbol:      holding.Symbol,
		Type:        models.TradeSell,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: total,
		Timestamp:   time.Now(),
	}
	return closed, txn, nil
}
