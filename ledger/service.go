package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fantasy-league/models"
	"fantasy-league/quotes"
	"fantasy-league/store"
)

// ErrPortfolioNotFound means the user has no portfolio in the league, i.e.
// they are not a member.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// TradeResult is what a successful Buy or Sell returns to the caller.
type TradeResult struct {
	Transaction models.Transaction `json:"transaction"`
	CashBalance float64            `json:"cash_balance"`
	// Holding is the position after the trade, nil when the sell closed it.
	Holding *models.Holding `json:"holding,omitempty"`
}

// Service executes trades: it quotes the symbol, applies the pure ledger
// transition and commits cash, holding and transaction as one store
// transaction. Quote fetching happens before the write section begins, so a
// failed validation never leaves partial state.
type Service struct {
	store  store.Store
	quotes quotes.Fetcher
	log    *slog.Logger
}

func NewService(st store.Store, fetcher quotes.Fetcher, log *slog.Logger) *Service {
	return &Service{store: st, quotes: fetcher, log: log}
}

func (s *Service) Buy(ctx context.Context, userID, leagueID uint, symbol string, quantity int) (*TradeResult, error) {
	symbol = quotes.Normalize(symbol)
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	q, err := s.quotes.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var result TradeResult
	err = s.store.WithTransaction(ctx, func(tx store.Store) error {
		p, err := tx.Portfolio(ctx, userID, leagueID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPortfolioNotFound
			}
			return err
		}

		holding, err := tx.Holding(ctx, p.ID, symbol)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		holding, txn, err := ApplyBuy(p, holding, symbol, quantity, q.Price)
		if err != nil {
			return err
		}

		if err := tx.SavePortfolio(ctx, p); err != nil {
			return err
		}
		if err := tx.SaveHolding(ctx, holding); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &txn); err != nil {
			return err
		}

		result = TradeResult{Transaction: txn, CashBalance: p.CashBalance, Holding: holding}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("buy executed",
		"user_id", userID, "league_id", leagueID,
		"symbol", symbol, "quantity", quantity, "price", q.Price)
	return &result, nil
}

func (s *Service) Sell(ctx context.Context, userID, leagueID uint, symbol string, quantity int) (*TradeResult, error) {
	symbol = quotes.Normalize(symbol)
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	q, err := s.quotes.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var result TradeResult
	err = s.store.WithTransaction(ctx, func(tx store.Store) error {
		p, err := tx.Portfolio(ctx, userID, leagueID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPortfolioNotFound
			}
			return err
		}

		holding, err := tx.Holding(ctx, p.ID, symbol)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoSuchHolding
			}
			return err
		}

		closed, txn, err := ApplySell(p, holding, quantity, q.Price)
		if err != nil {
			return err
		}

		if err := tx.SavePortfolio(ctx, p); err != nil {
			return err
		}
		if closed {
			if err := tx.DeleteHolding(ctx, holding.ID); err != nil {
				return err
			}
			result.Holding = nil
		} else {
			if err := tx.SaveHolding(ctx, holding); err != nil {
				return err
			}
			result.Holding = holding
		}
		if err := tx.CreateTransaction(ctx, &txn); err != nil {
			return err
		}

		result.Transaction = txn
		result.CashBalance = p.CashBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sell executed",
		"user_id", userID, "league_id", leagueID,
		"symbol", symbol, "quantity", quantity, "price", q.Price)
	return &result, nil
}

// Transactions returns the caller's trade history within a league, oldest
// first.
func (s *Service) Transactions(ctx context.Context, userID, leagueID uint) ([]models.Transaction, error) {
	p, err := s.store.Portfolio(ctx, userID, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	return s.store.TransactionsByPortfolio(ctx, p.ID)
}
