// Package valuation computes the current worth of a portfolio from live
// quotes, falling back to cost basis for any symbol that cannot be priced.
package valuation

import (
	"context"
	"log/slog"

	"fantasy-league/models"
	"fantasy-league/quotes"
	"fantasy-league/store"
)

type HoldingValue struct {
	Symbol          string  `json:"symbol"`
	Quantity        int     `json:"quantity"`
	AveragePrice    float64 `json:"average_price"`
	CurrentPrice    float64 `json:"current_price"`
	CurrentValue    float64 `json:"current_value"`
	GainLoss        float64 `json:"gain_loss"`
	GainLossPercent float64 `json:"gain_loss_percent"`
	// Priced is false when the quote provider failed and the holding is
	// valued at cost basis instead of a live price.
	Priced bool `json:"priced"`
}

type Result struct {
	CashBalance     float64        `json:"cash_balance"`
	TotalValue      float64        `json:"total_value"`
	GainLoss        float64        `json:"gain_loss"`
	GainLossPercent float64        `json:"gain_loss_percent"`
	Holdings        []HoldingValue `json:"holdings"`
}

type Service struct {
	store  store.Store
	quotes quotes.Fetcher
	log    *slog.Logger
}

func NewService(st store.Store, fetcher quotes.Fetcher, log *slog.Logger) *Service {
	return &Service{store: st, quotes: fetcher, log: log}
}

// Value prices every holding of p and returns the aggregate. Portfolio-level
// gain/loss is measured against the league's starting budget so it reflects
// overall performance including cash. The computed total is written back to
// the portfolio row as a best-effort cache; a failed write only logs.
func (s *Service) Value(ctx context.Context, p *models.Portfolio, virtualBudget float64) (*Result, error) {
	holdings, err := s.store.HoldingsByPortfolio(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CashBalance: p.CashBalance,
		Holdings:    make([]HoldingValue, 0, len(holdings)),
	}

	total := p.CashBalance
	for _, h := range holdings {
		hv := valueHolding(ctx, s.quotes, h)
		total += hv.CurrentValue
		result.Holdings = append(result.Holdings, hv)
	}

	result.TotalValue = total
	result.GainLoss = total - virtualBudget
	if virtualBudget > 0 {
		result.GainLossPercent = result.GainLoss / virtualBudget * 100
	}

	if p.TotalValue != total {
		p.TotalValue = total
		if err := s.store.SavePortfolio(ctx, p); err != nil {
			s.log.Warn("failed to cache portfolio total value",
				"portfolio_id", p.ID, "error", err)
		}
	}
	return result, nil
}

func valueHolding(ctx context.Context, fetcher quotes.Fetcher, h models.Holding) HoldingValue {
	hv := HoldingValue{
		Symbol:       h.Symbol,
		Quantity:     h.Quantity,
		AveragePrice: h.AveragePrice,
	}

	q, err := fetcher.Fetch(ctx, h.Symbol)
	if err != nil {
		// Unpriceable stock contributes its cost basis, not a failure.
		hv.CurrentPrice = h.AveragePrice
		hv.CurrentValue = h.AveragePrice * float64(h.Quantity)
		return hv
	}

	qty := float64(h.Quantity)
	hv.Priced = true
	hv.CurrentPrice = q.Price
	hv.CurrentValue = q.Price * qty
	hv.GainLoss = hv.CurrentValue - h.AveragePrice*qty
	if h.AveragePrice > 0 {
		hv.GainLossPercent = (q.Price - h.AveragePrice) / h.AveragePrice * 100
	}
	return hv
}
