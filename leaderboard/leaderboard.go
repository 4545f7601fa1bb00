// Package leaderboard ranks league members by current portfolio value.
package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"fantasy-league/league"
	"fantasy-league/store"
	"fantasy-league/valuation"
)

type Entry struct {
	Rank            int     `json:"rank"`
	UserID          uint    `json:"user_id"`
	Email           string  `json:"email"`
	TotalValue      float64 `json:"total_value"`
	CashBalance     float64 `json:"cash_balance"`
	GainLoss        float64 `json:"gain_loss"`
	GainLossPercent float64 `json:"gain_loss_percent"`
}

type Aggregator struct {
	store     store.Store
	valuation *valuation.Service
	log       *slog.Logger
}

func NewAggregator(st store.Store, val *valuation.Service, log *slog.Logger) *Aggregator {
	return &Aggregator{store: st, valuation: val, log: log}
}

// Rank values every member's portfolio and returns them ordered by total
// value, highest first. Members come in join order and the sort is stable,
// so ties fall back to earliest join. Read-only apart from valuation's
// best-effort cache writes.
func (a *Aggregator) Rank(ctx context.Context, leagueID uint) ([]Entry, error) {
	l, err := a.store.LeagueByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, league.ErrLeagueNotFound
		}
		return nil, err
	}

	members, err := a.store.MembershipsByLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		p, err := a.store.Portfolio(ctx, m.UserID, leagueID)
		if err != nil {
			return nil, err
		}
		val, err := a.valuation.Value(ctx, p, l.VirtualBudget)
		if err != nil {
			return nil, err
		}

		entry := Entry{
			UserID:          m.UserID,
			TotalValue:      val.TotalValue,
			CashBalance:     val.CashBalance,
			GainLoss:        val.GainLoss,
			GainLossPercent: val.GainLossPercent,
		}
		if u, err := a.store.UserByID(ctx, m.UserID); err == nil {
			entry.Email = u.Email
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalValue > entries[j].TotalValue
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
